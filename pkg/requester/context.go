// Package requester implements the client side of the SPDM state machine:
// one send/receive operation per request type, multi-message flows such as
// certificate chunking, and the signature checks tied to the rolling
// transcripts.
package requester

import (
	"github.com/pion/logging"

	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/secret"
	"github.com/backkem/spdm/pkg/transport"
)

// loggerScope names the requester's leveled logger.
const loggerScope = "spdm-req"

// metricsRole labels the requester's metrics.
const metricsRole = "requester"

// Context drives the Requester role over a shared engine Context.
type Context struct {
	Common *common.Context

	log logging.LeveledLogger

	// psk expands the provisioned pre-shared key for the PSK flows.
	psk secret.PskSecretProvider
}

// New creates a Requester over the given transport encapsulation and
// device endpoint.
func New(config common.ConfigInfo, provision common.ProvisionInfo, encap transport.Encap, device transport.DeviceIO) (*Context, error) {
	cc, err := common.NewContext(config, provision, encap, device, loggerScope)
	if err != nil {
		return nil, err
	}
	return &Context{Common: cc, log: cc.Log()}, nil
}

// sendRequest transmits an encoded request, over the session when
// sessionID is non-nil.
func (c *Context) sendRequest(sessionID *uint32, raw []byte) error {
	c.Common.Metrics.Sent(metricsRole, "request")
	if sessionID != nil {
		return c.Common.SendSecuredMessage(*sessionID, raw, true)
	}
	return c.Common.SendMessage(raw)
}

// receiveResponse receives one response, over the session when sessionID
// is non-nil.
func (c *Context) receiveResponse(sessionID *uint32, buf []byte) (int, error) {
	var n int
	var err error
	if sessionID != nil {
		n, err = c.Common.ReceiveSecuredMessage(*sessionID, buf, false)
	} else {
		n, err = c.Common.ReceiveMessage(buf)
	}
	if err == nil {
		c.Common.Metrics.Received(metricsRole, "response")
	}
	return n, err
}

// newMsgBuf allocates a scratch buffer for one message.
func (c *Context) newMsgBuf() []byte {
	return make([]byte, c.Common.Config.MaxSpdmMsgSize)
}
