// Package responder implements the server side of the SPDM state machine:
// a dispatcher keyed by request code with one handler per request, serving
// provisioned certificates, collected measurements and session
// establishment symmetrically to the requester's transcript bookkeeping.
package responder

import (
	"encoding/binary"

	"github.com/pion/logging"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/secret"
	"github.com/backkem/spdm/pkg/status"
	"github.com/backkem/spdm/pkg/transport"
)

// loggerScope names the responder's leveled logger.
const loggerScope = "spdm-rsp"

// metricsRole labels the responder's metrics.
const metricsRole = "responder"

// Context drives the Responder role over a shared engine Context.
type Context struct {
	Common *common.Context

	log logging.LeveledLogger

	// Device secrets. Measurements and Signer must be set for the
	// measurement and attestation flows; Psk for the PSK flows.
	Measurements secret.MeasurementProvider
	Signer       secret.AsymSigner
	Psk          secret.PskSecretProvider
}

// New creates a Responder over the given transport encapsulation and
// device endpoint.
func New(config common.ConfigInfo, provision common.ProvisionInfo, encap transport.Encap, device transport.DeviceIO) (*Context, error) {
	cc, err := common.NewContext(config, provision, encap, device, loggerScope)
	if err != nil {
		return nil, err
	}
	return &Context{Common: cc, log: cc.Log()}, nil
}

// handler processes one decoded request and returns the response payload.
type handler func(c *Context, sessionID *uint32, req []byte) ([]byte, error)

// dispatch maps request codes to handlers.
var dispatch = map[protocol.RequestResponseCode]handler{
	protocol.RequestGetVersion:          (*Context).handleGetVersion,
	protocol.RequestGetCapabilities:     (*Context).handleGetCapabilities,
	protocol.RequestNegotiateAlgorithms: (*Context).handleNegotiateAlgorithms,
	protocol.RequestGetDigests:          (*Context).handleGetDigests,
	protocol.RequestGetCertificate:      (*Context).handleGetCertificate,
	protocol.RequestChallenge:           (*Context).handleChallenge,
	protocol.RequestGetMeasurements:     (*Context).handleGetMeasurements,
	protocol.RequestKeyExchange:         (*Context).handleKeyExchange,
	protocol.RequestFinish:              (*Context).handleFinish,
	protocol.RequestPskExchange:         (*Context).handlePskExchange,
	protocol.RequestPskFinish:           (*Context).handlePskFinish,
	protocol.RequestHeartbeat:           (*Context).handleHeartbeat,
	protocol.RequestEndSession:          (*Context).handleEndSession,
}

// ProcessMessage receives one message from the device, dispatches it and
// transmits the response. Secured messages are recognized by their leading
// session id and unwrapped before dispatch.
func (c *Context) ProcessMessage() error {
	buf := make([]byte, c.Common.Config.MaxSpdmMsgSize+64)
	n, err := c.Common.ReceiveMessage(buf)
	if err != nil {
		return err
	}

	if sessionID, ok := c.matchSession(buf[:n]); ok {
		plain := make([]byte, c.Common.Config.MaxSpdmMsgSize)
		sess, err := c.Common.Session(sessionID)
		if err != nil {
			return err
		}
		m, err := sess.DecodeSecuredMessage(buf[:n], plain, true)
		if err != nil {
			return err
		}
		rsp, err := c.HandleMessage(&sessionID, plain[:m])
		if err != nil {
			return err
		}
		// END_SESSION_ACK still travels under the session keys; the
		// table entry is dropped after the response is out. A FINISH
		// handler defers its data-key switch until the FINISH_RSP left
		// under the handshake keys.
		sendErr := c.sendSecuredResponse(sessionID, rsp)
		if sendErr == nil {
			sendErr = sess.ActivatePendingDataKeys()
		}
		c.reapSession(sessionID)
		return sendErr
	}

	rsp, err := c.HandleMessage(nil, buf[:n])
	if err != nil {
		return err
	}
	c.Common.Metrics.Sent(metricsRole, "response")
	return c.Common.SendMessage(rsp)
}

func (c *Context) sendSecuredResponse(sessionID uint32, rsp []byte) error {
	c.Common.Metrics.Sent(metricsRole, "response")
	return c.Common.SendSecuredMessage(sessionID, rsp, false)
}

// reapSession frees a session that reached Terminating.
func (c *Context) reapSession(sessionID uint32) {
	if sess, err := c.Common.Session(sessionID); err == nil && sess.State == common.SessionTerminating {
		c.Common.FreeSession(sessionID)
		c.Common.Metrics.SessionClosed(metricsRole)
	}
}

// matchSession reports whether raw leads with the id of a live session.
func (c *Context) matchSession(raw []byte) (uint32, bool) {
	if len(raw) < 8 {
		return 0, false
	}
	id := binary.LittleEndian.Uint32(raw)
	if _, err := c.Common.Session(id); err != nil {
		return 0, false
	}
	return id, true
}

// HandleMessage dispatches one plaintext SPDM request and returns the
// encoded response. Unknown request codes produce an UnsupportedRequest
// error response rather than a failure.
func (c *Context) HandleMessage(sessionID *uint32, req []byte) ([]byte, error) {
	c.Common.Metrics.Received(metricsRole, "request")

	r := codec.NewReader(req)
	header, err := message.ReadHeader(r)
	if err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}
	if c.Common.Runtime.ConnectionState >= common.ConnectionAfterVersion &&
		header.Code != protocol.RequestGetVersion &&
		header.Version != c.Common.Negotiate.SpdmVersionSel {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	h, ok := dispatch[header.Code]
	if !ok {
		c.log.Warnf("unsupported request code 0x%02x", uint8(header.Code))
		return c.errorResponse(message.ErrorUnsupportedRequest, uint8(header.Code))
	}
	rsp, err := h(c, sessionID, req)
	if err != nil {
		c.log.Errorf("handler for %s failed: %v", header.Code, err)
		return c.errorResponse(message.ErrorUnspecified, 0)
	}
	return rsp, nil
}

// errorResponse encodes an ERROR response.
func (c *Context) errorResponse(code message.ErrorCode, data uint8) ([]byte, error) {
	raw := make([]byte, 16)
	w := codec.NewWriter(raw)
	version := c.Common.Negotiate.SpdmVersionSel
	if version == 0 {
		version = protocol.Version10
	}
	header := message.Header{Version: version, Code: protocol.ResponseError}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	payload := message.ErrorResponse{Code: code, Data: data}
	if err := payload.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}
	return w.Bytes(), nil
}

// newMsgBuf allocates a scratch buffer for one message.
func (c *Context) newMsgBuf() []byte {
	return make([]byte, c.Common.Config.MaxSpdmMsgSize)
}
