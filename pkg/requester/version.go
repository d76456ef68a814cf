package requester

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// SendReceiveVersion runs GET_VERSION/VERSION and selects the highest
// version both sides support. GET_VERSION restarts negotiation, so all
// runtime state is reset first.
func (c *Context) SendReceiveVersion() error {
	c.Common.ResetRuntimeInfo()

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{Version: protocol.Version10, Code: protocol.RequestGetVersion}
	if err := header.Encode(w); err != nil {
		return status.ErrBufferFull
	}
	request := message.GetVersionRequest{}
	if err := request.Encode(c.Common, w); err != nil {
		return status.ErrBufferFull
	}
	sent := w.Bytes()

	rcv := c.newMsgBuf()
	n, err := c.sendReceive(nil, sent, rcv)
	if err != nil {
		return err
	}

	r := codec.NewReader(rcv[:n])
	rspHeader, err := message.ReadHeader(r)
	if err != nil {
		return status.ErrInvalidMsgField
	}
	switch rspHeader.Code {
	case protocol.ResponseVersion:
	case protocol.ResponseError:
		return c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return status.ErrErrorPeer
	}

	var rsp message.VersionResponse
	if err := rsp.Decode(c.Common, r); err != nil {
		return status.ErrInvalidMsgField
	}

	selected, ok := c.selectVersion(rsp.Versions)
	if !ok {
		c.log.Errorf("no common SPDM version with peer")
		return status.ErrInvalidMsgField
	}
	c.Common.Negotiate.SpdmVersionSel = selected

	if err := c.Common.AppendMessageA(sent); err != nil {
		return err
	}
	if err := c.Common.AppendMessageA(rcv[:r.Used()]); err != nil {
		return err
	}
	c.Common.Runtime.ConnectionState = common.ConnectionAfterVersion
	c.log.Infof("negotiated SPDM version %s", selected)
	return nil
}

// selectVersion picks the highest offered version the peer also supports.
func (c *Context) selectVersion(peer []protocol.VersionEntry) (protocol.Version, bool) {
	var best protocol.Version
	found := false
	for _, mine := range c.Common.Config.SpdmVersions {
		for _, theirs := range peer {
			if theirs.Version() == mine && (!found || mine > best) {
				best = mine
				found = true
			}
		}
	}
	return best, found
}
