package responder

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// handleHeartbeat acknowledges a session keep-alive.
func (c *Context) handleHeartbeat(sessionID *uint32, req []byte) ([]byte, error) {
	if sessionID == nil {
		return c.errorResponse(message.ErrorSessionRequired, 0)
	}
	sess, err := c.Common.Session(*sessionID)
	if err != nil || sess.State != common.SessionEstablished {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.ResponseHeartbeatAck,
	}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.HeartbeatAckResponse{}
	if err := rsp.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}
	return w.Bytes(), nil
}

// handleEndSession acknowledges teardown and marks the session for
// removal once the acknowledgement has left.
func (c *Context) handleEndSession(sessionID *uint32, req []byte) ([]byte, error) {
	if sessionID == nil {
		return c.errorResponse(message.ErrorSessionRequired, 0)
	}
	sess, err := c.Common.Session(*sessionID)
	if err != nil || sess.State != common.SessionEstablished {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.EndSessionRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.ResponseEndSessionAck,
	}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.EndSessionAckResponse{}
	if err := rsp.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}

	sess.State = common.SessionTerminating
	return w.Bytes(), nil
}
