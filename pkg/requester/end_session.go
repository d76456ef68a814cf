package requester

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// SendReceiveEndSession tears a session down. On END_SESSION_ACK the
// session is removed from the table.
func (c *Context) SendReceiveEndSession(sessionID uint32) error {
	sess, err := c.Common.Session(sessionID)
	if err != nil {
		return err
	}
	if sess.State != common.SessionEstablished {
		return status.ErrInvalidStateLocal
	}
	sess.State = common.SessionTerminating

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestEndSession,
	}
	if err := header.Encode(w); err != nil {
		return status.ErrBufferFull
	}
	request := message.EndSessionRequest{}
	if err := request.Encode(c.Common, w); err != nil {
		return status.ErrBufferFull
	}

	rcv := c.newMsgBuf()
	n, err := c.sendReceive(&sessionID, w.Bytes(), rcv)
	if err != nil {
		return err
	}

	r := codec.NewReader(rcv[:n])
	rspHeader, err := message.ReadHeader(r)
	if err != nil {
		return status.ErrInvalidMsgField
	}
	if rspHeader.Version != c.Common.Negotiate.SpdmVersionSel {
		return status.ErrInvalidMsgField
	}
	switch rspHeader.Code {
	case protocol.ResponseEndSessionAck:
	case protocol.ResponseError:
		return c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return status.ErrErrorPeer
	}

	c.Common.FreeSession(sessionID)
	c.Common.Metrics.SessionClosed(metricsRole)
	c.log.Infof("session 0x%08x terminated", sessionID)
	return nil
}

// SendReceiveHeartbeat keeps an established session alive.
func (c *Context) SendReceiveHeartbeat(sessionID uint32) error {
	sess, err := c.Common.Session(sessionID)
	if err != nil {
		return err
	}
	if sess.State != common.SessionEstablished {
		return status.ErrInvalidStateLocal
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestHeartbeat,
	}
	if err := header.Encode(w); err != nil {
		return status.ErrBufferFull
	}
	request := message.HeartbeatRequest{}
	if err := request.Encode(c.Common, w); err != nil {
		return status.ErrBufferFull
	}

	rcv := c.newMsgBuf()
	n, err := c.sendReceive(&sessionID, w.Bytes(), rcv)
	if err != nil {
		return err
	}

	r := codec.NewReader(rcv[:n])
	rspHeader, err := message.ReadHeader(r)
	if err != nil {
		return status.ErrInvalidMsgField
	}
	switch rspHeader.Code {
	case protocol.ResponseHeartbeatAck:
		return nil
	case protocol.ResponseError:
		return c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return status.ErrErrorPeer
	}
}
