package requester

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// SendReceiveFinish completes a KEY_EXCHANGE session: the requester verify
// data binds the handshake transcript, and on FINISH_RSP the session
// switches to data keys and becomes Established. The exchange runs over
// the session's handshake keys.
func (c *Context) SendReceiveFinish(sessionID uint32, slotID uint8) error {
	sess, err := c.Common.Session(sessionID)
	if err != nil {
		return err
	}
	if sess.State != common.SessionHandshaking || sess.UsePsk {
		return status.ErrInvalidStateLocal
	}

	certChainHash, err := c.peerCertChainHash(slotID)
	if err != nil {
		return err
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestFinish,
	}
	if err := header.Encode(w); err != nil {
		return status.ErrBufferFull
	}
	if err := w.PutU8(0); err != nil { // param1: no mutual auth signature
		return status.ErrBufferFull
	}
	if err := w.PutU8(slotID); err != nil { // param2
		return status.ErrBufferFull
	}

	// Verify data covers the transcript including the FINISH parameters.
	if err := sess.MessageK.Append(w.Bytes()); err != nil {
		return status.ErrBufferFull
	}
	thFinish, err := c.sessionTranscriptHash(certChainHash, sess.MessageK)
	if err != nil {
		return err
	}
	verifyData, err := sess.VerifyData(true, thFinish)
	if err != nil {
		return err
	}
	if err := w.PutBytes(verifyData); err != nil {
		return status.ErrBufferFull
	}
	if err := sess.MessageK.Append(verifyData); err != nil {
		return status.ErrBufferFull
	}
	sent := w.Bytes()

	rcv := c.newMsgBuf()
	n, err := c.sendReceive(&sessionID, sent, rcv)
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
	case protocol.ResponseFinishRsp:
	case protocol.ResponseError:
		return c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return status.ErrErrorPeer
	}

	var rsp message.FinishRspResponse
	if err := rsp.Decode(c.Common, r); err != nil {
		return status.ErrInvalidMsgField
	}

	if err := sess.MessageK.Append(rcv[:r.Used()]); err != nil {
		return status.ErrBufferFull
	}
	th2, err := c.sessionTranscriptHash(certChainHash, sess.MessageK)
	if err != nil {
		return err
	}
	if err := sess.SetupDataKeys(th2); err != nil {
		return err
	}
	c.log.Infof("session 0x%08x established", sessionID)
	return nil
}
