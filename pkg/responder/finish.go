package responder

import (
	"bytes"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// finishParamsSize is the transcript-relevant prefix of a FINISH request:
// header (2) plus Param1 and Param2.
const finishParamsSize = 4

// handleFinish completes a DHE session: the requester's verify data is
// checked against the handshake transcript, and the data-key switch is
// deferred until FINISH_RSP has left under the handshake keys.
func (c *Context) handleFinish(sessionID *uint32, req []byte) ([]byte, error) {
	if sessionID == nil {
		return c.errorResponse(message.ErrorSessionRequired, 0)
	}
	sess, err := c.Common.Session(*sessionID)
	if err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}
	if sess.State != common.SessionHandshaking || sess.UsePsk {
		return c.errorResponse(message.ErrorUnexpectedRequest, 0)
	}

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.FinishRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}
	if request.SlotID >= protocol.MaxSlots || c.Common.Provision.MyCertChain[request.SlotID] == nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	hashAlgo := c.Common.Negotiate.BaseHashSel
	certChainHash, err := crypto.HashAll(hashAlgo, c.Common.Provision.MyCertChain[request.SlotID].Data)
	if err != nil {
		return nil, status.ErrCryptoError
	}

	if err := sess.MessageK.Append(req[:finishParamsSize]); err != nil {
		return nil, status.ErrBufferFull
	}
	thBase, err := c.sessionTranscript(certChainHash, sess.MessageK)
	if err != nil {
		return nil, err
	}
	th, err := crypto.HashAll(hashAlgo, thBase)
	if err != nil {
		return nil, status.ErrCryptoError
	}
	expected, err := sess.VerifyData(true, th)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(expected, request.RequesterVerifyData) {
		c.log.Errorf("finish verify data mismatch")
		c.Common.Metrics.VerifyFailure(metricsRole)
		return c.errorResponse(message.ErrorDecryptError, 0)
	}
	if err := sess.MessageK.Append(request.RequesterVerifyData); err != nil {
		return nil, status.ErrBufferFull
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.ResponseFinishRsp,
	}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.FinishRspResponse{}
	if err := rsp.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}
	out := w.Bytes()

	if err := sess.MessageK.Append(out); err != nil {
		return nil, status.ErrBufferFull
	}
	th2Base, err := c.sessionTranscript(certChainHash, sess.MessageK)
	if err != nil {
		return nil, err
	}
	th2, err := crypto.HashAll(hashAlgo, th2Base)
	if err != nil {
		return nil, status.ErrCryptoError
	}
	sess.DeferDataKeys(th2)
	c.log.Infof("session 0x%08x established", *sessionID)
	return out, nil
}
