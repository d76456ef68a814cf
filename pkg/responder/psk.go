package responder

import (
	"bytes"
	"encoding/binary"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// handlePskExchange establishes a session from the pre-shared key via the
// device's PSK provider.
func (c *Context) handlePskExchange(sessionID *uint32, req []byte) ([]byte, error) {
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return c.errorResponse(message.ErrorUnexpectedRequest, 0)
	}
	if c.Psk == nil {
		return c.errorResponse(message.ErrorUnsupportedRequest, uint8(protocol.RequestPskExchange))
	}

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.PskExchangeRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	neg := &c.Common.Negotiate
	hashAlgo := neg.BaseHashSel
	c.Common.Runtime.NeedMeasurementSummaryHash = request.SummaryHashType != protocol.SummaryHashNone
	var summary []byte
	if c.Common.Runtime.NeedMeasurementSummaryHash {
		if c.Measurements == nil {
			return c.errorResponse(message.ErrorInvalidRequest, 0)
		}
		digest := c.Measurements.MeasurementSummaryHash(neg.SpdmVersionSel, hashAlgo,
			neg.MeasurementSpecificationSel, neg.MeasurementHashSel, request.SummaryHashType)
		if digest == nil {
			return c.errorResponse(message.ErrorInvalidRequest, 0)
		}
		summary = digest.Data
	}

	var rspSessionBytes [2]byte
	if err := crypto.Random(rspSessionBytes[:]); err != nil {
		return nil, status.ErrCryptoError
	}
	rspSessionID := binary.LittleEndian.Uint16(rspSessionBytes[:])
	id := uint32(request.ReqSessionID)<<16 | uint32(rspSessionID)

	sess, err := c.Common.NewSession(id)
	if err != nil {
		return c.errorResponse(message.ErrorSessionLimitExceeded, 0)
	}
	fail := func(e error) ([]byte, error) {
		c.Common.FreeSession(id)
		return nil, e
	}

	if err := sess.MessageK.Append(req[:r.Used()]); err != nil {
		return fail(status.ErrBufferFull)
	}

	var responderContext [protocol.NonceSize]byte
	if err := crypto.Random(responderContext[:]); err != nil {
		return fail(status.ErrCryptoError)
	}

	hashSize := hashAlgo.Size()
	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{Version: neg.SpdmVersionSel, Code: protocol.ResponsePskExchangeRsp}
	if err := header.Encode(w); err != nil {
		return fail(status.ErrBufferFull)
	}
	rsp := message.PskExchangeRspResponse{
		HeartbeatPeriod:        c.Common.Config.HeartbeatPeriod,
		RspSessionID:           rspSessionID,
		MeasurementSummaryHash: summary,
		ResponderContext:       responderContext[:],
		ResponderVerifyData:    make([]byte, hashSize),
	}
	if err := rsp.Encode(c.Common, w); err != nil {
		return fail(status.ErrBufferFull)
	}
	out := w.Bytes()

	if err := sess.MessageK.Append(out[:len(out)-hashSize]); err != nil {
		return fail(status.ErrBufferFull)
	}

	th1, err := c.pskTranscriptHash(sess)
	if err != nil {
		return fail(err)
	}
	version := neg.SpdmVersionSel
	reqSecret, err := c.Psk.HandshakeSecretHkdfExpand(version, hashAlgo, request.PskHint, common.PskHandshakeInfo(version, hashAlgo, true, th1))
	if err != nil {
		return fail(status.ErrCryptoError)
	}
	rspSecret, err := c.Psk.HandshakeSecretHkdfExpand(version, hashAlgo, request.PskHint, common.PskHandshakeInfo(version, hashAlgo, false, th1))
	if err != nil {
		return fail(status.ErrCryptoError)
	}
	if err := sess.SetupPskHandshakeKeys(version, hashAlgo, neg.AeadSel, reqSecret, rspSecret); err != nil {
		return fail(err)
	}

	verifyData, err := sess.VerifyData(false, th1)
	if err != nil {
		return fail(err)
	}
	copy(out[len(out)-hashSize:], verifyData)
	if err := sess.MessageK.Append(verifyData); err != nil {
		return fail(status.ErrBufferFull)
	}

	c.Common.Metrics.SessionOpened(metricsRole)
	c.log.Infof("psk exchange: session 0x%08x handshaking", id)
	return out, nil
}

// handlePskFinish completes a PSK session.
func (c *Context) handlePskFinish(sessionID *uint32, req []byte) ([]byte, error) {
	if sessionID == nil {
		return c.errorResponse(message.ErrorSessionRequired, 0)
	}
	sess, err := c.Common.Session(*sessionID)
	if err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}
	if sess.State != common.SessionHandshaking || !sess.UsePsk {
		return c.errorResponse(message.ErrorUnexpectedRequest, 0)
	}

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.PskFinishRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	if err := sess.MessageK.Append(req[:finishParamsSize]); err != nil {
		return nil, status.ErrBufferFull
	}
	th, err := c.pskTranscriptHash(sess)
	if err != nil {
		return nil, err
	}
	expected, err := sess.VerifyData(true, th)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(expected, request.RequesterVerifyData) {
		c.log.Errorf("psk finish verify data mismatch")
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
		Code:    protocol.ResponsePskFinishRsp,
	}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.PskFinishRspResponse{}
	if err := rsp.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}

	sess.MarkEstablished()
	c.log.Infof("psk session 0x%08x established", *sessionID)
	return w.Bytes(), nil
}

// pskTranscriptHash hashes message_a || message_k for the PSK flows.
func (c *Context) pskTranscriptHash(sess *common.Session) ([]byte, error) {
	th := make([]byte, 0, c.Common.Runtime.MessageA.Len()+sess.MessageK.Len())
	th = append(th, c.Common.Runtime.MessageA.Bytes()...)
	th = append(th, sess.MessageK.Bytes()...)
	hash, err := crypto.HashAll(c.Common.Negotiate.BaseHashSel, th)
	if err != nil {
		return nil, status.ErrCryptoError
	}
	return hash, nil
}
