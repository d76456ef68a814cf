package requester

import (
	"bytes"
	"encoding/binary"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/secret"
	"github.com/backkem/spdm/pkg/status"
)

// SetPskProvider installs the requester's PSK expansion provider. It must
// be set before SendReceivePskExchange.
func (c *Context) SetPskProvider(p secret.PskSecretProvider) {
	c.psk = p
}

// SendReceivePskExchange establishes a session from the provisioned
// pre-shared key. Both sides expand the PSK through their secret
// providers; no asymmetric cryptography is involved.
func (c *Context) SendReceivePskExchange(summaryType protocol.MeasurementSummaryHashType) (uint32, error) {
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return 0, status.ErrInvalidStateLocal
	}
	if !c.Common.Negotiate.RspCapabilitiesSel.Contains(protocol.RspCapPsk) {
		return 0, status.ErrUnsupported
	}
	if c.psk == nil {
		return 0, status.ErrInvalidStateLocal
	}

	var reqSessionBytes [2]byte
	if err := crypto.Random(reqSessionBytes[:]); err != nil {
		return 0, status.ErrCryptoError
	}
	reqSessionID := binary.LittleEndian.Uint16(reqSessionBytes[:])

	var context [protocol.NonceSize]byte
	if err := crypto.Random(context[:]); err != nil {
		return 0, status.ErrCryptoError
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestPskExchange,
	}
	if err := header.Encode(w); err != nil {
		return 0, status.ErrBufferFull
	}
	request := message.PskExchangeRequest{
		SummaryHashType: summaryType,
		ReqSessionID:    reqSessionID,
		PskHint:         c.Common.Provision.PskHint,
		Context:         context[:],
	}
	if err := request.Encode(c.Common, w); err != nil {
		return 0, status.ErrBufferFull
	}
	sent := w.Bytes()

	c.Common.Runtime.NeedMeasurementSummaryHash = summaryType != protocol.SummaryHashNone

	rcv := c.newMsgBuf()
	n, err := c.sendReceive(nil, sent, rcv)
	if err != nil {
		return 0, err
	}

	r := codec.NewReader(rcv[:n])
	rspHeader, err := message.ReadHeader(r)
	if err != nil {
		return 0, status.ErrInvalidMsgField
	}
	if rspHeader.Version != c.Common.Negotiate.SpdmVersionSel {
		return 0, status.ErrInvalidMsgField
	}
	switch rspHeader.Code {
	case protocol.ResponsePskExchangeRsp:
	case protocol.ResponseError:
		return 0, c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return 0, status.ErrErrorPeer
	}

	var rsp message.PskExchangeRspResponse
	if err := rsp.Decode(c.Common, r); err != nil {
		return 0, status.ErrInvalidMsgField
	}
	used := r.Used()

	sessionID := uint32(reqSessionID)<<16 | uint32(rsp.RspSessionID)
	sess, err := c.Common.NewSession(sessionID)
	if err != nil {
		return 0, err
	}
	cleanup := func() { c.Common.FreeSession(sessionID) }

	hashAlgo := c.Common.Negotiate.BaseHashSel
	verifySize := hashAlgo.Size()
	if err := sess.MessageK.Append(sent); err != nil {
		cleanup()
		return 0, status.ErrBufferFull
	}
	if err := sess.MessageK.Append(rcv[:used-verifySize]); err != nil {
		cleanup()
		return 0, status.ErrBufferFull
	}

	th1, err := c.pskTranscriptHash(sess)
	if err != nil {
		cleanup()
		return 0, err
	}
	version := c.Common.Negotiate.SpdmVersionSel
	reqSecret, err := c.psk.HandshakeSecretHkdfExpand(version, hashAlgo, request.PskHint, common.PskHandshakeInfo(version, hashAlgo, true, th1))
	if err != nil {
		cleanup()
		return 0, status.ErrCryptoError
	}
	rspSecret, err := c.psk.HandshakeSecretHkdfExpand(version, hashAlgo, request.PskHint, common.PskHandshakeInfo(version, hashAlgo, false, th1))
	if err != nil {
		cleanup()
		return 0, status.ErrCryptoError
	}
	if err := sess.SetupPskHandshakeKeys(version, hashAlgo, c.Common.Negotiate.AeadSel, reqSecret, rspSecret); err != nil {
		cleanup()
		return 0, err
	}

	expected, err := sess.VerifyData(false, th1)
	if err != nil {
		cleanup()
		return 0, err
	}
	if !bytes.Equal(expected, rsp.ResponderVerifyData) {
		c.log.Errorf("psk responder verify data mismatch")
		c.Common.Metrics.VerifyFailure(metricsRole)
		cleanup()
		return 0, status.ErrVerifFail
	}
	if err := sess.MessageK.Append(rsp.ResponderVerifyData); err != nil {
		cleanup()
		return 0, status.ErrBufferFull
	}

	c.Common.Metrics.SessionOpened(metricsRole)
	c.log.Infof("psk exchange complete: session 0x%08x handshaking", sessionID)
	return sessionID, nil
}

// SendReceivePskFinish completes a PSK session. Runs over the session's
// handshake keys, which the completion promotes to data keys.
func (c *Context) SendReceivePskFinish(sessionID uint32) error {
	sess, err := c.Common.Session(sessionID)
	if err != nil {
		return err
	}
	if sess.State != common.SessionHandshaking || !sess.UsePsk {
		return status.ErrInvalidStateLocal
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestPskFinish,
	}
	if err := header.Encode(w); err != nil {
		return status.ErrBufferFull
	}
	if err := w.PutZeros(2); err != nil { // param1, param2
		return status.ErrBufferFull
	}
	if err := sess.MessageK.Append(w.Bytes()); err != nil {
		return status.ErrBufferFull
	}
	thFinish, err := c.pskTranscriptHash(sess)
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
	case protocol.ResponsePskFinishRsp:
	case protocol.ResponseError:
		return c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return status.ErrErrorPeer
	}

	sess.MarkEstablished()
	c.log.Infof("psk session 0x%08x established", sessionID)
	return nil
}

// pskTranscriptHash hashes message_a || message_k for the PSK flows. No
// certificate chain is involved.
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
