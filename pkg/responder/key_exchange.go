package responder

import (
	"encoding/binary"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
	"github.com/backkem/spdm/pkg/transcript"
)

// handleKeyExchange answers KEY_EXCHANGE: ephemeral DHE, a signature over
// the session transcript, handshake key derivation and responder verify
// data. The response itself travels in the clear.
func (c *Context) handleKeyExchange(sessionID *uint32, req []byte) ([]byte, error) {
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return c.errorResponse(message.ErrorUnexpectedRequest, 0)
	}
	if c.Signer == nil {
		return c.errorResponse(message.ErrorUnsupportedRequest, uint8(protocol.RequestKeyExchange))
	}

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.KeyExchangeRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}
	if request.SlotID >= protocol.MaxSlots {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}
	chain := c.Common.Provision.MyCertChain[request.SlotID]
	if chain == nil {
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

	keyPair, err := crypto.DheGenerateKeyPair(neg.DheSel)
	if err != nil {
		return nil, status.ErrCryptoError
	}
	shared, err := crypto.DheSharedSecret(neg.DheSel, keyPair, request.ExchangeData)
	if err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
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

	var random protocol.Nonce
	if err := crypto.Random(random[:]); err != nil {
		return fail(status.ErrCryptoError)
	}

	hashSize := hashAlgo.Size()
	sigSize := neg.BaseAsymSel.Size()
	verifySize := hashSize
	if message.HandshakeInTheClear(c.Common) {
		verifySize = 0
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{Version: neg.SpdmVersionSel, Code: protocol.ResponseKeyExchangeRsp}
	if err := header.Encode(w); err != nil {
		return fail(status.ErrBufferFull)
	}
	rsp := message.KeyExchangeRspResponse{
		HeartbeatPeriod:        c.Common.Config.HeartbeatPeriod,
		RspSessionID:           rspSessionID,
		RandomData:             random,
		ExchangeData:           keyPair.ExchangeData,
		MeasurementSummaryHash: summary,
		Signature:              protocol.Signature{Data: make([]byte, sigSize)},
		ResponderVerifyData:    make([]byte, verifySize),
	}
	if err := rsp.Encode(c.Common, w); err != nil {
		return fail(status.ErrBufferFull)
	}
	out := w.Bytes()

	// Transcript: response up to the signature, then signature, then
	// verify data, mirroring the requester.
	sigOffset := len(out) - verifySize - sigSize
	if err := sess.MessageK.Append(out[:sigOffset]); err != nil {
		return fail(status.ErrBufferFull)
	}

	certChainHash, err := crypto.HashAll(hashAlgo, chain.Data)
	if err != nil {
		return fail(status.ErrCryptoError)
	}
	signedBase, err := c.sessionTranscript(certChainHash, sess.MessageK)
	if err != nil {
		return fail(err)
	}
	signed := signedBase
	if neg.SpdmVersionSel >= protocol.Version12 {
		hash, err := crypto.HashAll(hashAlgo, signedBase)
		if err != nil {
			return fail(status.ErrCryptoError)
		}
		signed = signingMessage(protocol.SignContextKeyExchangeRsp, hash)
	}
	sig := c.Signer.Sign(hashAlgo, neg.BaseAsymSel, signed)
	if sig == nil {
		return fail(status.ErrCryptoError)
	}
	copy(out[sigOffset:], sig.Data)
	if err := sess.MessageK.Append(sig.Data); err != nil {
		return fail(status.ErrBufferFull)
	}

	th1Base, err := c.sessionTranscript(certChainHash, sess.MessageK)
	if err != nil {
		return fail(err)
	}
	th1, err := crypto.HashAll(hashAlgo, th1Base)
	if err != nil {
		return fail(status.ErrCryptoError)
	}
	if err := sess.SetupHandshakeKeys(neg.SpdmVersionSel, hashAlgo, neg.AeadSel, shared, th1); err != nil {
		return fail(err)
	}

	if verifySize > 0 {
		verifyData, err := sess.VerifyData(false, th1)
		if err != nil {
			return fail(err)
		}
		copy(out[len(out)-verifySize:], verifyData)
		if err := sess.MessageK.Append(verifyData); err != nil {
			return fail(status.ErrBufferFull)
		}
	}

	c.Common.Metrics.SessionOpened(metricsRole)
	c.log.Infof("key exchange: session 0x%08x handshaking", id)
	return out, nil
}

// sessionTranscript assembles message_a || cert chain hash || message_k.
func (c *Context) sessionTranscript(certChainHash []byte, messageK *transcript.ManagedBuffer) ([]byte, error) {
	th := transcript.NewManagedBuffer(2 * c.Common.Config.TranscriptCapacity)
	if err := th.Append(c.Common.Runtime.MessageA.Bytes()); err != nil {
		return nil, status.ErrBufferFull
	}
	if err := th.Append(certChainHash); err != nil {
		return nil, status.ErrBufferFull
	}
	if err := th.Append(messageK.Bytes()); err != nil {
		return nil, status.ErrBufferFull
	}
	return th.Bytes(), nil
}
