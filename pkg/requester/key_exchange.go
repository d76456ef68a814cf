package requester

import (
	"bytes"
	"encoding/binary"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
	"github.com/backkem/spdm/pkg/transcript"
)

// SendReceiveKeyExchange runs KEY_EXCHANGE/KEY_EXCHANGE_RSP against a
// slot: ephemeral DHE, responder signature verification over the session
// transcript, handshake key derivation and responder verify-data check.
// Returns the established session id; the session is Handshaking until
// SendReceiveFinish completes it.
func (c *Context) SendReceiveKeyExchange(slotID uint8, summaryType protocol.MeasurementSummaryHashType) (uint32, error) {
	if slotID >= protocol.MaxSlots {
		return 0, status.ErrInvalidParameter
	}
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return 0, status.ErrInvalidStateLocal
	}
	if !c.Common.Negotiate.ReqCapabilitiesSel.Contains(protocol.ReqCapKeyEx) ||
		!c.Common.Negotiate.RspCapabilitiesSel.Contains(protocol.RspCapKeyEx) {
		return 0, status.ErrUnsupported
	}

	keyPair, err := crypto.DheGenerateKeyPair(c.Common.Negotiate.DheSel)
	if err != nil {
		return 0, status.ErrCryptoError
	}

	var reqSessionBytes [2]byte
	if err := crypto.Random(reqSessionBytes[:]); err != nil {
		return 0, status.ErrCryptoError
	}
	reqSessionID := binary.LittleEndian.Uint16(reqSessionBytes[:])

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestKeyExchange,
	}
	if err := header.Encode(w); err != nil {
		return 0, status.ErrBufferFull
	}
	var random protocol.Nonce
	if err := crypto.Random(random[:]); err != nil {
		return 0, status.ErrCryptoError
	}
	request := message.KeyExchangeRequest{
		SummaryHashType: summaryType,
		SlotID:          slotID,
		ReqSessionID:    reqSessionID,
		RandomData:      random,
		ExchangeData:    keyPair.ExchangeData,
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
	case protocol.ResponseKeyExchangeRsp:
	case protocol.ResponseError:
		return 0, c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return 0, status.ErrErrorPeer
	}

	var rsp message.KeyExchangeRspResponse
	if err := rsp.Decode(c.Common, r); err != nil {
		return 0, status.ErrInvalidMsgField
	}
	used := r.Used()

	sessionID := uint32(reqSessionID)<<16 | uint32(rsp.RspSessionID)
	sess, err := c.Common.NewSession(sessionID)
	if err != nil {
		return 0, err
	}
	cleanup := func() {
		c.Common.FreeSession(sessionID)
	}

	// The session transcript covers the request and the response up to
	// the signature.
	trailing := c.Common.Negotiate.BaseHashSel.Size() // verify data
	if message.HandshakeInTheClear(c.Common) {
		trailing = 0
	}
	sigOffset := used - trailing - c.Common.Negotiate.BaseAsymSel.Size()
	if err := sess.MessageK.Append(sent); err != nil {
		cleanup()
		return 0, status.ErrBufferFull
	}
	if err := sess.MessageK.Append(rcv[:sigOffset]); err != nil {
		cleanup()
		return 0, status.ErrBufferFull
	}

	certChainHash, err := c.peerCertChainHash(slotID)
	if err != nil {
		cleanup()
		return 0, err
	}

	// Verify the responder signature over TH.
	signedBase, err := c.sessionTranscript(certChainHash, sess.MessageK)
	if err != nil {
		cleanup()
		return 0, err
	}
	if err := c.verifySessionSignature(slotID, signedBase, protocol.SignContextKeyExchangeRsp, &rsp.Signature); err != nil {
		c.log.Errorf("key exchange signature verification failed")
		c.Common.Metrics.VerifyFailure(metricsRole)
		cleanup()
		return 0, status.ErrVerifFail
	}
	if err := sess.MessageK.Append(rsp.Signature.Data); err != nil {
		cleanup()
		return 0, status.ErrBufferFull
	}

	// Derive handshake keys from TH1.
	th1, err := c.sessionTranscriptHash(certChainHash, sess.MessageK)
	if err != nil {
		cleanup()
		return 0, err
	}
	shared, err := crypto.DheSharedSecret(c.Common.Negotiate.DheSel, keyPair, rsp.ExchangeData)
	if err != nil {
		cleanup()
		return 0, status.ErrCryptoError
	}
	if err := sess.SetupHandshakeKeys(c.Common.Negotiate.SpdmVersionSel, c.Common.Negotiate.BaseHashSel, c.Common.Negotiate.AeadSel, shared, th1); err != nil {
		cleanup()
		return 0, err
	}

	if !message.HandshakeInTheClear(c.Common) {
		expected, err := sess.VerifyData(false, th1)
		if err != nil {
			cleanup()
			return 0, err
		}
		if !bytes.Equal(expected, rsp.ResponderVerifyData) {
			c.log.Errorf("responder verify data mismatch")
			c.Common.Metrics.VerifyFailure(metricsRole)
			cleanup()
			return 0, status.ErrVerifFail
		}
		if err := sess.MessageK.Append(rsp.ResponderVerifyData); err != nil {
			cleanup()
			return 0, status.ErrBufferFull
		}
	}

	c.Common.Metrics.SessionOpened(metricsRole)
	c.log.Infof("key exchange complete: session 0x%08x handshaking", sessionID)
	return sessionID, nil
}

// peerCertChainHash hashes the peer's full chain buffer (header included)
// as the session transcripts require.
func (c *Context) peerCertChainHash(slotID uint8) ([]byte, error) {
	chain := c.Common.Peer.PeerCertChain[slotID]
	if chain == nil {
		return nil, status.ErrInvalidParameter
	}
	hash, err := crypto.HashAll(c.Common.Negotiate.BaseHashSel, chain.Data)
	if err != nil {
		return nil, status.ErrCryptoError
	}
	return hash, nil
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

// sessionTranscriptHash hashes the assembled session transcript.
func (c *Context) sessionTranscriptHash(certChainHash []byte, messageK *transcript.ManagedBuffer) ([]byte, error) {
	th, err := c.sessionTranscript(certChainHash, messageK)
	if err != nil {
		return nil, err
	}
	hash, err := crypto.HashAll(c.Common.Negotiate.BaseHashSel, th)
	if err != nil {
		return nil, status.ErrCryptoError
	}
	return hash, nil
}

// verifySessionSignature checks a responder signature over a session
// transcript, applying the 1.2 signing wrapper where negotiated.
func (c *Context) verifySessionSignature(slotID uint8, transcriptBytes []byte, signContext []byte, signature *protocol.Signature) error {
	version := c.Common.Negotiate.SpdmVersionSel
	hashAlgo := c.Common.Negotiate.BaseHashSel

	signed := transcriptBytes
	if version >= protocol.Version12 {
		hash, err := crypto.HashAll(hashAlgo, transcriptBytes)
		if err != nil {
			return status.ErrCryptoError
		}
		signed = signingMessage(signContext, hash)
	}

	chain := c.Common.Peer.PeerCertChain[slotID]
	if chain == nil {
		return status.ErrInvalidParameter
	}
	der := chain.DerData(hashAlgo)
	if der == nil {
		return status.ErrInvalidParameter
	}
	if err := crypto.AsymVerify(hashAlgo, c.Common.Negotiate.BaseAsymSel, der, signed, signature); err != nil {
		return status.ErrVerifFail
	}
	return nil
}
