package responder

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
	"github.com/backkem/spdm/pkg/transcript"
)

// handleChallenge answers CHALLENGE with the slot's chain digest, a fresh
// nonce, an optional measurement summary hash, and the M1/M2 signature
// over the negotiation, certificate and challenge transcripts.
func (c *Context) handleChallenge(sessionID *uint32, req []byte) ([]byte, error) {
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return c.errorResponse(message.ErrorUnexpectedRequest, 0)
	}
	if c.Signer == nil {
		return c.errorResponse(message.ErrorUnsupportedRequest, uint8(protocol.RequestChallenge))
	}

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.ChallengeRequest
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

	hashAlgo := c.Common.Negotiate.BaseHashSel
	certChainHash, err := crypto.HashAll(hashAlgo, chain.Data)
	if err != nil {
		return nil, status.ErrCryptoError
	}

	c.Common.Runtime.NeedMeasurementSummaryHash = request.SummaryHashType != protocol.SummaryHashNone
	var summary []byte
	if c.Common.Runtime.NeedMeasurementSummaryHash {
		if c.Measurements == nil {
			return c.errorResponse(message.ErrorInvalidRequest, 0)
		}
		digest := c.Measurements.MeasurementSummaryHash(
			c.Common.Negotiate.SpdmVersionSel, hashAlgo,
			c.Common.Negotiate.MeasurementSpecificationSel,
			c.Common.Negotiate.MeasurementHashSel, request.SummaryHashType)
		if digest == nil {
			return c.errorResponse(message.ErrorInvalidRequest, 0)
		}
		summary = digest.Data
	}

	var nonce protocol.Nonce
	if err := crypto.Random(nonce[:]); err != nil {
		return nil, status.ErrCryptoError
	}

	sigSize := c.Common.Negotiate.BaseAsymSel.Size()
	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.ResponseChallengeAuth,
	}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.ChallengeAuthResponse{
		SlotID:                 request.SlotID,
		SlotMask:               c.provisionedSlotMask(),
		CertChainHash:          certChainHash,
		Nonce:                  nonce,
		MeasurementSummaryHash: summary,
		Signature:              protocol.Signature{Data: make([]byte, sigSize)},
	}
	if err := rsp.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}
	out := w.Bytes()

	// message_c covers the request and the response minus the signature.
	if err := c.Common.AppendMessageC(req[:r.Used()]); err != nil {
		return nil, err
	}
	if err := c.Common.AppendMessageC(out[:len(out)-sigSize]); err != nil {
		return nil, err
	}

	sig, err := c.signChallengeAuth()
	if err != nil {
		c.Common.Runtime.MessageC.Reset()
		return nil, err
	}
	copy(out[len(out)-sigSize:], sig.Data)

	c.Common.Runtime.ConnectionState = common.ConnectionAuthenticated
	return out, nil
}

// provisionedSlotMask reports which slots carry a certificate chain.
func (c *Context) provisionedSlotMask() uint8 {
	var mask uint8
	for slot := 0; slot < protocol.MaxSlots; slot++ {
		if c.Common.Provision.MyCertChain[slot] != nil {
			mask |= 1 << slot
		}
	}
	return mask
}

// signChallengeAuth signs M1/M2 = message_a || message_b || message_c.
func (c *Context) signChallengeAuth() (*protocol.Signature, error) {
	version := c.Common.Negotiate.SpdmVersionSel
	hashAlgo := c.Common.Negotiate.BaseHashSel

	m1m2 := transcript.NewManagedBuffer(3 * c.Common.Config.TranscriptCapacity)
	if err := m1m2.Append(c.Common.Runtime.MessageA.Bytes()); err != nil {
		return nil, status.ErrBufferFull
	}
	if err := m1m2.Append(c.Common.Runtime.MessageB.Bytes()); err != nil {
		return nil, status.ErrBufferFull
	}
	if err := m1m2.Append(c.Common.Runtime.MessageC.Bytes()); err != nil {
		return nil, status.ErrBufferFull
	}

	signed := m1m2.Bytes()
	if version >= protocol.Version12 {
		hash, err := crypto.HashAll(hashAlgo, signed)
		if err != nil {
			return nil, status.ErrCryptoError
		}
		signed = signingMessage(protocol.SignContextChallengeAuth, hash)
	}

	sig := c.Signer.Sign(hashAlgo, c.Common.Negotiate.BaseAsymSel, signed)
	if sig == nil {
		return nil, status.ErrCryptoError
	}
	return sig, nil
}
