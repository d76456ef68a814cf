package requester

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
	"github.com/backkem/spdm/pkg/transcript"
)

// SendReceiveChallenge runs CHALLENGE/CHALLENGE_AUTH against a slot and
// verifies the M1/M2 signature over the negotiation, certificate and
// challenge transcripts. A verification failure resets message_c.
func (c *Context) SendReceiveChallenge(slotID uint8, summaryType protocol.MeasurementSummaryHashType) error {
	if slotID >= protocol.MaxSlots {
		return status.ErrInvalidParameter
	}
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return status.ErrInvalidStateLocal
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestChallenge,
	}
	if err := header.Encode(w); err != nil {
		return status.ErrBufferFull
	}
	var nonce protocol.Nonce
	if err := crypto.Random(nonce[:]); err != nil {
		return status.ErrCryptoError
	}
	request := message.ChallengeRequest{
		SlotID:          slotID,
		SummaryHashType: summaryType,
		Nonce:           nonce,
	}
	if err := request.Encode(c.Common, w); err != nil {
		return status.ErrBufferFull
	}
	sent := w.Bytes()

	// The summary hash field of the response is gated by the request.
	c.Common.Runtime.NeedMeasurementSummaryHash = summaryType != protocol.SummaryHashNone

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
	if rspHeader.Version != c.Common.Negotiate.SpdmVersionSel {
		return status.ErrInvalidMsgField
	}
	switch rspHeader.Code {
	case protocol.ResponseChallengeAuth:
	case protocol.ResponseError:
		return c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return status.ErrErrorPeer
	}

	var rsp message.ChallengeAuthResponse
	if err := rsp.Decode(c.Common, r); err != nil {
		return status.ErrInvalidMsgField
	}
	used := r.Used()

	// message_c covers the request and the response minus the signature.
	if err := c.Common.AppendMessageC(sent); err != nil {
		return err
	}
	sigSize := c.Common.Negotiate.BaseAsymSel.Size()
	if err := c.Common.AppendMessageC(rcv[:used-sigSize]); err != nil {
		return err
	}

	if err := c.verifyChallengeAuthSignature(slotID, &rsp.Signature); err != nil {
		c.log.Errorf("challenge auth signature verification failed")
		c.Common.Metrics.VerifyFailure(metricsRole)
		c.Common.Runtime.MessageC.Reset()
		return status.ErrVerifFail
	}
	c.Common.Runtime.ConnectionState = common.ConnectionAuthenticated
	c.log.Infof("challenge auth passed for slot %d", slotID)
	return nil
}

// verifyChallengeAuthSignature checks the M1/M2 signature over
// message_a || message_b || message_c.
func (c *Context) verifyChallengeAuthSignature(slotID uint8, signature *protocol.Signature) error {
	version := c.Common.Negotiate.SpdmVersionSel
	hashAlgo := c.Common.Negotiate.BaseHashSel

	m1m2 := transcript.NewManagedBuffer(3 * c.Common.Config.TranscriptCapacity)
	if err := m1m2.Append(c.Common.Runtime.MessageA.Bytes()); err != nil {
		return status.ErrBufferFull
	}
	if err := m1m2.Append(c.Common.Runtime.MessageB.Bytes()); err != nil {
		return status.ErrBufferFull
	}
	if err := m1m2.Append(c.Common.Runtime.MessageC.Bytes()); err != nil {
		return status.ErrBufferFull
	}

	signed := m1m2.Bytes()
	if version >= protocol.Version12 {
		hash, err := crypto.HashAll(hashAlgo, signed)
		if err != nil {
			return status.ErrCryptoError
		}
		signed = signingMessage(protocol.SignContextChallengeAuth, hash)
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
