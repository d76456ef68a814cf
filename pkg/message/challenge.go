package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/protocol"
)

// ChallengeRequest is the CHALLENGE payload: slot in Param1, measurement
// summary hash type in Param2, then the requester nonce.
type ChallengeRequest struct {
	SlotID          uint8
	SummaryHashType protocol.MeasurementSummaryHashType
	Nonce           protocol.Nonce
}

// Encode writes the payload.
func (p *ChallengeRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutU8(p.SlotID); err != nil { // param1
		return err
	}
	if err := w.PutU8(uint8(p.SummaryHashType)); err != nil { // param2
		return err
	}
	return p.Nonce.Encode(w)
}

// Decode reads the payload.
func (p *ChallengeRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	slot, err := r.U8() // param1
	if err != nil {
		return err
	}
	summary, err := r.U8() // param2
	if err != nil {
		return err
	}
	nonce, err := protocol.ReadNonce(r)
	if err != nil {
		return err
	}
	p.SlotID = slot
	p.SummaryHashType = protocol.MeasurementSummaryHashType(summary)
	p.Nonce = nonce
	return nil
}

// ChallengeAuthResponse is the CHALLENGE_AUTH payload: the responder's
// attestation over the A/B/C transcript. The measurement summary hash is
// on the wire only when the request asked for one.
type ChallengeAuthResponse struct {
	SlotID                 uint8
	SlotMask               uint8
	CertChainHash          []byte
	Nonce                  protocol.Nonce
	MeasurementSummaryHash []byte
	Opaque                 protocol.OpaqueData
	Signature              protocol.Signature
}

// Encode writes the payload.
func (p *ChallengeAuthResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	hashSize := ctx.Negotiate.BaseHashSel.Size()
	if len(p.CertChainHash) != hashSize {
		return ErrInvalidField
	}
	if err := w.PutU8(p.SlotID); err != nil { // param1
		return err
	}
	if err := w.PutU8(p.SlotMask); err != nil { // param2
		return err
	}
	if err := w.PutBytes(p.CertChainHash); err != nil {
		return err
	}
	if err := p.Nonce.Encode(w); err != nil {
		return err
	}
	if ctx.Runtime.NeedMeasurementSummaryHash {
		if len(p.MeasurementSummaryHash) != hashSize {
			return ErrInvalidField
		}
		if err := w.PutBytes(p.MeasurementSummaryHash); err != nil {
			return err
		}
	}
	if err := p.Opaque.Encode(w); err != nil {
		return err
	}
	if len(p.Signature.Data) != ctx.Negotiate.BaseAsymSel.Size() {
		return ErrInvalidField
	}
	return w.PutBytes(p.Signature.Data)
}

// Decode reads the payload.
func (p *ChallengeAuthResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	hashSize := ctx.Negotiate.BaseHashSel.Size()
	slot, err := r.U8() // param1
	if err != nil {
		return err
	}
	mask, err := r.U8() // param2
	if err != nil {
		return err
	}
	chainHash, err := r.Bytes(hashSize)
	if err != nil {
		return err
	}
	nonce, err := protocol.ReadNonce(r)
	if err != nil {
		return err
	}
	var summary []byte
	if ctx.Runtime.NeedMeasurementSummaryHash {
		summary, err = r.Bytes(hashSize)
		if err != nil {
			return err
		}
	}
	opaque, err := protocol.ReadOpaqueData(r)
	if err != nil {
		return err
	}
	sig, err := r.Bytes(ctx.Negotiate.BaseAsymSel.Size())
	if err != nil {
		return err
	}
	p.SlotID = slot
	p.SlotMask = mask
	p.CertChainHash = chainHash
	p.Nonce = nonce
	p.MeasurementSummaryHash = summary
	p.Opaque = opaque
	p.Signature = protocol.Signature{Data: sig}
	return nil
}
