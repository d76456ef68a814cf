package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
)

// FinishAttributes is Param1 of FINISH.
type FinishAttributes uint8

// FinishSignatureIncluded marks a mutual-authentication FINISH carrying a
// requester signature.
const FinishSignatureIncluded FinishAttributes = 1 << 0

// FinishRequest is the FINISH payload: attributes in Param1, slot in
// Param2, an optional requester signature for mutual authentication, then
// the requester verify data HMAC.
type FinishRequest struct {
	Attributes         FinishAttributes
	SlotID             uint8
	Signature          []byte
	RequesterVerifyData []byte
}

// Encode writes the payload.
func (p *FinishRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	hashSize := ctx.Negotiate.BaseHashSel.Size()
	if err := w.PutU8(uint8(p.Attributes)); err != nil { // param1
		return err
	}
	if err := w.PutU8(p.SlotID); err != nil { // param2
		return err
	}
	if p.Attributes&FinishSignatureIncluded != 0 {
		if len(p.Signature) != ctx.Negotiate.ReqAsymSel.Size() {
			return ErrInvalidField
		}
		if err := w.PutBytes(p.Signature); err != nil {
			return err
		}
	}
	if len(p.RequesterVerifyData) != hashSize {
		return ErrInvalidField
	}
	return w.PutBytes(p.RequesterVerifyData)
}

// Decode reads the payload.
func (p *FinishRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	hashSize := ctx.Negotiate.BaseHashSel.Size()
	attrs, err := r.U8() // param1
	if err != nil {
		return err
	}
	slot, err := r.U8() // param2
	if err != nil {
		return err
	}
	var sig []byte
	if FinishAttributes(attrs)&FinishSignatureIncluded != 0 {
		sig, err = r.Bytes(ctx.Negotiate.ReqAsymSel.Size())
		if err != nil {
			return err
		}
	}
	verify, err := r.Bytes(hashSize)
	if err != nil {
		return err
	}
	p.Attributes = FinishAttributes(attrs)
	p.SlotID = slot
	p.Signature = sig
	p.RequesterVerifyData = verify
	return nil
}

// FinishRspResponse is the FINISH_RSP payload: both parameters reserved,
// with responder verify data only when the handshake ran in the clear.
type FinishRspResponse struct {
	ResponderVerifyData []byte
}

// Encode writes the payload.
func (p *FinishRspResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutZeros(2); err != nil { // param1, param2
		return err
	}
	if HandshakeInTheClear(ctx) {
		if len(p.ResponderVerifyData) != ctx.Negotiate.BaseHashSel.Size() {
			return ErrInvalidField
		}
		return w.PutBytes(p.ResponderVerifyData)
	}
	return nil
}

// Decode reads the payload.
func (p *FinishRspResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	if err := r.Skip(2); err != nil { // param1, param2
		return err
	}
	if HandshakeInTheClear(ctx) {
		verify, err := r.Bytes(ctx.Negotiate.BaseHashSel.Size())
		if err != nil {
			return err
		}
		p.ResponderVerifyData = verify
	}
	return nil
}
