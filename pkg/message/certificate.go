package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/protocol"
)

// GetCertificateRequest is the GET_CERTIFICATE payload: slot in Param1,
// then the requested portion's offset and length.
type GetCertificateRequest struct {
	SlotID uint8
	Offset uint16
	Length uint16
}

// Encode writes the payload.
func (p *GetCertificateRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutU8(p.SlotID); err != nil { // param1
		return err
	}
	if err := w.PutU8(0); err != nil { // param2
		return err
	}
	if err := w.PutU16(p.Offset); err != nil {
		return err
	}
	return w.PutU16(p.Length)
}

// Decode reads the payload.
func (p *GetCertificateRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	slot, err := r.U8() // param1
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil { // param2
		return err
	}
	offset, err := r.U16()
	if err != nil {
		return err
	}
	length, err := r.U16()
	if err != nil {
		return err
	}
	p.SlotID = slot
	p.Offset = offset
	p.Length = length
	return nil
}

// CertificateResponse is the CERTIFICATE payload: slot in Param1, portion
// and remainder lengths, then the chain portion bytes.
type CertificateResponse struct {
	SlotID          uint8
	PortionLength   uint16
	RemainderLength uint16
	CertChain       []byte
}

// Encode writes the payload.
func (p *CertificateResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	if int(p.PortionLength) != len(p.CertChain) || len(p.CertChain) > protocol.MaxCertPortionSize {
		return ErrInvalidField
	}
	if err := w.PutU8(p.SlotID); err != nil { // param1
		return err
	}
	if err := w.PutU8(0); err != nil { // param2
		return err
	}
	if err := w.PutU16(p.PortionLength); err != nil {
		return err
	}
	if err := w.PutU16(p.RemainderLength); err != nil {
		return err
	}
	return w.PutBytes(p.CertChain)
}

// Decode reads the payload, rejecting portions beyond the configured cap.
func (p *CertificateResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	slot, err := r.U8() // param1
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil { // param2
		return err
	}
	portion, err := r.U16()
	if err != nil {
		return err
	}
	remainder, err := r.U16()
	if err != nil {
		return err
	}
	if int(portion) > protocol.MaxCertPortionSize {
		return ErrInvalidField
	}
	chain, err := r.Bytes(int(portion))
	if err != nil {
		return err
	}
	p.SlotID = slot
	p.PortionLength = portion
	p.RemainderLength = remainder
	p.CertChain = chain
	return nil
}
