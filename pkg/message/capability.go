package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/protocol"
)

// GetCapabilitiesRequest is the GET_CAPABILITIES payload. From SPDM 1.1 the
// Requester advertises its own CT exponent and capability flags.
type GetCapabilitiesRequest struct {
	CTExponent uint8
	Flags      protocol.RequestCapabilityFlags
}

// Encode writes the payload.
func (p *GetCapabilitiesRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutZeros(2); err != nil { // param1, param2
		return err
	}
	if err := w.PutU8(0); err != nil { // reserved
		return err
	}
	if err := w.PutU8(p.CTExponent); err != nil {
		return err
	}
	if err := w.PutZeros(2); err != nil { // reserved
		return err
	}
	return p.Flags.Encode(w)
}

// Decode reads the payload.
func (p *GetCapabilitiesRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	if err := r.Skip(2); err != nil { // param1, param2
		return err
	}
	if err := r.Skip(1); err != nil { // reserved
		return err
	}
	ct, err := r.U8()
	if err != nil {
		return err
	}
	if err := r.Skip(2); err != nil { // reserved
		return err
	}
	flags, err := protocol.ReadRequestCapabilityFlags(r)
	if err != nil {
		return err
	}
	p.CTExponent = ct
	p.Flags = flags
	return nil
}

// CapabilitiesResponse is the CAPABILITIES payload.
type CapabilitiesResponse struct {
	CTExponent uint8
	Flags      protocol.ResponseCapabilityFlags
}

// Encode writes the payload.
func (p *CapabilitiesResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutZeros(2); err != nil { // param1, param2
		return err
	}
	if err := w.PutU8(0); err != nil { // reserved
		return err
	}
	if err := w.PutU8(p.CTExponent); err != nil {
		return err
	}
	if err := w.PutZeros(2); err != nil { // reserved
		return err
	}
	return p.Flags.Encode(w)
}

// Decode reads the payload.
func (p *CapabilitiesResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	if err := r.Skip(2); err != nil { // param1, param2
		return err
	}
	if err := r.Skip(1); err != nil { // reserved
		return err
	}
	ct, err := r.U8()
	if err != nil {
		return err
	}
	if err := r.Skip(2); err != nil { // reserved
		return err
	}
	flags, err := protocol.ReadResponseCapabilityFlags(r)
	if err != nil {
		return err
	}
	p.CTExponent = ct
	p.Flags = flags
	return nil
}
