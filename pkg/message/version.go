package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/protocol"
)

// GetVersionRequest is the GET_VERSION payload: both parameters reserved.
type GetVersionRequest struct{}

// Encode writes Param1 and Param2.
func (p *GetVersionRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutU8(0); err != nil {
		return err
	}
	return w.PutU8(0)
}

// Decode reads Param1 and Param2.
func (p *GetVersionRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	if _, err := r.U8(); err != nil {
		return err
	}
	_, err := r.U8()
	return err
}

// VersionResponse is the VERSION payload: reserved byte, entry count, and
// one VersionNumberEntry per supported version.
type VersionResponse struct {
	Versions []protocol.VersionEntry
}

// Encode writes the payload.
func (p *VersionResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutU8(0); err != nil { // param1
		return err
	}
	if err := w.PutU8(0); err != nil { // param2
		return err
	}
	if err := w.PutU8(0); err != nil { // reserved
		return err
	}
	if err := w.PutU8(uint8(len(p.Versions))); err != nil {
		return err
	}
	for _, v := range p.Versions {
		if err := v.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the payload.
func (p *VersionResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	if err := r.Skip(2); err != nil { // param1, param2
		return err
	}
	if err := r.Skip(1); err != nil { // reserved
		return err
	}
	count, err := r.U8()
	if err != nil {
		return err
	}
	p.Versions = make([]protocol.VersionEntry, 0, count)
	for i := 0; i < int(count); i++ {
		entry, err := protocol.ReadVersionEntry(r)
		if err != nil {
			return err
		}
		p.Versions = append(p.Versions, entry)
	}
	return nil
}
