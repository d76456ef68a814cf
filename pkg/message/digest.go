package message

import (
	"math/bits"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
)

// GetDigestsRequest is the GET_DIGESTS payload: both parameters reserved.
type GetDigestsRequest struct{}

// Encode writes Param1 and Param2.
func (p *GetDigestsRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	return w.PutZeros(2)
}

// Decode reads Param1 and Param2.
func (p *GetDigestsRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	return r.Skip(2)
}

// DigestsResponse is the DIGESTS payload: Param2 is the slot mask, followed
// by one chain digest per set bit. Digest width comes from the negotiated
// hash.
type DigestsResponse struct {
	SlotMask uint8
	Digests  [][]byte
}

// Encode writes the payload.
func (p *DigestsResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	if bits.OnesCount8(p.SlotMask) != len(p.Digests) {
		return ErrInvalidField
	}
	if err := w.PutU8(0); err != nil { // param1
		return err
	}
	if err := w.PutU8(p.SlotMask); err != nil { // param2
		return err
	}
	hashSize := ctx.Negotiate.BaseHashSel.Size()
	for _, d := range p.Digests {
		if len(d) != hashSize {
			return ErrInvalidField
		}
		if err := w.PutBytes(d); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the payload.
func (p *DigestsResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	if err := r.Skip(1); err != nil { // param1
		return err
	}
	mask, err := r.U8()
	if err != nil {
		return err
	}
	hashSize := ctx.Negotiate.BaseHashSel.Size()
	count := bits.OnesCount8(mask)
	digests := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		d, err := r.Bytes(hashSize)
		if err != nil {
			return err
		}
		digests = append(digests, d)
	}
	p.SlotMask = mask
	p.Digests = digests
	return nil
}
