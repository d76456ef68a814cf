package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/protocol"
)

// AlgStruct type identifiers (DSP0274 Table 24).
const (
	AlgTypeDhe         uint8 = 0x02
	AlgTypeAead        uint8 = 0x03
	AlgTypeReqBaseAsym uint8 = 0x04
	AlgTypeKeySchedule uint8 = 0x05
)

// algCountFixed marks a 2-byte fixed algorithm field with no external
// algorithm entries.
const algCountFixed uint8 = 0x20

// AlgStruct is one fixed-width algorithm negotiation entry.
type AlgStruct struct {
	Type      uint8
	Supported uint16
}

func (a *AlgStruct) encode(w *codec.Writer) error {
	if err := w.PutU8(a.Type); err != nil {
		return err
	}
	if err := w.PutU8(algCountFixed); err != nil {
		return err
	}
	return w.PutU16(a.Supported)
}

func readAlgStruct(r *codec.Reader) (AlgStruct, error) {
	algType, err := r.U8()
	if err != nil {
		return AlgStruct{}, err
	}
	count, err := r.U8()
	if err != nil {
		return AlgStruct{}, err
	}
	if count != algCountFixed {
		return AlgStruct{}, ErrInvalidField
	}
	supported, err := r.U16()
	if err != nil {
		return AlgStruct{}, err
	}
	return AlgStruct{Type: algType, Supported: supported}, nil
}

// NegotiateAlgorithmsRequest is the NEGOTIATE_ALGORITHMS payload: the
// Requester's offered algorithm masks plus the four fixed AlgStruct
// entries (DHE, AEAD, ReqBaseAsym, KeySchedule).
type NegotiateAlgorithmsRequest struct {
	MeasurementSpecification protocol.MeasurementSpecification
	BaseAsymAlgo             protocol.BaseAsymAlgo
	BaseHashAlgo             protocol.BaseHashAlgo
	Alg                      []AlgStruct
}

// fixed sizes of the NEGOTIATE_ALGORITHMS layout.
const (
	negAlgFixedSize = 2 + 2 + 2 + 1 + 1 + 4 + 4 + 12 + 1 + 1 + 2
	algStructSize   = 4
)

// Encode writes the payload.
func (p *NegotiateAlgorithmsRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutU8(uint8(len(p.Alg))); err != nil { // param1
		return err
	}
	if err := w.PutU8(0); err != nil { // param2
		return err
	}
	length := negAlgFixedSize + len(p.Alg)*algStructSize
	if err := w.PutU16(uint16(length)); err != nil {
		return err
	}
	if err := p.MeasurementSpecification.Encode(w); err != nil {
		return err
	}
	if err := w.PutU8(0); err != nil { // other params
		return err
	}
	if err := p.BaseAsymAlgo.Encode(w); err != nil {
		return err
	}
	if err := p.BaseHashAlgo.Encode(w); err != nil {
		return err
	}
	if err := w.PutZeros(12); err != nil {
		return err
	}
	if err := w.PutU8(0); err != nil { // ext asym count
		return err
	}
	if err := w.PutU8(0); err != nil { // ext hash count
		return err
	}
	if err := w.PutZeros(2); err != nil {
		return err
	}
	for i := range p.Alg {
		if err := p.Alg[i].encode(w); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the payload.
func (p *NegotiateAlgorithmsRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	count, err := r.U8() // param1
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil { // param2
		return err
	}
	if _, err := r.U16(); err != nil { // length
		return err
	}
	spec, err := protocol.ReadMeasurementSpecification(r)
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil { // other params
		return err
	}
	asym, err := protocol.ReadBaseAsymAlgo(r)
	if err != nil {
		return err
	}
	hash, err := protocol.ReadBaseHashAlgo(r)
	if err != nil {
		return err
	}
	if err := r.Skip(12); err != nil {
		return err
	}
	extAsym, err := r.U8()
	if err != nil {
		return err
	}
	extHash, err := r.U8()
	if err != nil {
		return err
	}
	if extAsym != 0 || extHash != 0 {
		return ErrInvalidField
	}
	if err := r.Skip(2); err != nil {
		return err
	}
	p.Alg = make([]AlgStruct, 0, count)
	for i := 0; i < int(count); i++ {
		alg, err := readAlgStruct(r)
		if err != nil {
			return err
		}
		p.Alg = append(p.Alg, alg)
	}
	p.MeasurementSpecification = spec
	p.BaseAsymAlgo = asym
	p.BaseHashAlgo = hash
	return nil
}

// AlgorithmsResponse is the ALGORITHMS payload: the Responder's selections.
type AlgorithmsResponse struct {
	MeasurementSpecificationSel protocol.MeasurementSpecification
	MeasurementHashAlgo         protocol.MeasurementHashAlgo
	BaseAsymSel                 protocol.BaseAsymAlgo
	BaseHashSel                 protocol.BaseHashAlgo
	Alg                         []AlgStruct
}

const algRspFixedSize = negAlgFixedSize + 4

// Encode writes the payload.
func (p *AlgorithmsResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutU8(uint8(len(p.Alg))); err != nil { // param1
		return err
	}
	if err := w.PutU8(0); err != nil { // param2
		return err
	}
	length := algRspFixedSize + len(p.Alg)*algStructSize
	if err := w.PutU16(uint16(length)); err != nil {
		return err
	}
	if err := p.MeasurementSpecificationSel.Encode(w); err != nil {
		return err
	}
	if err := w.PutU8(0); err != nil { // other params
		return err
	}
	if err := p.MeasurementHashAlgo.Encode(w); err != nil {
		return err
	}
	if err := p.BaseAsymSel.Encode(w); err != nil {
		return err
	}
	if err := p.BaseHashSel.Encode(w); err != nil {
		return err
	}
	if err := w.PutZeros(12); err != nil {
		return err
	}
	if err := w.PutU8(0); err != nil { // ext asym sel count
		return err
	}
	if err := w.PutU8(0); err != nil { // ext hash sel count
		return err
	}
	if err := w.PutZeros(2); err != nil {
		return err
	}
	for i := range p.Alg {
		if err := p.Alg[i].encode(w); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the payload.
func (p *AlgorithmsResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	count, err := r.U8() // param1
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil { // param2
		return err
	}
	if _, err := r.U16(); err != nil { // length
		return err
	}
	spec, err := protocol.ReadMeasurementSpecification(r)
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil { // other params
		return err
	}
	measHash, err := protocol.ReadMeasurementHashAlgo(r)
	if err != nil {
		return err
	}
	asym, err := protocol.ReadBaseAsymAlgo(r)
	if err != nil {
		return err
	}
	hash, err := protocol.ReadBaseHashAlgo(r)
	if err != nil {
		return err
	}
	if err := r.Skip(12); err != nil {
		return err
	}
	extAsym, err := r.U8()
	if err != nil {
		return err
	}
	extHash, err := r.U8()
	if err != nil {
		return err
	}
	if extAsym != 0 || extHash != 0 {
		return ErrInvalidField
	}
	if err := r.Skip(2); err != nil {
		return err
	}
	p.Alg = make([]AlgStruct, 0, count)
	for i := 0; i < int(count); i++ {
		alg, err := readAlgStruct(r)
		if err != nil {
			return err
		}
		p.Alg = append(p.Alg, alg)
	}
	p.MeasurementSpecificationSel = spec
	p.MeasurementHashAlgo = measHash
	p.BaseAsymSel = asym
	p.BaseHashSel = hash
	return nil
}
