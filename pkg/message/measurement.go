package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/protocol"
)

// MeasurementAttributes is Param1 of GET_MEASUREMENTS. Closed bit set.
type MeasurementAttributes uint8

const (
	// MeasAttrSignatureRequested asks the Responder to sign the L1/L2
	// transcript. Its presence also puts the nonce and slot id on the
	// wire.
	MeasAttrSignatureRequested MeasurementAttributes = 1 << 0

	// MeasAttrRawBitStreamRequested asks for raw bit stream
	// representation where the device supports it.
	MeasAttrRawBitStreamRequested MeasurementAttributes = 1 << 1
)

const measAttrAllKnown = MeasAttrSignatureRequested | MeasAttrRawBitStreamRequested

// Contains reports whether all bits of other are set in a.
func (a MeasurementAttributes) Contains(other MeasurementAttributes) bool {
	return a&other == other
}

// Param2 packing of the MEASUREMENTS response: slot id in bits [3:0],
// content-changed in bits [5:4].
const measurementsParam2SlotIDMask = 0x0F

// GetMeasurementsRequest is the GET_MEASUREMENTS payload. The nonce and
// slot id are on the wire only when a signature is requested; on decode
// without one they default to zero.
type GetMeasurementsRequest struct {
	Attributes MeasurementAttributes
	Operation  protocol.MeasurementOperation
	Nonce      protocol.Nonce
	SlotID     uint8
}

// Encode writes the payload.
func (p *GetMeasurementsRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutU8(uint8(p.Attributes)); err != nil { // param1
		return err
	}
	if err := w.PutU8(uint8(p.Operation)); err != nil { // param2
		return err
	}
	if p.Attributes.Contains(MeasAttrSignatureRequested) {
		if err := p.Nonce.Encode(w); err != nil {
			return err
		}
		if err := w.PutU8(p.SlotID); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the payload.
func (p *GetMeasurementsRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	attrBits, err := r.U8() // param1
	if err != nil {
		return err
	}
	attrs := MeasurementAttributes(attrBits)
	if attrs&^measAttrAllKnown != 0 {
		return ErrInvalidField
	}
	op, err := r.U8() // param2
	if err != nil {
		return err
	}
	var nonce protocol.Nonce
	var slotID uint8
	if attrs.Contains(MeasAttrSignatureRequested) {
		nonce, err = protocol.ReadNonce(r)
		if err != nil {
			return err
		}
		slotID, err = r.U8()
		if err != nil {
			return err
		}
	}
	p.Attributes = attrs
	p.Operation = protocol.MeasurementOperation(op)
	p.Nonce = nonce
	p.SlotID = slotID
	return nil
}

// MeasurementsResponse is the MEASUREMENTS payload.
//
// Param1 carries the total number of measurement indices when the request
// queried it; Param2 packs the slot id and, from SPDM 1.2 with runtime
// content-change support, the content-changed bits. The trailing signature
// is on the wire only when the runtime flag says the transaction is signed.
type MeasurementsResponse struct {
	NumberOfMeasurements uint8
	ContentChanged       protocol.ContentChanged
	SlotID               uint8
	Record               protocol.MeasurementRecord
	Nonce                protocol.Nonce
	Opaque               protocol.OpaqueData
	Signature            protocol.Signature
}

// param2Packed reports whether the negotiated context packs the
// content-changed bits into Param2.
func param2Packed(ctx *common.Context) bool {
	return ctx.Negotiate.SpdmVersionSel >= protocol.Version12 &&
		ctx.Config.RuntimeContentChangeSupport
}

// Encode writes the payload.
func (p *MeasurementsResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	// When Param2 of the request was 0 this parameter carries the total
	// number of measurement indices; otherwise the field is reserved. A
	// total of exactly 1 encodes as 0 per the specification.
	param1 := p.NumberOfMeasurements
	if param1 == 1 {
		param1 = 0
	}
	if err := w.PutU8(param1); err != nil {
		return err
	}
	if param2Packed(ctx) {
		if err := w.PutU8(p.SlotID | uint8(p.ContentChanged)); err != nil {
			return err
		}
	} else {
		if err := w.PutU8(p.SlotID); err != nil {
			return err
		}
	}
	if err := p.Record.Encode(w); err != nil {
		return err
	}
	if err := p.Nonce.Encode(w); err != nil {
		return err
	}
	if err := p.Opaque.Encode(w); err != nil {
		return err
	}
	if ctx.Runtime.NeedMeasurementSignature {
		if len(p.Signature.Data) != ctx.Negotiate.BaseAsymSel.Size() {
			return ErrInvalidField
		}
		if err := w.PutBytes(p.Signature.Data); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the payload.
func (p *MeasurementsResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	number, err := r.U8() // param1
	if err != nil {
		return err
	}
	param2, err := r.U8() // param2
	if err != nil {
		return err
	}
	contentChanged, err := protocol.ContentChangedFromBits(param2)
	if err != nil {
		return ErrInvalidField
	}
	record, err := protocol.ReadMeasurementRecord(r)
	if err != nil {
		return err
	}
	nonce, err := protocol.ReadNonce(r)
	if err != nil {
		return err
	}
	opaque, err := protocol.ReadOpaqueData(r)
	if err != nil {
		return err
	}
	var signature protocol.Signature
	if ctx.Runtime.NeedMeasurementSignature {
		data, err := r.Bytes(ctx.Negotiate.BaseAsymSel.Size())
		if err != nil {
			return err
		}
		signature = protocol.Signature{Data: data}
	}
	p.NumberOfMeasurements = number
	p.ContentChanged = contentChanged
	p.SlotID = param2 & measurementsParam2SlotIDMask
	p.Record = record
	p.Nonce = nonce
	p.Opaque = opaque
	p.Signature = signature
	return nil
}
