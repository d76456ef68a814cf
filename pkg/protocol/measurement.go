package protocol

import "github.com/backkem/spdm/pkg/codec"

// DmtfMeasurementType classifies what a DMTF measurement block measures
// (DSP0274 Table 45, DMTFSpecMeasurementValueType bits [6:0]).
type DmtfMeasurementType uint8

const (
	DmtfMeasurementRom             DmtfMeasurementType = 0x00
	DmtfMeasurementFirmware        DmtfMeasurementType = 0x01
	DmtfMeasurementHardwareConfig  DmtfMeasurementType = 0x02
	DmtfMeasurementFirmwareConfig  DmtfMeasurementType = 0x03
	DmtfMeasurementManifest        DmtfMeasurementType = 0x04
	DmtfMeasurementStructuredDebug DmtfMeasurementType = 0x05
)

// DmtfMeasurementRepresentation is the representation bit (bit 7) of
// DMTFSpecMeasurementValueType: digest or raw bit stream.
type DmtfMeasurementRepresentation uint8

const (
	DmtfRepresentationDigest       DmtfMeasurementRepresentation = 0x00
	DmtfRepresentationRawBitStream DmtfMeasurementRepresentation = 0x80
)

const dmtfRepresentationMask = 0x80

// DmtfMeasurement is the typed body of a DMTF measurement block:
// value type (1, packing type and representation), value size (2), value.
type DmtfMeasurement struct {
	Type           DmtfMeasurementType
	Representation DmtfMeasurementRepresentation
	ValueSize      uint16
	Value          []byte
}

// WireSize returns the encoded size of the measurement body.
func (m *DmtfMeasurement) WireSize() int {
	return 3 + int(m.ValueSize)
}

// Encode writes the measurement body.
func (m *DmtfMeasurement) Encode(w *codec.Writer) error {
	if int(m.ValueSize) != len(m.Value) || len(m.Value) > MaxMeasurementValueSize {
		return ErrSizeExceeded
	}
	if err := w.PutU8(uint8(m.Type) | uint8(m.Representation)); err != nil {
		return err
	}
	if err := w.PutU16(m.ValueSize); err != nil {
		return err
	}
	return w.PutBytes(m.Value)
}

// ReadDmtfMeasurement reads a measurement body. Unknown type values are
// preserved verbatim.
func ReadDmtfMeasurement(r *codec.Reader) (DmtfMeasurement, error) {
	valueType, err := r.U8()
	if err != nil {
		return DmtfMeasurement{}, err
	}
	size, err := r.U16()
	if err != nil {
		return DmtfMeasurement{}, err
	}
	if int(size) > MaxMeasurementValueSize {
		return DmtfMeasurement{}, ErrSizeExceeded
	}
	value, err := r.Bytes(int(size))
	if err != nil {
		return DmtfMeasurement{}, err
	}
	return DmtfMeasurement{
		Type:           DmtfMeasurementType(valueType &^ dmtfRepresentationMask),
		Representation: DmtfMeasurementRepresentation(valueType & dmtfRepresentationMask),
		ValueSize:      size,
		Value:          value,
	}, nil
}

// MeasurementBlock is one block of a measurement record: index (1),
// measurement specification (1), measurement size (2), DMTF body.
type MeasurementBlock struct {
	Index         uint8
	Specification MeasurementSpecification
	Size          uint16
	Measurement   DmtfMeasurement
}

// WireSize returns the encoded size of the block.
func (b *MeasurementBlock) WireSize() int {
	return 4 + b.Measurement.WireSize()
}

// Encode writes the block.
func (b *MeasurementBlock) Encode(w *codec.Writer) error {
	if err := w.PutU8(b.Index); err != nil {
		return err
	}
	if err := b.Specification.Encode(w); err != nil {
		return err
	}
	if err := w.PutU16(b.Size); err != nil {
		return err
	}
	return b.Measurement.Encode(w)
}

// ReadMeasurementBlock reads one block.
func ReadMeasurementBlock(r *codec.Reader) (MeasurementBlock, error) {
	index, err := r.U8()
	if err != nil {
		return MeasurementBlock{}, err
	}
	spec, err := ReadMeasurementSpecification(r)
	if err != nil {
		return MeasurementBlock{}, err
	}
	size, err := r.U16()
	if err != nil {
		return MeasurementBlock{}, err
	}
	meas, err := ReadDmtfMeasurement(r)
	if err != nil {
		return MeasurementBlock{}, err
	}
	if int(size) != meas.WireSize() {
		return MeasurementBlock{}, ErrSizeExceeded
	}
	return MeasurementBlock{
		Index:         index,
		Specification: spec,
		Size:          size,
		Measurement:   meas,
	}, nil
}

// MeasurementRecord is the record field of a MEASUREMENTS response: number
// of blocks (1), record length (3, little-endian), block data.
type MeasurementRecord struct {
	NumberOfBlocks uint8
	RecordLength   uint32
	Data           []byte
}

// Encode writes the record.
func (m *MeasurementRecord) Encode(w *codec.Writer) error {
	if int(m.RecordLength) != len(m.Data) || len(m.Data) > MaxMeasurementRecordSize {
		return ErrSizeExceeded
	}
	if err := w.PutU8(m.NumberOfBlocks); err != nil {
		return err
	}
	if err := w.PutU24(m.RecordLength); err != nil {
		return err
	}
	return w.PutBytes(m.Data)
}

// ReadMeasurementRecord reads a record, rejecting lengths beyond the cap.
func ReadMeasurementRecord(r *codec.Reader) (MeasurementRecord, error) {
	blocks, err := r.U8()
	if err != nil {
		return MeasurementRecord{}, err
	}
	length, err := r.U24()
	if err != nil {
		return MeasurementRecord{}, err
	}
	if int(length) > MaxMeasurementRecordSize {
		return MeasurementRecord{}, ErrSizeExceeded
	}
	data, err := r.Bytes(int(length))
	if err != nil {
		return MeasurementRecord{}, err
	}
	return MeasurementRecord{
		NumberOfBlocks: blocks,
		RecordLength:   length,
		Data:           data,
	}, nil
}

// MeasurementOperation is Param2 of GET_MEASUREMENTS: 0 queries the total
// number of indices, 0xFF requests all blocks, anything else one index.
type MeasurementOperation uint8

const (
	MeasurementOperationQueryTotal MeasurementOperation = 0x00
	MeasurementOperationAll        MeasurementOperation = 0xFF
)

// MeasurementIndexAll is the provider-side index meaning "all measurements".
const MeasurementIndexAll = int(MeasurementOperationAll)

// MeasurementSummaryHashType selects which measurements feed the summary
// hash of CHALLENGE and KEY_EXCHANGE (DSP0274 Table 35).
type MeasurementSummaryHashType uint8

const (
	SummaryHashNone       MeasurementSummaryHashType = 0x00
	SummaryHashTcb        MeasurementSummaryHashType = 0x01
	SummaryHashAll        MeasurementSummaryHashType = 0xFF
)

// ContentChanged reports whether measurement content changed since the last
// MEASUREMENTS response, packed in bits [5:4] of Param2 from SPDM 1.2.
type ContentChanged uint8

const (
	ContentChangeNotSupported ContentChanged = 0x00
	ContentChangeDetected     ContentChanged = 0x10
	ContentChangeNone         ContentChanged = 0x20
)

// ContentChangedMask covers bits [5:4] of Param2.
const ContentChangedMask = 0x30

// ContentChangedFromBits extracts the content-changed value from Param2
// bits, rejecting the reserved 0x30 combination.
func ContentChangedFromBits(bits uint8) (ContentChanged, error) {
	switch ContentChanged(bits & ContentChangedMask) {
	case ContentChangeNotSupported:
		return ContentChangeNotSupported, nil
	case ContentChangeDetected:
		return ContentChangeDetected, nil
	case ContentChangeNone:
		return ContentChangeNone, nil
	default:
		return 0, ErrUnknownBits
	}
}
