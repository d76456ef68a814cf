package transport

import "encoding/binary"

// PCI-DOE header constants (PCIe DOE ECN; DOE protocol 1 carries SPDM).
const (
	doeHeaderSize = 8
	doeVendorID   = 0x0001
	doeTypeSpdm   = 0x01
)

// PciDoe frames SPDM payloads as PCI Data Object Exchange objects: an
// 8-byte header {vendor id (2), object type (1), reserved (1), length in
// dwords (4)} followed by the dword-padded payload.
type PciDoe struct{}

// Encap writes the DOE header and the dword-aligned payload.
func (PciDoe) Encap(spdm []byte, out []byte) (int, error) {
	padded := (len(spdm) + 3) &^ 3
	total := doeHeaderSize + padded
	if len(out) < total {
		return 0, ErrBufferTooSmall
	}
	binary.LittleEndian.PutUint16(out[0:], doeVendorID)
	out[2] = doeTypeSpdm
	out[3] = 0
	binary.LittleEndian.PutUint32(out[4:], uint32(total/4))
	copy(out[doeHeaderSize:], spdm)
	for i := doeHeaderSize + len(spdm); i < total; i++ {
		out[i] = 0
	}
	return total, nil
}

// Decap validates the DOE header and returns the payload including any
// dword padding; SPDM codecs tolerate trailing pad bytes because every
// payload length is derivable from its fields.
func (PciDoe) Decap(raw []byte, out []byte) (int, error) {
	if len(raw) < doeHeaderSize {
		return 0, ErrMalformedFrame
	}
	if binary.LittleEndian.Uint16(raw[0:]) != doeVendorID || raw[2] != doeTypeSpdm {
		return 0, ErrMalformedFrame
	}
	length := int(binary.LittleEndian.Uint32(raw[4:])) * 4
	if length < doeHeaderSize || length > len(raw) {
		return 0, ErrMalformedFrame
	}
	payload := raw[doeHeaderSize:length]
	if len(out) < len(payload) {
		return 0, ErrBufferTooSmall
	}
	copy(out, payload)
	return len(payload), nil
}
