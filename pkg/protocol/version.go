// Package protocol defines the SPDM data model: versions, request/response
// codes, capability and algorithm bit sets, and the fixed-size containers
// (nonces, digests, signatures, certificate chains, measurement records)
// that message codecs are assembled from. Layouts follow DMTF DSP0274.
package protocol

import "github.com/backkem/spdm/pkg/codec"

// Version is an SPDM version byte: major version in the high nibble, minor
// version in the low nibble.
type Version uint8

// Known SPDM versions.
const (
	Version10 Version = 0x10
	Version11 Version = 0x11
	Version12 Version = 0x12
)

// Major returns the major version nibble.
func (v Version) Major() uint8 {
	return uint8(v) >> 4
}

// Minor returns the minor version nibble.
func (v Version) Minor() uint8 {
	return uint8(v) & 0x0F
}

// Encode writes the version byte.
func (v Version) Encode(w *codec.Writer) error {
	return w.PutU8(uint8(v))
}

// ReadVersion reads a version byte. Unknown values are preserved verbatim so
// a future version survives a round trip.
func ReadVersion(r *codec.Reader) (Version, error) {
	b, err := r.U8()
	if err != nil {
		return 0, err
	}
	return Version(b), nil
}

func (v Version) String() string {
	switch v {
	case Version10:
		return "1.0"
	case Version11:
		return "1.1"
	case Version12:
		return "1.2"
	default:
		return "unknown"
	}
}

// VersionEntry is one VersionNumberEntry of a VERSION response: major and
// minor in the high byte, update version and alpha in the low byte.
type VersionEntry uint16

// NewVersionEntry builds an entry for version v with zero update/alpha.
func NewVersionEntry(v Version) VersionEntry {
	return VersionEntry(uint16(v) << 8)
}

// Version extracts the major/minor version from the entry.
func (e VersionEntry) Version() Version {
	return Version(e >> 8)
}

// Encode writes the entry, little-endian.
func (e VersionEntry) Encode(w *codec.Writer) error {
	return w.PutU16(uint16(e))
}

// ReadVersionEntry reads one VersionNumberEntry.
func ReadVersionEntry(r *codec.Reader) (VersionEntry, error) {
	v, err := r.U16()
	if err != nil {
		return 0, err
	}
	return VersionEntry(v), nil
}
