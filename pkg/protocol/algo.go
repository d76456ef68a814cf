package protocol

import "github.com/backkem/spdm/pkg/codec"

// BaseHashAlgo selects the negotiated hash algorithm (DSP0274 Table 14).
// At most one bit is set after negotiation.
type BaseHashAlgo uint32

const (
	HashSHA256  BaseHashAlgo = 1 << 0
	HashSHA384  BaseHashAlgo = 1 << 1
	HashSHA512  BaseHashAlgo = 1 << 2
	HashSHA3256 BaseHashAlgo = 1 << 3
	HashSHA3384 BaseHashAlgo = 1 << 4
	HashSHA3512 BaseHashAlgo = 1 << 5
)

const hashAllKnown = HashSHA256 | HashSHA384 | HashSHA512 |
	HashSHA3256 | HashSHA3384 | HashSHA3512

// Size returns the digest size in bytes, or 0 when no algorithm is selected.
func (a BaseHashAlgo) Size() int {
	switch a {
	case HashSHA256, HashSHA3256:
		return 32
	case HashSHA384, HashSHA3384:
		return 48
	case HashSHA512, HashSHA3512:
		return 64
	default:
		return 0
	}
}

// Encode writes the selector as a 32-bit little-endian value.
func (a BaseHashAlgo) Encode(w *codec.Writer) error {
	return w.PutU32(uint32(a))
}

// ReadBaseHashAlgo reads the selector, rejecting unknown bits.
func ReadBaseHashAlgo(r *codec.Reader) (BaseHashAlgo, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	a := BaseHashAlgo(v)
	if a&^hashAllKnown != 0 {
		return 0, ErrUnknownBits
	}
	return a, nil
}

// BaseAsymAlgo selects the negotiated asymmetric signature algorithm
// (DSP0274 Table 13). At most one bit is set after negotiation.
type BaseAsymAlgo uint32

const (
	AsymRsaSsa2048     BaseAsymAlgo = 1 << 0
	AsymRsaPss2048     BaseAsymAlgo = 1 << 1
	AsymRsaSsa3072     BaseAsymAlgo = 1 << 2
	AsymRsaPss3072     BaseAsymAlgo = 1 << 3
	AsymEcdsaP256      BaseAsymAlgo = 1 << 4
	AsymRsaSsa4096     BaseAsymAlgo = 1 << 5
	AsymRsaPss4096     BaseAsymAlgo = 1 << 6
	AsymEcdsaP384      BaseAsymAlgo = 1 << 7
	AsymEcdsaP521      BaseAsymAlgo = 1 << 8
)

const asymAllKnown = AsymRsaSsa2048 | AsymRsaPss2048 | AsymRsaSsa3072 |
	AsymRsaPss3072 | AsymEcdsaP256 | AsymRsaSsa4096 | AsymRsaPss4096 |
	AsymEcdsaP384 | AsymEcdsaP521

// Size returns the signature size in bytes for the selected algorithm.
func (a BaseAsymAlgo) Size() int {
	switch a {
	case AsymRsaSsa2048, AsymRsaPss2048:
		return 256
	case AsymRsaSsa3072, AsymRsaPss3072:
		return 384
	case AsymRsaSsa4096, AsymRsaPss4096:
		return 512
	case AsymEcdsaP256:
		return 64
	case AsymEcdsaP384:
		return 96
	case AsymEcdsaP521:
		return 132
	default:
		return 0
	}
}

// Encode writes the selector as a 32-bit little-endian value.
func (a BaseAsymAlgo) Encode(w *codec.Writer) error {
	return w.PutU32(uint32(a))
}

// ReadBaseAsymAlgo reads the selector, rejecting unknown bits.
func ReadBaseAsymAlgo(r *codec.Reader) (BaseAsymAlgo, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	a := BaseAsymAlgo(v)
	if a&^asymAllKnown != 0 {
		return 0, ErrUnknownBits
	}
	return a, nil
}

// MeasurementSpecification selects the measurement block format. Only the
// DMTF format is defined (DSP0274 Table 16).
type MeasurementSpecification uint8

const MeasSpecDMTF MeasurementSpecification = 1 << 0

// Encode writes the selector byte.
func (s MeasurementSpecification) Encode(w *codec.Writer) error {
	return w.PutU8(uint8(s))
}

// ReadMeasurementSpecification reads the selector, rejecting unknown bits.
func ReadMeasurementSpecification(r *codec.Reader) (MeasurementSpecification, error) {
	v, err := r.U8()
	if err != nil {
		return 0, err
	}
	s := MeasurementSpecification(v)
	if s&^MeasSpecDMTF != 0 {
		return 0, ErrUnknownBits
	}
	return s, nil
}

// MeasurementHashAlgo selects the hash used inside measurement blocks
// (DSP0274 Table 21). Raw bit streams are reported unhashed.
type MeasurementHashAlgo uint32

const (
	MeasHashRawBitStream MeasurementHashAlgo = 1 << 0
	MeasHashSHA256       MeasurementHashAlgo = 1 << 1
	MeasHashSHA384       MeasurementHashAlgo = 1 << 2
	MeasHashSHA512       MeasurementHashAlgo = 1 << 3
	MeasHashSHA3256      MeasurementHashAlgo = 1 << 4
	MeasHashSHA3384      MeasurementHashAlgo = 1 << 5
	MeasHashSHA3512      MeasurementHashAlgo = 1 << 6
)

const measHashAllKnown = MeasHashRawBitStream | MeasHashSHA256 |
	MeasHashSHA384 | MeasHashSHA512 | MeasHashSHA3256 | MeasHashSHA3384 |
	MeasHashSHA3512

// Size returns the digest size in bytes, or 0 for raw bit streams.
func (a MeasurementHashAlgo) Size() int {
	switch a {
	case MeasHashSHA256, MeasHashSHA3256:
		return 32
	case MeasHashSHA384, MeasHashSHA3384:
		return 48
	case MeasHashSHA512, MeasHashSHA3512:
		return 64
	default:
		return 0
	}
}

// Encode writes the selector as a 32-bit little-endian value.
func (a MeasurementHashAlgo) Encode(w *codec.Writer) error {
	return w.PutU32(uint32(a))
}

// ReadMeasurementHashAlgo reads the selector, rejecting unknown bits.
func ReadMeasurementHashAlgo(r *codec.Reader) (MeasurementHashAlgo, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	a := MeasurementHashAlgo(v)
	if a&^measHashAllKnown != 0 {
		return 0, ErrUnknownBits
	}
	return a, nil
}

// DheAlgo selects the key-exchange group (DSP0274 Table 18).
type DheAlgo uint16

const (
	DheFfdhe2048 DheAlgo = 1 << 0
	DheFfdhe3072 DheAlgo = 1 << 1
	DheFfdhe4096 DheAlgo = 1 << 2
	DheSecp256r1 DheAlgo = 1 << 3
	DheSecp384r1 DheAlgo = 1 << 4
	DheSecp521r1 DheAlgo = 1 << 5
)

const dheAllKnown = DheFfdhe2048 | DheFfdhe3072 | DheFfdhe4096 |
	DheSecp256r1 | DheSecp384r1 | DheSecp521r1

// Size returns the exchange data size in bytes for the selected group.
func (a DheAlgo) Size() int {
	switch a {
	case DheFfdhe2048:
		return 256
	case DheFfdhe3072:
		return 384
	case DheFfdhe4096:
		return 512
	case DheSecp256r1:
		return 64
	case DheSecp384r1:
		return 96
	case DheSecp521r1:
		return 132
	default:
		return 0
	}
}

// Encode writes the selector as a 16-bit little-endian value.
func (a DheAlgo) Encode(w *codec.Writer) error {
	return w.PutU16(uint16(a))
}

// ReadDheAlgo reads the selector, rejecting unknown bits.
func ReadDheAlgo(r *codec.Reader) (DheAlgo, error) {
	v, err := r.U16()
	if err != nil {
		return 0, err
	}
	a := DheAlgo(v)
	if a&^dheAllKnown != 0 {
		return 0, ErrUnknownBits
	}
	return a, nil
}

// AeadAlgo selects the AEAD cipher suite for secured messages
// (DSP0274 Table 19).
type AeadAlgo uint16

const (
	AeadAes128Gcm        AeadAlgo = 1 << 0
	AeadAes256Gcm        AeadAlgo = 1 << 1
	AeadChacha20Poly1305 AeadAlgo = 1 << 2
)

const aeadAllKnown = AeadAes128Gcm | AeadAes256Gcm | AeadChacha20Poly1305

// KeySize returns the AEAD key size in bytes.
func (a AeadAlgo) KeySize() int {
	switch a {
	case AeadAes128Gcm:
		return 16
	case AeadAes256Gcm, AeadChacha20Poly1305:
		return 32
	default:
		return 0
	}
}

// IvSize returns the AEAD nonce size in bytes.
func (a AeadAlgo) IvSize() int {
	switch a {
	case AeadAes128Gcm, AeadAes256Gcm, AeadChacha20Poly1305:
		return 12
	default:
		return 0
	}
}

// TagSize returns the AEAD tag size in bytes.
func (a AeadAlgo) TagSize() int {
	switch a {
	case AeadAes128Gcm, AeadAes256Gcm, AeadChacha20Poly1305:
		return 16
	default:
		return 0
	}
}

// Encode writes the selector as a 16-bit little-endian value.
func (a AeadAlgo) Encode(w *codec.Writer) error {
	return w.PutU16(uint16(a))
}

// ReadAeadAlgo reads the selector, rejecting unknown bits.
func ReadAeadAlgo(r *codec.Reader) (AeadAlgo, error) {
	v, err := r.U16()
	if err != nil {
		return 0, err
	}
	a := AeadAlgo(v)
	if a&^aeadAllKnown != 0 {
		return 0, ErrUnknownBits
	}
	return a, nil
}

// ReqAsymAlgo selects the Requester signature algorithm for mutual
// authentication. Same value space as BaseAsymAlgo.
type ReqAsymAlgo = BaseAsymAlgo

// KeyScheduleAlgo selects the session key schedule (DSP0274 Table 20).
type KeyScheduleAlgo uint16

const KeyScheduleSpdm KeyScheduleAlgo = 1 << 0

// Encode writes the selector as a 16-bit little-endian value.
func (a KeyScheduleAlgo) Encode(w *codec.Writer) error {
	return w.PutU16(uint16(a))
}

// ReadKeyScheduleAlgo reads the selector, rejecting unknown bits.
func ReadKeyScheduleAlgo(r *codec.Reader) (KeyScheduleAlgo, error) {
	v, err := r.U16()
	if err != nil {
		return 0, err
	}
	a := KeyScheduleAlgo(v)
	if a&^KeyScheduleSpdm != 0 {
		return 0, ErrUnknownBits
	}
	return a, nil
}
