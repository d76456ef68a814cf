package protocol

import "github.com/backkem/spdm/pkg/codec"

// Fixed capacities. The engine assumes embedded-friendly static sizing and
// surfaces errors instead of growing buffers.
const (
	// MaxSlots is the number of certificate chain slots on a device.
	MaxSlots = 8

	// NonceSize is the fixed nonce length in bytes.
	NonceSize = 32

	// MaxHashSize is the largest negotiable digest size (SHA-512).
	MaxHashSize = 64

	// MaxAsymKeySize is the largest negotiable signature size (RSA-4096).
	MaxAsymKeySize = 512

	// MaxDheKeySize is the largest exchange data size (FFDHE-4096).
	MaxDheKeySize = 512

	// MaxCertChainSize caps a full certificate chain including its header.
	MaxCertChainSize = 4096

	// MaxCertPortionSize caps one CERTIFICATE response portion.
	MaxCertPortionSize = 512

	// MaxOpaqueSize caps the opaque data field of a message.
	MaxOpaqueSize = 1024

	// MaxMeasurementRecordSize caps a measurement record.
	MaxMeasurementRecordSize = 4096

	// MaxMeasurementValueSize caps a single measurement value.
	MaxMeasurementValueSize = 256

	// MaxPskHintSize and MaxPskContextSize cap the PSK_EXCHANGE fields.
	MaxPskHintSize    = 32
	MaxPskContextSize = 64
)

// Nonce is the fixed 32-byte random carried by signed exchanges.
type Nonce [NonceSize]byte

// Encode writes the nonce bytes.
func (n *Nonce) Encode(w *codec.Writer) error {
	return w.PutBytes(n[:])
}

// ReadNonce reads a nonce.
func ReadNonce(r *codec.Reader) (Nonce, error) {
	var n Nonce
	if err := r.ReadInto(n[:]); err != nil {
		return Nonce{}, err
	}
	return n, nil
}

// Digest is a length-tagged digest sized by the negotiated hash algorithm.
type Digest struct {
	Data []byte
}

// Signature is a length-tagged signature sized by the negotiated asymmetric
// algorithm.
type Signature struct {
	Data []byte
}

// HkdfKey is derived key material from an HKDF expansion.
type HkdfKey struct {
	Data []byte
}

// OpaqueData is the length-prefixed opaque field of a message: a 16-bit
// little-endian size followed by the bytes.
type OpaqueData struct {
	Data []byte
}

// Encode writes the size prefix and data.
func (o *OpaqueData) Encode(w *codec.Writer) error {
	if len(o.Data) > MaxOpaqueSize {
		return ErrSizeExceeded
	}
	if err := w.PutU16(uint16(len(o.Data))); err != nil {
		return err
	}
	return w.PutBytes(o.Data)
}

// ReadOpaqueData reads a size prefix and that many bytes, rejecting sizes
// beyond the configured cap.
func ReadOpaqueData(r *codec.Reader) (OpaqueData, error) {
	size, err := r.U16()
	if err != nil {
		return OpaqueData{}, err
	}
	if int(size) > MaxOpaqueSize {
		return OpaqueData{}, ErrSizeExceeded
	}
	data, err := r.Bytes(int(size))
	if err != nil {
		return OpaqueData{}, err
	}
	return OpaqueData{Data: data}, nil
}

// CertChainData is a raw DER certificate chain without the SPDM chain
// header: the concatenation of the DER certificates.
type CertChainData struct {
	Data []byte
}

// CertChainBuffer accumulates a full SPDM certificate chain as transferred
// on the wire: {total length (2), reserved (2), root hash, DER certs...}.
type CertChainBuffer struct {
	Data []byte
}

// Append copies portion into the buffer at offset, growing DataSize to
// offset+len(portion). Fails when the result would exceed MaxCertChainSize.
func (c *CertChainBuffer) Append(offset int, portion []byte) error {
	end := offset + len(portion)
	if end > MaxCertChainSize {
		return ErrSizeExceeded
	}
	if end > len(c.Data) {
		grown := make([]byte, end)
		copy(grown, c.Data)
		c.Data = grown
	}
	copy(c.Data[offset:], portion)
	return nil
}

// DataSize returns the number of assembled bytes.
func (c *CertChainBuffer) DataSize() int {
	return len(c.Data)
}

// CertChainHeaderSize returns the size of the SPDM chain header for the
// given hash algorithm: 4 fixed bytes plus the root certificate hash.
func CertChainHeaderSize(hash BaseHashAlgo) int {
	return 4 + hash.Size()
}

// RootHash returns the root-certificate hash embedded in the chain header,
// or nil when the buffer is shorter than the header.
func (c *CertChainBuffer) RootHash(hash BaseHashAlgo) []byte {
	header := CertChainHeaderSize(hash)
	if len(c.Data) < header {
		return nil
	}
	return c.Data[4:header]
}

// DerData returns the DER certificates after the chain header, or nil when
// the buffer is shorter than the header.
func (c *CertChainBuffer) DerData(hash BaseHashAlgo) []byte {
	header := CertChainHeaderSize(hash)
	if len(c.Data) < header {
		return nil
	}
	return c.Data[header:]
}
