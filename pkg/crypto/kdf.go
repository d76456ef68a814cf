package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/backkem/spdm/pkg/protocol"
)

// hashConstructor maps a negotiated hash selector to its constructor.
func hashConstructor(algo protocol.BaseHashAlgo) (func() hash.Hash, error) {
	switch algo {
	case protocol.HashSHA256:
		return sha256.New, nil
	case protocol.HashSHA384:
		return sha512.New384, nil
	case protocol.HashSHA512:
		return sha512.New, nil
	case protocol.HashSHA3256:
		return sha3.New256, nil
	case protocol.HashSHA3384:
		return sha3.New384, nil
	case protocol.HashSHA3512:
		return sha3.New512, nil
	default:
		return nil, ErrUnsupportedAlgo
	}
}

// Hkdf implements RFC 5869 extraction and expansion over a negotiated hash.
type Hkdf interface {
	// Extract derives a pseudorandom key from salt and input keying material.
	Extract(algo protocol.BaseHashAlgo, salt, ikm []byte) ([]byte, error)

	// Expand derives output keying material from a pseudorandom key.
	Expand(algo protocol.BaseHashAlgo, prk, info []byte, length int) ([]byte, error)
}

var hkdfProvider Hkdf = stdHkdf{}

// RegisterHkdf replaces the HKDF provider.
func RegisterHkdf(p Hkdf) { hkdfProvider = p }

// HkdfExtract derives a pseudorandom key from salt and input keying material.
func HkdfExtract(algo protocol.BaseHashAlgo, salt, ikm []byte) ([]byte, error) {
	return hkdfProvider.Extract(algo, salt, ikm)
}

// HkdfExpand derives output keying material from a pseudorandom key.
func HkdfExpand(algo protocol.BaseHashAlgo, prk, info []byte, length int) ([]byte, error) {
	return hkdfProvider.Expand(algo, prk, info, length)
}

// stdHkdf implements RFC 5869 extraction and expansion over the negotiated
// hash via golang.org/x/crypto/hkdf.
type stdHkdf struct{}

func (stdHkdf) Extract(algo protocol.BaseHashAlgo, salt, ikm []byte) ([]byte, error) {
	newFn, err := hashConstructor(algo)
	if err != nil {
		return nil, err
	}
	return hkdf.Extract(newFn, ikm, salt), nil
}

func (stdHkdf) Expand(algo protocol.BaseHashAlgo, prk, info []byte, length int) ([]byte, error) {
	newFn, err := hashConstructor(algo)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(newFn, prk, info), out); err != nil {
		return nil, err
	}
	return out, nil
}
