package crypto

import "errors"

// Crypto façade errors.
var (
	// ErrUnsupportedAlgo is returned when a provider does not implement
	// the selected algorithm.
	ErrUnsupportedAlgo = errors.New("crypto: unsupported algorithm")

	// ErrEntropyFail is returned when the random source cannot fill a
	// buffer.
	ErrEntropyFail = errors.New("crypto: entropy source failed")

	// ErrVerifyFail is returned when a signature does not verify.
	ErrVerifyFail = errors.New("crypto: signature verification failed")

	// ErrInvalidCert is returned when a certificate chain cannot be
	// parsed or fails validation.
	ErrInvalidCert = errors.New("crypto: invalid certificate chain")

	// ErrInvalidKey is returned when key material has the wrong form for
	// the selected algorithm.
	ErrInvalidKey = errors.New("crypto: invalid key material")
)
