package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/backkem/spdm/pkg/protocol"
)

// NewAead constructs the negotiated AEAD for secured-message processing.
func NewAead(algo protocol.AeadAlgo, key []byte) (cipher.AEAD, error) {
	if len(key) != algo.KeySize() {
		return nil, ErrUnsupportedAlgo
	}
	switch algo {
	case protocol.AeadAes128Gcm, protocol.AeadAes256Gcm:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case protocol.AeadChacha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, ErrUnsupportedAlgo
	}
}
