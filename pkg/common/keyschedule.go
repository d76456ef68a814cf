package common

import (
	"fmt"

	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/protocol"
)

// Key schedule labels (DSP0274 Section 17.1).
const (
	labelRequesterHandshake = "req hs data"
	labelResponderHandshake = "rsp hs data"
	labelRequesterData      = "req app data"
	labelResponderData      = "rsp app data"
	labelDerived            = "derived"
	labelFinished           = "finished"
	labelKey                = "key"
	labelIv                 = "iv"
)

// binConcat builds the HKDF info string of the SPDM key schedule:
// {output length (2, little-endian), "spdm<major>.<minor> ", label, context}.
func binConcat(version protocol.Version, length int, label string, context []byte) []byte {
	prefix := fmt.Sprintf("spdm%d.%d ", version.Major(), version.Minor())
	info := make([]byte, 0, 2+len(prefix)+len(label)+len(context))
	info = append(info, byte(length), byte(length>>8))
	info = append(info, prefix...)
	info = append(info, label...)
	info = append(info, context...)
	return info
}

// deriveSecret expands one schedule secret bound to a transcript hash.
func deriveSecret(version protocol.Version, hash protocol.BaseHashAlgo, prk []byte, label string, transcriptHash []byte) ([]byte, error) {
	return crypto.HkdfExpand(hash, prk, binConcat(version, hash.Size(), label, transcriptHash), hash.Size())
}

// PskHandshakeInfo builds the info string a PSK secret provider expands
// the handshake secret with, for one traffic direction.
func PskHandshakeInfo(version protocol.Version, hash protocol.BaseHashAlgo, requestDirection bool, th1 []byte) []byte {
	label := labelResponderHandshake
	if requestDirection {
		label = labelRequesterHandshake
	}
	return binConcat(version, hash.Size(), label, th1)
}

// deriveAeadMaterial expands the encryption key and IV salt for one
// traffic direction.
func deriveAeadMaterial(version protocol.Version, hash protocol.BaseHashAlgo, aead protocol.AeadAlgo, secret []byte) (key, salt []byte, err error) {
	key, err = crypto.HkdfExpand(hash, secret, binConcat(version, aead.KeySize(), labelKey, nil), aead.KeySize())
	if err != nil {
		return nil, nil, err
	}
	salt, err = crypto.HkdfExpand(hash, secret, binConcat(version, aead.IvSize(), labelIv, nil), aead.IvSize())
	if err != nil {
		return nil, nil, err
	}
	return key, salt, nil
}
