package crypto

import (
	"crypto/ecdh"
	"crypto/rand"

	"github.com/backkem/spdm/pkg/protocol"
)

// DheKeyPair is an ephemeral key-exchange key. ExchangeData is the wire
// form of the public key (the fixed-width X || Y coordinates for ECDHE).
type DheKeyPair struct {
	ExchangeData []byte

	priv *ecdh.PrivateKey
}

// Dhe generates ephemeral keys and computes shared secrets for the
// negotiated group.
type Dhe interface {
	// GenerateKeyPair creates an ephemeral key pair.
	GenerateKeyPair(algo protocol.DheAlgo) (*DheKeyPair, error)

	// SharedSecret computes the shared secret from our private key and
	// the peer's exchange data.
	SharedSecret(algo protocol.DheAlgo, own *DheKeyPair, peerExchangeData []byte) ([]byte, error)
}

var dheProvider Dhe = stdDhe{}

// RegisterDhe replaces the key-exchange provider.
func RegisterDhe(p Dhe) { dheProvider = p }

// DheGenerateKeyPair creates an ephemeral key pair for the negotiated group.
func DheGenerateKeyPair(algo protocol.DheAlgo) (*DheKeyPair, error) {
	return dheProvider.GenerateKeyPair(algo)
}

// DheSharedSecret computes the session shared secret.
func DheSharedSecret(algo protocol.DheAlgo, own *DheKeyPair, peerExchangeData []byte) ([]byte, error) {
	return dheProvider.SharedSecret(algo, own, peerExchangeData)
}

// stdDhe implements the NIST curves with crypto/ecdh. The finite-field
// groups are not implemented; negotiate an ECDHE group or register a
// provider that supports them.
type stdDhe struct{}

func ecdhCurve(algo protocol.DheAlgo) (ecdh.Curve, error) {
	switch algo {
	case protocol.DheSecp256r1:
		return ecdh.P256(), nil
	case protocol.DheSecp384r1:
		return ecdh.P384(), nil
	case protocol.DheSecp521r1:
		return ecdh.P521(), nil
	default:
		return nil, ErrUnsupportedAlgo
	}
}

func (stdDhe) GenerateKeyPair(algo protocol.DheAlgo) (*DheKeyPair, error) {
	curve, err := ecdhCurve(algo)
	if err != nil {
		return nil, err
	}
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	// PublicKey().Bytes() is the uncompressed point 0x04 || X || Y; SPDM
	// exchange data omits the format byte.
	pub := priv.PublicKey().Bytes()
	return &DheKeyPair{ExchangeData: pub[1:], priv: priv}, nil
}

func (stdDhe) SharedSecret(algo protocol.DheAlgo, own *DheKeyPair, peerExchangeData []byte) ([]byte, error) {
	curve, err := ecdhCurve(algo)
	if err != nil {
		return nil, err
	}
	if own == nil || own.priv == nil {
		return nil, ErrInvalidKey
	}
	point := make([]byte, 1+len(peerExchangeData))
	point[0] = 0x04
	copy(point[1:], peerExchangeData)
	peer, err := curve.NewPublicKey(point)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return own.priv.ECDH(peer)
}
