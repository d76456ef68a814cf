package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"math/big"

	"github.com/backkem/spdm/pkg/protocol"
)

// Verifier checks SPDM signatures against the leaf certificate of the
// peer's chain.
type Verifier interface {
	Verify(hashAlgo protocol.BaseHashAlgo, asym protocol.BaseAsymAlgo, certChainDER, message []byte, signature *protocol.Signature) error
}

var verifyProvider Verifier = stdVerifier{}

// RegisterVerifier replaces the signature-verification provider.
func RegisterVerifier(p Verifier) { verifyProvider = p }

// AsymVerify checks an SPDM signature against the leaf certificate of the
// peer's chain.
func AsymVerify(hashAlgo protocol.BaseHashAlgo, asym protocol.BaseAsymAlgo, certChainDER, message []byte, signature *protocol.Signature) error {
	return verifyProvider.Verify(hashAlgo, asym, certChainDER, message, signature)
}

// stdVerifier checks SPDM signatures against the leaf certificate of the
// peer's chain using the standard library.
type stdVerifier struct{}

func cryptoHash(algo protocol.BaseHashAlgo) (crypto.Hash, error) {
	switch algo {
	case protocol.HashSHA256:
		return crypto.SHA256, nil
	case protocol.HashSHA384:
		return crypto.SHA384, nil
	case protocol.HashSHA512:
		return crypto.SHA512, nil
	case protocol.HashSHA3256:
		return crypto.SHA3_256, nil
	case protocol.HashSHA3384:
		return crypto.SHA3_384, nil
	case protocol.HashSHA3512:
		return crypto.SHA3_512, nil
	default:
		return 0, ErrUnsupportedAlgo
	}
}

func (stdVerifier) Verify(hashAlgo protocol.BaseHashAlgo, asym protocol.BaseAsymAlgo, certChainDER, message []byte, signature *protocol.Signature) error {
	begin, end, err := stdCertOps{}.GetCertFromChain(certChainDER, -1)
	if err != nil {
		return err
	}
	leaf, err := x509.ParseCertificate(certChainDER[begin:end])
	if err != nil {
		return ErrInvalidCert
	}

	digest, err := HashAll(hashAlgo, message)
	if err != nil {
		return err
	}
	ch, err := cryptoHash(hashAlgo)
	if err != nil {
		return err
	}

	switch asym {
	case protocol.AsymRsaSsa2048, protocol.AsymRsaSsa3072, protocol.AsymRsaSsa4096:
		pub, ok := leaf.PublicKey.(*rsa.PublicKey)
		if !ok {
			return ErrVerifyFail
		}
		if err := rsa.VerifyPKCS1v15(pub, ch, digest, signature.Data); err != nil {
			return ErrVerifyFail
		}
		return nil

	case protocol.AsymRsaPss2048, protocol.AsymRsaPss3072, protocol.AsymRsaPss4096:
		pub, ok := leaf.PublicKey.(*rsa.PublicKey)
		if !ok {
			return ErrVerifyFail
		}
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: ch}
		if err := rsa.VerifyPSS(pub, ch, digest, signature.Data, opts); err != nil {
			return ErrVerifyFail
		}
		return nil

	case protocol.AsymEcdsaP256, protocol.AsymEcdsaP384, protocol.AsymEcdsaP521:
		pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return ErrVerifyFail
		}
		// SPDM carries ECDSA signatures as the raw fixed-width r || s
		// concatenation, not DER.
		if len(signature.Data) != asym.Size() {
			return ErrVerifyFail
		}
		half := len(signature.Data) / 2
		r := new(big.Int).SetBytes(signature.Data[:half])
		s := new(big.Int).SetBytes(signature.Data[half:])
		if !ecdsa.Verify(pub, digest, r, s) {
			return ErrVerifyFail
		}
		return nil

	default:
		return ErrUnsupportedAlgo
	}
}
