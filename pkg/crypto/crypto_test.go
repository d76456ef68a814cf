package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/backkem/spdm/pkg/protocol"
)

func TestHashAllKnownAnswer(t *testing.T) {
	got, err := HashAll(protocol.HashSHA256, []byte("abc"))
	if err != nil {
		t.Fatalf("HashAll: %v", err)
	}
	want := sha256.Sum256([]byte("abc"))
	if !bytes.Equal(got, want[:]) {
		t.Errorf("digest = %x", got)
	}
}

func TestHashAllUnsupported(t *testing.T) {
	if _, err := HashAll(protocol.BaseHashAlgo(0), nil); !errors.Is(err, ErrUnsupportedAlgo) {
		t.Errorf("got %v, want ErrUnsupportedAlgo", err)
	}
}

func TestHashCtxCloneIsIndependent(t *testing.T) {
	ctx, err := NewHashCtx(protocol.HashSHA384)
	if err != nil {
		t.Fatalf("NewHashCtx: %v", err)
	}
	ctx.Update([]byte("shared prefix"))

	clone := ctx.Clone()
	ctx.Update([]byte(" then a"))
	clone.Update([]byte(" then b"))

	a := ctx.Finalize()
	b := clone.Finalize()
	if bytes.Equal(a, b) {
		t.Errorf("clone tracked the original")
	}

	wantA, _ := HashAll(protocol.HashSHA384, []byte("shared prefix then a"))
	if !bytes.Equal(a, wantA) {
		t.Errorf("original digest diverged")
	}
	wantB, _ := HashAll(protocol.HashSHA384, []byte("shared prefix then b"))
	if !bytes.Equal(b, wantB) {
		t.Errorf("clone digest diverged")
	}
}

func TestRandomFills(t *testing.T) {
	a := make([]byte, 32)
	b := make([]byte, 32)
	if err := Random(a); err != nil {
		t.Fatalf("Random: %v", err)
	}
	if err := Random(b); err != nil {
		t.Fatalf("Random: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Errorf("two nonces came out identical")
	}
}

func TestHkdfExpandLength(t *testing.T) {
	prk, err := HkdfExtract(protocol.HashSHA256, nil, []byte("ikm"))
	if err != nil {
		t.Fatalf("HkdfExtract: %v", err)
	}
	for _, length := range []int{16, 32, 48} {
		out, err := HkdfExpand(protocol.HashSHA256, prk, []byte("info"), length)
		if err != nil {
			t.Fatalf("HkdfExpand(%d): %v", length, err)
		}
		if len(out) != length {
			t.Errorf("HkdfExpand(%d) = %d bytes", length, len(out))
		}
	}
}

// makeChain generates a root and a leaf certificate and returns their DER
// concatenation plus the leaf key.
func makeChain(t *testing.T) ([]byte, []byte, *ecdsa.PrivateKey) {
	t.Helper()
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "root"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	if err != nil {
		t.Fatal(err)
	}
	rootCert, _ := x509.ParseCertificate(rootDER)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "leaf"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, rootCert, &leafKey.PublicKey, rootKey)
	if err != nil {
		t.Fatal(err)
	}
	return append(append([]byte{}, rootDER...), leafDER...), rootDER, leafKey
}

func TestGetCertFromChain(t *testing.T) {
	der, rootDER, _ := makeChain(t)

	begin, end, err := GetCertFromChain(der, 0)
	if err != nil {
		t.Fatalf("GetCertFromChain(0): %v", err)
	}
	if !bytes.Equal(der[begin:end], rootDER) {
		t.Errorf("index 0 is not the root certificate")
	}

	begin, end, err = GetCertFromChain(der, -1)
	if err != nil {
		t.Fatalf("GetCertFromChain(-1): %v", err)
	}
	if !bytes.Equal(der[begin:end], der[len(rootDER):]) {
		t.Errorf("index -1 is not the leaf certificate")
	}

	if _, _, err := GetCertFromChain(der, 2); !errors.Is(err, ErrInvalidCert) {
		t.Errorf("out-of-range index: got %v, want ErrInvalidCert", err)
	}
	if _, _, err := GetCertFromChain([]byte{0x01, 0x02}, 0); !errors.Is(err, ErrInvalidCert) {
		t.Errorf("garbage DER: got %v, want ErrInvalidCert", err)
	}
}

func TestVerifyCertChain(t *testing.T) {
	der, _, _ := makeChain(t)
	if err := VerifyCertChain(der); err != nil {
		t.Errorf("valid chain rejected: %v", err)
	}

	// Corrupting the leaf signature must fail the chain.
	bad := append([]byte{}, der...)
	bad[len(bad)-1] ^= 0xFF
	if err := VerifyCertChain(bad); err == nil {
		t.Errorf("corrupted chain accepted")
	}
}

func TestAsymVerify(t *testing.T) {
	der, _, leafKey := makeChain(t)

	message := []byte("signed transcript bytes")
	digest, _ := HashAll(protocol.HashSHA256, message)
	r, s, err := ecdsa.Sign(rand.Reader, leafKey, digest)
	if err != nil {
		t.Fatal(err)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	signature := &protocol.Signature{Data: sig}

	if err := AsymVerify(protocol.HashSHA256, protocol.AsymEcdsaP256, der, message, signature); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}

	tampered := append([]byte{}, message...)
	tampered[0] ^= 1
	if err := AsymVerify(protocol.HashSHA256, protocol.AsymEcdsaP256, der, tampered, signature); !errors.Is(err, ErrVerifyFail) {
		t.Errorf("tampered message: got %v, want ErrVerifyFail", err)
	}

	short := &protocol.Signature{Data: sig[:63]}
	if err := AsymVerify(protocol.HashSHA256, protocol.AsymEcdsaP256, der, message, short); !errors.Is(err, ErrVerifyFail) {
		t.Errorf("short signature: got %v, want ErrVerifyFail", err)
	}
}

func TestDheSharedSecretAgreement(t *testing.T) {
	a, err := DheGenerateKeyPair(protocol.DheSecp256r1)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	b, err := DheGenerateKeyPair(protocol.DheSecp256r1)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if len(a.ExchangeData) != protocol.DheSecp256r1.Size() {
		t.Errorf("exchange data = %d bytes, want %d", len(a.ExchangeData), protocol.DheSecp256r1.Size())
	}

	sharedA, err := DheSharedSecret(protocol.DheSecp256r1, a, b.ExchangeData)
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	sharedB, err := DheSharedSecret(protocol.DheSecp256r1, b, a.ExchangeData)
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	if !bytes.Equal(sharedA, sharedB) {
		t.Errorf("shared secrets disagree")
	}
}

func TestNewAeadRejectsWrongKeySize(t *testing.T) {
	if _, err := NewAead(protocol.AeadAes128Gcm, make([]byte, 15)); !errors.Is(err, ErrUnsupportedAlgo) {
		t.Errorf("got %v, want ErrUnsupportedAlgo", err)
	}
	if _, err := NewAead(protocol.AeadChacha20Poly1305, make([]byte, 32)); err != nil {
		t.Errorf("chacha20 key rejected: %v", err)
	}
}
