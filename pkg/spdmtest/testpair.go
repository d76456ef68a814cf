// Package spdmtest provides in-memory fixtures for exercising the engine
// end to end: a generated certificate chain with a matching signer, simple
// measurement and PSK providers, and a connected requester/responder pair
// over the loopback transport.
package spdmtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/requester"
	"github.com/backkem/spdm/pkg/responder"
	"github.com/backkem/spdm/pkg/transport"
)

// Identity is a generated device identity: an SPDM chain buffer, the bare
// DER chain, and the leaf signing key.
type Identity struct {
	Chain   *protocol.CertChainBuffer
	ChainDER *protocol.CertChainData
	LeafKey *ecdsa.PrivateKey
}

// NewIdentity generates a two-certificate ECDSA P-256 chain (self-signed
// root, leaf signed by it) and wraps it in the SPDM chain format for the
// given hash algorithm.
func NewIdentity(hashAlgo protocol.BaseHashAlgo) (*Identity, error) {
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "spdm test root"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	if err != nil {
		return nil, err
	}
	rootCert, err := x509.ParseCertificate(rootDER)
	if err != nil {
		return nil, err
	}

	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "spdm test device"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, rootCert, &leafKey.PublicKey, rootKey)
	if err != nil {
		return nil, err
	}

	der := append(append([]byte{}, rootDER...), leafDER...)
	rootHash, err := crypto.HashAll(hashAlgo, rootDER)
	if err != nil {
		return nil, err
	}

	headerSize := protocol.CertChainHeaderSize(hashAlgo)
	chain := make([]byte, headerSize+len(der))
	binary.LittleEndian.PutUint16(chain[0:], uint16(len(chain)))
	copy(chain[4:], rootHash)
	copy(chain[headerSize:], der)

	return &Identity{
		Chain:    &protocol.CertChainBuffer{Data: chain},
		ChainDER: &protocol.CertChainData{Data: der},
		LeafKey:  leafKey,
	}, nil
}

// Signer signs with the identity's leaf key in SPDM's raw r || s form.
type Signer struct {
	Key *ecdsa.PrivateKey
}

// Sign implements secret.AsymSigner.
func (s *Signer) Sign(hashAlgo protocol.BaseHashAlgo, asymAlgo protocol.BaseAsymAlgo, message []byte) *protocol.Signature {
	digest, err := crypto.HashAll(hashAlgo, message)
	if err != nil {
		return nil
	}
	r, sv, err := ecdsa.Sign(rand.Reader, s.Key, digest)
	if err != nil {
		return nil
	}
	size := asymAlgo.Size()
	out := make([]byte, size)
	r.FillBytes(out[:size/2])
	sv.FillBytes(out[size/2:])
	return &protocol.Signature{Data: out}
}

// Measurements serves a fixed set of DMTF digest blocks.
type Measurements struct {
	Blocks []protocol.MeasurementBlock
}

// NewMeasurements builds count digest-type blocks with deterministic
// content sized for the measurement hash algorithm.
func NewMeasurements(count int, hashAlgo protocol.MeasurementHashAlgo) *Measurements {
	blocks := make([]protocol.MeasurementBlock, 0, count)
	valueSize := hashAlgo.Size()
	if valueSize == 0 {
		valueSize = 32
	}
	for i := 0; i < count; i++ {
		value := make([]byte, valueSize)
		for j := range value {
			value[j] = byte(i + 1)
		}
		meas := protocol.DmtfMeasurement{
			Type:           protocol.DmtfMeasurementFirmware,
			Representation: protocol.DmtfRepresentationDigest,
			ValueSize:      uint16(valueSize),
			Value:          value,
		}
		blocks = append(blocks, protocol.MeasurementBlock{
			Index:         uint8(i + 1),
			Specification: protocol.MeasSpecDMTF,
			Size:          uint16(meas.WireSize()),
			Measurement:   meas,
		})
	}
	return &Measurements{Blocks: blocks}
}

// record encodes a set of blocks into a measurement record.
func record(blocks []protocol.MeasurementBlock) *protocol.MeasurementRecord {
	var data []byte
	for i := range blocks {
		buf := make([]byte, blocks[i].WireSize())
		w := codec.NewWriter(buf)
		if err := blocks[i].Encode(w); err != nil {
			return nil
		}
		data = append(data, w.Bytes()...)
	}
	return &protocol.MeasurementRecord{
		NumberOfBlocks: uint8(len(blocks)),
		RecordLength:   uint32(len(data)),
		Data:           data,
	}
}

// MeasurementCollection implements secret.MeasurementProvider.
func (m *Measurements) MeasurementCollection(version protocol.Version, spec protocol.MeasurementSpecification, hashAlgo protocol.MeasurementHashAlgo, index int) *protocol.MeasurementRecord {
	if index == protocol.MeasurementIndexAll {
		return record(m.Blocks)
	}
	for i := range m.Blocks {
		if int(m.Blocks[i].Index) == index {
			return record(m.Blocks[i : i+1])
		}
	}
	return nil
}

// MeasurementSummaryHash implements secret.MeasurementProvider.
func (m *Measurements) MeasurementSummaryHash(version protocol.Version, baseHash protocol.BaseHashAlgo, spec protocol.MeasurementSpecification, hashAlgo protocol.MeasurementHashAlgo, summaryType protocol.MeasurementSummaryHashType) *protocol.Digest {
	rec := record(m.Blocks)
	if rec == nil {
		return nil
	}
	digest, err := crypto.HashAll(baseHash, rec.Data)
	if err != nil {
		return nil
	}
	return &protocol.Digest{Data: digest}
}

// Psk expands a fixed pre-shared key through the engine's HKDF.
type Psk struct {
	Key []byte
}

func (p *Psk) expand(hashAlgo protocol.BaseHashAlgo, info []byte) (*protocol.HkdfKey, error) {
	prk, err := crypto.HkdfExtract(hashAlgo, nil, p.Key)
	if err != nil {
		return nil, err
	}
	out, err := crypto.HkdfExpand(hashAlgo, prk, info, hashAlgo.Size())
	if err != nil {
		return nil, err
	}
	return &protocol.HkdfKey{Data: out}, nil
}

// HandshakeSecretHkdfExpand implements secret.PskSecretProvider.
func (p *Psk) HandshakeSecretHkdfExpand(version protocol.Version, hashAlgo protocol.BaseHashAlgo, pskHint, info []byte) (*protocol.HkdfKey, error) {
	return p.expand(hashAlgo, info)
}

// MasterSecretHkdfExpand implements secret.PskSecretProvider.
func (p *Psk) MasterSecretHkdfExpand(version protocol.Version, hashAlgo protocol.BaseHashAlgo, pskHint, info []byte) (*protocol.HkdfKey, error) {
	return p.expand(hashAlgo, info)
}

// Pair is a connected requester/responder over a loopback pipe.
type Pair struct {
	Requester *requester.Context
	Responder *responder.Context
	Identity  *Identity
	Pipe      *transport.Pipe

	done chan struct{}
}

// Config returns the shared baseline configuration the pair negotiates
// under: SPDM 1.2, SHA-256/384, ECDSA P-256, ECDHE P-256, AES-128-GCM.
func Config() common.ConfigInfo {
	return common.ConfigInfo{
		SpdmVersions:         []protocol.Version{protocol.Version11, protocol.Version12},
		ReqCapabilities:      protocol.ReqCapCert | protocol.ReqCapChal | protocol.ReqCapEncrypt | protocol.ReqCapMAC | protocol.ReqCapKeyEx | protocol.ReqCapPsk | protocol.ReqCapHbeat,
		RspCapabilities:      protocol.RspCapCert | protocol.RspCapChal | protocol.RspCapMeasSig | protocol.RspCapEncrypt | protocol.RspCapMAC | protocol.RspCapKeyEx | protocol.RspCapPsk | protocol.RspCapHbeat,
		CTExponent:           12,
		MeasurementHashAlgos: protocol.MeasHashSHA256 | protocol.MeasHashSHA384,
		BaseHashAlgos:        protocol.HashSHA256 | protocol.HashSHA384,
		BaseAsymAlgos:        protocol.AsymEcdsaP256,
		DheAlgos:             protocol.DheSecp256r1,
		AeadAlgos:            protocol.AeadAes128Gcm,
		ReqAsymAlgos:         protocol.AsymEcdsaP256,
		KeySchedules:         protocol.KeyScheduleSpdm,
	}
}

// NewPair builds the pair with the given configs, provisioning the
// responder identity into slot 0 and pinning its DER chain on the
// requester.
func NewPair(reqConfig, rspConfig common.ConfigInfo) (*Pair, error) {
	hashAlgo := protocol.HashSHA384
	identity, err := NewIdentity(hashAlgo)
	if err != nil {
		return nil, err
	}

	pipe := transport.NewPipe()
	encap := transport.Mctp{}

	var rspProvision common.ProvisionInfo
	rspProvision.MyCertChain[0] = identity.Chain
	rsp, err := responder.New(rspConfig, rspProvision, encap, pipe.Responder())
	if err != nil {
		return nil, err
	}
	measurements := NewMeasurements(5, protocol.MeasHashSHA384)
	rsp.Measurements = measurements
	rsp.Signer = &Signer{Key: identity.LeafKey}
	rsp.Psk = &Psk{Key: []byte("spdm test psk")}

	reqProvision := common.ProvisionInfo{
		PeerCertChainData: identity.ChainDER,
		PskHint:           []byte("hint"),
	}
	req, err := requester.New(reqConfig, reqProvision, encap, pipe.Requester())
	if err != nil {
		return nil, err
	}
	req.SetPskProvider(&Psk{Key: []byte("spdm test psk")})

	return &Pair{
		Requester: req,
		Responder: rsp,
		Identity:  identity,
		Pipe:      pipe,
		done:      make(chan struct{}),
	}, nil
}

// Start runs the responder loop until the pipe closes.
func (p *Pair) Start() {
	go func() {
		defer close(p.done)
		for {
			if err := p.Responder.ProcessMessage(); err != nil {
				return
			}
		}
	}()
}

// Close shuts the pipe down and waits for the responder loop to exit.
func (p *Pair) Close() {
	p.Pipe.Close()
	<-p.done
}
