package spdmtest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// negotiate runs the version/capability/algorithm phase.
func negotiate(t *testing.T, pair *Pair) {
	t.Helper()
	if err := pair.Requester.SendReceiveVersion(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if err := pair.Requester.SendReceiveCapabilities(); err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	if err := pair.Requester.SendReceiveAlgorithms(); err != nil {
		t.Fatalf("algorithms: %v", err)
	}
}

func newStartedPair(t *testing.T) *Pair {
	t.Helper()
	pair, err := NewPair(Config(), Config())
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	pair.Start()
	t.Cleanup(pair.Close)
	return pair
}

func TestNegotiationSelectsStrongestCommon(t *testing.T) {
	pair := newStartedPair(t)
	negotiate(t, pair)

	neg := pair.Requester.Common.Negotiate
	if neg.SpdmVersionSel != protocol.Version12 {
		t.Errorf("version = %v, want 1.2", neg.SpdmVersionSel)
	}
	if neg.BaseHashSel != protocol.HashSHA384 {
		t.Errorf("hash = %#x, want SHA-384", uint32(neg.BaseHashSel))
	}
	if neg.BaseAsymSel != protocol.AsymEcdsaP256 {
		t.Errorf("asym = %#x, want ECDSA P-256", uint32(neg.BaseAsymSel))
	}

	// Both sides must agree on transcripts for the later signatures.
	reqA := pair.Requester.Common.Runtime.MessageA.Bytes()
	rspA := pair.Responder.Common.Runtime.MessageA.Bytes()
	if !bytes.Equal(reqA, rspA) {
		t.Errorf("message_a diverged: %d vs %d bytes", len(reqA), len(rspA))
	}
}

func TestCertificateRetrievalWithPinnedChain(t *testing.T) {
	pair := newStartedPair(t)
	negotiate(t, pair)

	if err := pair.Requester.SendReceiveCertificate(0); err != nil {
		t.Fatalf("certificate: %v", err)
	}

	chain := pair.Requester.Common.Peer.PeerCertChain[0]
	if chain == nil {
		t.Fatal("peer chain not populated")
	}
	if chain.DataSize() != pair.Identity.Chain.DataSize() {
		t.Errorf("data_size = %d, want %d", chain.DataSize(), pair.Identity.Chain.DataSize())
	}
	if !bytes.Equal(chain.Data, pair.Identity.Chain.Data) {
		t.Errorf("assembled chain differs from provisioned chain")
	}
}

func TestCertificateMultiPortionAssembly(t *testing.T) {
	pair := newStartedPair(t)

	// An 800-byte synthetic chain in slot 1 forces two portions
	// (512 + 288) under the portion cap. The pinned chain is dropped
	// below, so no chain verification runs.
	synthetic := make([]byte, 800)
	for i := range synthetic {
		synthetic[i] = byte(i)
	}
	pair.Responder.Common.Provision.MyCertChain[1] = &protocol.CertChainBuffer{Data: synthetic}

	// Drop the pinned chain so the synthetic slot skips verification.
	pair.Requester.Common.Provision.PeerCertChainData = nil

	negotiate(t, pair)
	if err := pair.Requester.SendReceiveCertificate(1); err != nil {
		t.Fatalf("certificate: %v", err)
	}

	chain := pair.Requester.Common.Peer.PeerCertChain[1]
	if chain.DataSize() != 800 {
		t.Errorf("data_size = %d, want 800", chain.DataSize())
	}
	if !bytes.Equal(chain.Data, synthetic) {
		t.Errorf("assembled chain corrupted")
	}
}

func TestCertificateSlotOutOfRange(t *testing.T) {
	pair := newStartedPair(t)
	negotiate(t, pair)

	if err := pair.Requester.SendReceiveCertificate(protocol.MaxSlots); !errors.Is(err, status.ErrInvalidParameter) {
		t.Errorf("got %v, want ErrInvalidParameter", err)
	}
}

func TestChallengeAuth(t *testing.T) {
	pair := newStartedPair(t)
	negotiate(t, pair)
	if err := pair.Requester.SendReceiveCertificate(0); err != nil {
		t.Fatalf("certificate: %v", err)
	}
	if err := pair.Requester.SendReceiveChallenge(0, protocol.SummaryHashAll); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if pair.Requester.Common.Runtime.ConnectionState != common.ConnectionAuthenticated {
		t.Errorf("state = %v, want Authenticated", pair.Requester.Common.Runtime.ConnectionState)
	}
}

func TestSignedMeasurements(t *testing.T) {
	pair := newStartedPair(t)
	negotiate(t, pair)
	if err := pair.Requester.SendReceiveCertificate(0); err != nil {
		t.Fatalf("certificate: %v", err)
	}

	var record protocol.MeasurementRecord
	total, err := pair.Requester.SendReceiveMeasurement(nil, 0,
		message.MeasAttrSignatureRequested, protocol.MeasurementOperationQueryTotal, &record)
	if err != nil {
		t.Fatalf("query total: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}

	blocks, err := pair.Requester.SendReceiveMeasurement(nil, 0,
		message.MeasAttrSignatureRequested, protocol.MeasurementOperationAll, &record)
	if err != nil {
		t.Fatalf("request all: %v", err)
	}
	if blocks != 5 || record.NumberOfBlocks != 5 {
		t.Errorf("blocks = %d, record blocks = %d", blocks, record.NumberOfBlocks)
	}

	// A signed transaction leaves the transcript clean for the next one.
	if pair.Requester.Common.Runtime.MessageM.Len() != 0 {
		t.Errorf("message_m not reset after signed transaction")
	}

	// Single-index request.
	one, err := pair.Requester.SendReceiveMeasurement(nil, 0,
		message.MeasAttrSignatureRequested, protocol.MeasurementOperation(2), &record)
	if err != nil {
		t.Fatalf("single index: %v", err)
	}
	if one != 1 || record.NumberOfBlocks != 1 {
		t.Errorf("single index returned %d blocks", record.NumberOfBlocks)
	}
}

func TestUnsignedMeasurementsSlotOutOfRange(t *testing.T) {
	pair := newStartedPair(t)
	negotiate(t, pair)

	var record protocol.MeasurementRecord
	_, err := pair.Requester.SendReceiveMeasurement(nil, protocol.MaxSlots,
		0, protocol.MeasurementOperationQueryTotal, &record)
	if !errors.Is(err, status.ErrInvalidStateLocal) {
		t.Errorf("got %v, want ErrInvalidStateLocal", err)
	}
}

// flakySigner corrupts its first signature and then behaves.
type flakySigner struct {
	inner *Signer
	fired bool
}

func (f *flakySigner) Sign(hashAlgo protocol.BaseHashAlgo, asymAlgo protocol.BaseAsymAlgo, msg []byte) *protocol.Signature {
	sig := f.inner.Sign(hashAlgo, asymAlgo, msg)
	if sig != nil && !f.fired {
		f.fired = true
		sig.Data[0] ^= 0xFF
	}
	return sig
}

func TestMeasurementVerifyFailureResetsTranscript(t *testing.T) {
	pair := newStartedPair(t)
	pair.Responder.Signer = &flakySigner{inner: &Signer{Key: pair.Identity.LeafKey}}

	negotiate(t, pair)
	if err := pair.Requester.SendReceiveCertificate(0); err != nil {
		t.Fatalf("certificate: %v", err)
	}

	var record protocol.MeasurementRecord
	_, err := pair.Requester.SendReceiveMeasurement(nil, 0,
		message.MeasAttrSignatureRequested, protocol.MeasurementOperationAll, &record)
	if !errors.Is(err, status.ErrVerifFail) {
		t.Fatalf("got %v, want ErrVerifFail", err)
	}
	if pair.Requester.Common.Runtime.MessageM.Len() != 0 {
		t.Errorf("message_m not reset after verification failure")
	}

	// The next attempt runs on a clean transcript and succeeds.
	blocks, err := pair.Requester.SendReceiveMeasurement(nil, 0,
		message.MeasAttrSignatureRequested, protocol.MeasurementOperationAll, &record)
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if blocks != 5 {
		t.Errorf("retry returned %d blocks", blocks)
	}
}

func TestSignedMeasurementsHashedTranscripts(t *testing.T) {
	reqConfig := Config()
	reqConfig.TranscriptMode = common.TranscriptHashed
	rspConfig := Config()
	rspConfig.TranscriptMode = common.TranscriptHashed

	pair, err := NewPair(reqConfig, rspConfig)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	pair.Start()
	t.Cleanup(pair.Close)

	negotiate(t, pair)
	if err := pair.Requester.SendReceiveCertificate(0); err != nil {
		t.Fatalf("certificate: %v", err)
	}

	var record protocol.MeasurementRecord
	blocks, err := pair.Requester.SendReceiveMeasurement(nil, 0,
		message.MeasAttrSignatureRequested, protocol.MeasurementOperationAll, &record)
	if err != nil {
		t.Fatalf("measurement: %v", err)
	}
	if blocks != 5 {
		t.Errorf("blocks = %d, want 5", blocks)
	}

	// Running-hash transcripts drop after the signed transaction too.
	if pair.Requester.Common.Runtime.DigestL1L2 != nil {
		t.Errorf("running hash not reset after signed transaction")
	}
}

func TestKeyExchangeSessionLifecycle(t *testing.T) {
	pair := newStartedPair(t)
	negotiate(t, pair)
	if err := pair.Requester.SendReceiveCertificate(0); err != nil {
		t.Fatalf("certificate: %v", err)
	}

	sessionID, err := pair.Requester.SendReceiveKeyExchange(0, protocol.SummaryHashNone)
	if err != nil {
		t.Fatalf("key exchange: %v", err)
	}
	sess, err := pair.Requester.Common.Session(sessionID)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if sess.State != common.SessionHandshaking {
		t.Errorf("state = %v, want Handshaking", sess.State)
	}

	if err := pair.Requester.SendReceiveFinish(sessionID, 0); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sess.State != common.SessionEstablished {
		t.Errorf("state = %v, want Established", sess.State)
	}

	// Signed measurements inside the session.
	var record protocol.MeasurementRecord
	blocks, err := pair.Requester.SendReceiveMeasurement(&sessionID, 0,
		message.MeasAttrSignatureRequested, protocol.MeasurementOperationAll, &record)
	if err != nil {
		t.Fatalf("in-session measurement: %v", err)
	}
	if blocks != 5 {
		t.Errorf("in-session blocks = %d", blocks)
	}

	if err := pair.Requester.SendReceiveHeartbeat(sessionID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := pair.Requester.SendReceiveEndSession(sessionID); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if _, err := pair.Requester.Common.Session(sessionID); !errors.Is(err, status.ErrSessionNotFound) {
		t.Errorf("session survived teardown: %v", err)
	}
}

func TestPskSessionLifecycle(t *testing.T) {
	pair := newStartedPair(t)
	negotiate(t, pair)

	sessionID, err := pair.Requester.SendReceivePskExchange(protocol.SummaryHashNone)
	if err != nil {
		t.Fatalf("psk exchange: %v", err)
	}
	if err := pair.Requester.SendReceivePskFinish(sessionID); err != nil {
		t.Fatalf("psk finish: %v", err)
	}
	sess, err := pair.Requester.Common.Session(sessionID)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if sess.State != common.SessionEstablished {
		t.Errorf("state = %v, want Established", sess.State)
	}
	if err := pair.Requester.SendReceiveEndSession(sessionID); err != nil {
		t.Fatalf("end session: %v", err)
	}
}

func TestDigestsMatchProvisionedChain(t *testing.T) {
	pair := newStartedPair(t)
	negotiate(t, pair)

	mask, digests, err := pair.Requester.SendReceiveDigests()
	if err != nil {
		t.Fatalf("digests: %v", err)
	}
	if mask != 0x01 || len(digests) != 1 {
		t.Fatalf("mask = %#x, %d digests", mask, len(digests))
	}
	want, err := crypto.HashAll(protocol.HashSHA384, pair.Identity.Chain.Data)
	if err != nil {
		t.Fatalf("HashAll: %v", err)
	}
	if !bytes.Equal(digests[0], want) {
		t.Errorf("slot 0 digest = %x, want %x", digests[0], want)
	}
}

func TestOperationsRequireNegotiation(t *testing.T) {
	pair := newStartedPair(t)

	if err := pair.Requester.SendReceiveCapabilities(); !errors.Is(err, status.ErrInvalidStateLocal) {
		t.Errorf("capabilities before version: got %v", err)
	}
	if err := pair.Requester.SendReceiveCertificate(0); !errors.Is(err, status.ErrInvalidStateLocal) {
		t.Errorf("certificate before negotiation: got %v", err)
	}
}
