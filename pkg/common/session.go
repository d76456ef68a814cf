package common

import (
	"crypto/cipher"
	"encoding/binary"

	"github.com/pion/transport/v3/replaydetector"

	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
	"github.com/backkem/spdm/pkg/transcript"
)

// MaxSessions bounds the fixed session table of a Context.
const MaxSessions = 4

// securedHeaderSize is the secured-message preamble: session id (4),
// sequence number (2), ciphertext length (2). The preamble doubles as the
// AEAD additional data.
const securedHeaderSize = 8

// replayWindowSize is the sliding receive window for secured messages.
const replayWindowSize = 64

// SessionState is the lifecycle of a secure session.
type SessionState int

const (
	// SessionNotStarted: slot allocated, handshake not begun.
	SessionNotStarted SessionState = iota

	// SessionHandshaking: KEY_EXCHANGE/PSK_EXCHANGE seen, FINISH pending.
	SessionHandshaking

	// SessionEstablished: FINISH/PSK_FINISH completed, data keys live.
	SessionEstablished

	// SessionTerminating: END_SESSION seen, awaiting teardown.
	SessionTerminating
)

func (s SessionState) String() string {
	switch s {
	case SessionNotStarted:
		return "not-started"
	case SessionHandshaking:
		return "handshaking"
	case SessionEstablished:
		return "established"
	case SessionTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// trafficKeys is one direction of a session's secured-message state.
type trafficKeys struct {
	secret []byte
	aead   cipher.AEAD
	salt   []byte
	seq    uint64
	replay replaydetector.ReplayDetector
}

func (t *trafficKeys) nonce() []byte {
	nonce := make([]byte, len(t.salt))
	copy(nonce, t.salt)
	var seqBytes [8]byte
	binary.LittleEndian.PutUint64(seqBytes[:], t.seq)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-8+i] ^= seqBytes[i]
	}
	return nonce
}

// Session is one entry of the Context's session table: lifecycle state,
// per-session measurement transcript, key schedule secrets and the two
// traffic directions.
type Session struct {
	ID    uint32
	State SessionState

	// UsePsk marks a PSK_EXCHANGE session (no DHE secret involved).
	UsePsk bool

	// MessageM and DigestL1L2 are the per-session measurement
	// transcripts, mirroring RuntimeInfo for in-session measurement
	// flows.
	MessageM   *transcript.ManagedBuffer
	DigestL1L2 *transcript.HashedTranscript

	// MessageK logs the handshake exchange (KEY_EXCHANGE or PSK_EXCHANGE
	// through FINISH) that the session's transcript hashes cover.
	MessageK *transcript.ManagedBuffer

	version  protocol.Version
	hashAlgo protocol.BaseHashAlgo
	aeadAlgo protocol.AeadAlgo

	handshakeSecret []byte
	masterSecret    []byte

	// requestDir carries requester-to-responder traffic; responseDir the
	// reverse.
	requestDir  trafficKeys
	responseDir trafficKeys

	// useDataKeys flips when the handshake completes and traffic moves
	// from handshake secrets to data secrets.
	useDataKeys bool

	// pendingTh2 holds the transcript hash for a deferred data-key
	// switch: the responder derives data keys only after its FINISH_RSP
	// went out under the handshake keys.
	pendingTh2 []byte
}

func newSession(id uint32, transcriptCapacity int) *Session {
	return &Session{
		ID:       id,
		State:    SessionNotStarted,
		MessageM: transcript.NewManagedBuffer(transcriptCapacity),
		MessageK: transcript.NewManagedBuffer(transcriptCapacity),
	}
}

// SetupHandshakeKeys derives the handshake traffic keys from the shared
// secret and the transcript hash TH1, and arms both directions.
func (s *Session) SetupHandshakeKeys(version protocol.Version, hash protocol.BaseHashAlgo, aead protocol.AeadAlgo, sharedSecret, th1 []byte) error {
	s.version = version
	s.hashAlgo = hash
	s.aeadAlgo = aead

	zeroSalt := make([]byte, hash.Size())
	handshakeSecret, err := crypto.HkdfExtract(hash, zeroSalt, sharedSecret)
	if err != nil {
		return status.ErrCryptoError
	}
	s.handshakeSecret = handshakeSecret

	reqSecret, err := deriveSecret(version, hash, handshakeSecret, labelRequesterHandshake, th1)
	if err != nil {
		return status.ErrCryptoError
	}
	rspSecret, err := deriveSecret(version, hash, handshakeSecret, labelResponderHandshake, th1)
	if err != nil {
		return status.ErrCryptoError
	}
	if err := s.armDirection(&s.requestDir, reqSecret); err != nil {
		return err
	}
	if err := s.armDirection(&s.responseDir, rspSecret); err != nil {
		return err
	}

	// Prepare the master secret for the data phase.
	derived, err := deriveSecret(version, hash, handshakeSecret, labelDerived, nil)
	if err != nil {
		return status.ErrCryptoError
	}
	master, err := crypto.HkdfExtract(hash, derived, make([]byte, hash.Size()))
	if err != nil {
		return status.ErrCryptoError
	}
	s.masterSecret = master

	s.State = SessionHandshaking
	s.useDataKeys = false
	return nil
}

// SetupPskHandshakeKeys arms the handshake directions directly from
// provider-expanded PSK secrets.
func (s *Session) SetupPskHandshakeKeys(version protocol.Version, hash protocol.BaseHashAlgo, aead protocol.AeadAlgo, reqSecret, rspSecret *protocol.HkdfKey) error {
	s.version = version
	s.hashAlgo = hash
	s.aeadAlgo = aead
	s.UsePsk = true

	if err := s.armDirection(&s.requestDir, reqSecret.Data); err != nil {
		return err
	}
	if err := s.armDirection(&s.responseDir, rspSecret.Data); err != nil {
		return err
	}
	s.State = SessionHandshaking
	s.useDataKeys = false
	return nil
}

// SetupDataKeys derives the application traffic keys from the master
// secret and the transcript hash TH2. Traffic switches to them and the
// session becomes Established.
func (s *Session) SetupDataKeys(th2 []byte) error {
	if s.masterSecret == nil {
		return status.ErrInvalidStateLocal
	}
	reqSecret, err := deriveSecret(s.version, s.hashAlgo, s.masterSecret, labelRequesterData, th2)
	if err != nil {
		return status.ErrCryptoError
	}
	rspSecret, err := deriveSecret(s.version, s.hashAlgo, s.masterSecret, labelResponderData, th2)
	if err != nil {
		return status.ErrCryptoError
	}
	if err := s.armDirection(&s.requestDir, reqSecret); err != nil {
		return err
	}
	if err := s.armDirection(&s.responseDir, rspSecret); err != nil {
		return err
	}
	s.useDataKeys = true
	s.State = SessionEstablished
	return nil
}

// DeferDataKeys records the transcript hash for a data-key switch that
// must happen after the next outbound message.
func (s *Session) DeferDataKeys(th2 []byte) {
	s.pendingTh2 = th2
}

// ActivatePendingDataKeys applies a deferred data-key switch, if any.
func (s *Session) ActivatePendingDataKeys() error {
	if s.pendingTh2 == nil {
		return nil
	}
	th2 := s.pendingTh2
	s.pendingTh2 = nil
	return s.SetupDataKeys(th2)
}

// MarkEstablished is the PSK path's handshake completion: the handshake
// keys stay in place as data keys.
func (s *Session) MarkEstablished() {
	s.useDataKeys = true
	s.State = SessionEstablished
}

func (s *Session) armDirection(dir *trafficKeys, secret []byte) error {
	key, salt, err := deriveAeadMaterial(s.version, s.hashAlgo, s.aeadAlgo, secret)
	if err != nil {
		return status.ErrCryptoError
	}
	aead, err := crypto.NewAead(s.aeadAlgo, key)
	if err != nil {
		return status.ErrCryptoError
	}
	dir.secret = secret
	dir.aead = aead
	dir.salt = salt
	dir.seq = 0
	dir.replay = replaydetector.New(replayWindowSize, 1<<16-1)
	return nil
}

// VerifyData computes the finished HMAC bound to the given transcript hash
// for one traffic direction. Both roles compute it from the same direction
// secret, so comparison is a plain byte match.
func (s *Session) VerifyData(requestDirection bool, thHash []byte) ([]byte, error) {
	dir := &s.responseDir
	if requestDirection {
		dir = &s.requestDir
	}
	if dir.secret == nil {
		return nil, status.ErrInvalidStateLocal
	}
	out, err := crypto.HkdfExpand(s.hashAlgo, dir.secret, binConcat(s.version, s.hashAlgo.Size(), labelFinished, thHash), s.hashAlgo.Size())
	if err != nil {
		return nil, status.ErrCryptoError
	}
	return out, nil
}

// EncodeSecuredMessage wraps spdm in the session's secured-message framing
// for the given direction and returns the number of bytes written to out.
func (s *Session) EncodeSecuredMessage(spdm []byte, out []byte, requestDirection bool) (int, error) {
	dir := &s.responseDir
	if requestDirection {
		dir = &s.requestDir
	}
	if dir.aead == nil {
		return 0, status.ErrInvalidStateLocal
	}
	cipherLen := len(spdm) + dir.aead.Overhead()
	total := securedHeaderSize + cipherLen
	if len(out) < total {
		return 0, status.ErrBufferFull
	}
	binary.LittleEndian.PutUint32(out[0:], s.ID)
	binary.LittleEndian.PutUint16(out[4:], uint16(dir.seq))
	binary.LittleEndian.PutUint16(out[6:], uint16(cipherLen))
	dir.aead.Seal(out[securedHeaderSize:securedHeaderSize], dir.nonce(), spdm, out[:securedHeaderSize])
	dir.seq++
	return total, nil
}

// DecodeSecuredMessage strips the secured-message framing, authenticating
// the payload and enforcing the replay window. Returns the plaintext length
// written to out.
func (s *Session) DecodeSecuredMessage(raw []byte, out []byte, requestDirection bool) (int, error) {
	dir := &s.responseDir
	if requestDirection {
		dir = &s.requestDir
	}
	if dir.aead == nil {
		return 0, status.ErrInvalidStateLocal
	}
	if len(raw) < securedHeaderSize {
		return 0, status.ErrInvalidMsgField
	}
	if binary.LittleEndian.Uint32(raw[0:]) != s.ID {
		return 0, status.ErrInvalidMsgField
	}
	seq := uint64(binary.LittleEndian.Uint16(raw[4:]))
	cipherLen := int(binary.LittleEndian.Uint16(raw[6:]))
	if securedHeaderSize+cipherLen > len(raw) {
		return 0, status.ErrInvalidMsgField
	}
	accept, ok := dir.replay.Check(seq)
	if !ok {
		return 0, status.ErrInvalidMsgField
	}

	// Decrypt with the sender's sequence number in the nonce.
	savedSeq := dir.seq
	dir.seq = seq
	nonce := dir.nonce()
	dir.seq = savedSeq

	plain, err := dir.aead.Open(nil, nonce, raw[securedHeaderSize:securedHeaderSize+cipherLen], raw[:securedHeaderSize])
	if err != nil {
		return 0, status.ErrVerifFail
	}
	accept()
	if len(out) < len(plain) {
		return 0, status.ErrBufferFull
	}
	copy(out, plain)
	return len(plain), nil
}
