package common

import (
	"bytes"
	"testing"

	"lukechampine.com/frand"

	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

func newHandshakenSession(t *testing.T) *Session {
	t.Helper()
	sess := newSession(0x11223344, 4096)
	shared := make([]byte, 32)
	frand.Read(shared)
	th1 := make([]byte, 48)
	frand.Read(th1)
	err := sess.SetupHandshakeKeys(protocol.Version12, protocol.HashSHA384, protocol.AeadAes128Gcm, shared, th1)
	if err != nil {
		t.Fatalf("SetupHandshakeKeys: %v", err)
	}
	return sess
}

func TestSecuredMessageRoundtrip(t *testing.T) {
	sess := newHandshakenSession(t)

	plain := []byte("GET_MEASUREMENTS over a session")
	framed := make([]byte, len(plain)+64)
	n, err := sess.EncodeSecuredMessage(plain, framed, true)
	if err != nil {
		t.Fatalf("EncodeSecuredMessage: %v", err)
	}

	out := make([]byte, len(plain)+64)
	m, err := sess.DecodeSecuredMessage(framed[:n], out, true)
	if err != nil {
		t.Fatalf("DecodeSecuredMessage: %v", err)
	}
	if !bytes.Equal(out[:m], plain) {
		t.Errorf("roundtrip = %q", out[:m])
	}
}

func TestSecuredMessageReplayRejected(t *testing.T) {
	sess := newHandshakenSession(t)

	plain := []byte("one-shot")
	framed := make([]byte, 128)
	n, err := sess.EncodeSecuredMessage(plain, framed, true)
	if err != nil {
		t.Fatalf("EncodeSecuredMessage: %v", err)
	}

	out := make([]byte, 128)
	if _, err := sess.DecodeSecuredMessage(framed[:n], out, true); err != nil {
		t.Fatalf("first decode: %v", err)
	}
	if _, err := sess.DecodeSecuredMessage(framed[:n], out, true); err == nil {
		t.Errorf("replayed frame accepted")
	}
}

func TestSecuredMessageTamperDetected(t *testing.T) {
	sess := newHandshakenSession(t)

	framed := make([]byte, 128)
	n, err := sess.EncodeSecuredMessage([]byte("payload"), framed, true)
	if err != nil {
		t.Fatalf("EncodeSecuredMessage: %v", err)
	}
	framed[n-1] ^= 0xFF

	out := make([]byte, 128)
	if _, err := sess.DecodeSecuredMessage(framed[:n], out, true); err != status.ErrVerifFail {
		t.Errorf("got %v, want ErrVerifFail", err)
	}
}

func TestSecuredMessageWrongSessionID(t *testing.T) {
	sess := newHandshakenSession(t)

	framed := make([]byte, 128)
	n, err := sess.EncodeSecuredMessage([]byte("payload"), framed, true)
	if err != nil {
		t.Fatalf("EncodeSecuredMessage: %v", err)
	}
	framed[0] ^= 0x01

	out := make([]byte, 128)
	if _, err := sess.DecodeSecuredMessage(framed[:n], out, true); err != status.ErrInvalidMsgField {
		t.Errorf("got %v, want ErrInvalidMsgField", err)
	}
}

func TestVerifyDataSymmetric(t *testing.T) {
	sess := newHandshakenSession(t)
	th := make([]byte, 48)
	frand.Read(th)

	a, err := sess.VerifyData(true, th)
	if err != nil {
		t.Fatalf("VerifyData: %v", err)
	}
	b, err := sess.VerifyData(true, th)
	if err != nil {
		t.Fatalf("VerifyData: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("verify data not deterministic")
	}
	c, err := sess.VerifyData(false, th)
	if err != nil {
		t.Fatalf("VerifyData: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Errorf("directions share verify data")
	}
}

func TestDataKeySwitch(t *testing.T) {
	sess := newHandshakenSession(t)

	th2 := make([]byte, 48)
	frand.Read(th2)
	if err := sess.SetupDataKeys(th2); err != nil {
		t.Fatalf("SetupDataKeys: %v", err)
	}
	if sess.State != SessionEstablished {
		t.Errorf("state = %v, want Established", sess.State)
	}

	plain := []byte("application data")
	framed := make([]byte, 128)
	n, err := sess.EncodeSecuredMessage(plain, framed, false)
	if err != nil {
		t.Fatalf("EncodeSecuredMessage: %v", err)
	}
	out := make([]byte, 128)
	m, err := sess.DecodeSecuredMessage(framed[:n], out, false)
	if err != nil {
		t.Fatalf("DecodeSecuredMessage: %v", err)
	}
	if !bytes.Equal(out[:m], plain) {
		t.Errorf("roundtrip after key switch = %q", out[:m])
	}
}

func TestSessionTable(t *testing.T) {
	ctx, err := NewContext(ConfigInfo{
		SpdmVersions:  []protocol.Version{protocol.Version12},
		BaseHashAlgos: protocol.HashSHA256,
		BaseAsymAlgos: protocol.AsymEcdsaP256,
	}, ProvisionInfo{}, nil, nil, "test")
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	if _, err := ctx.Session(42); err != status.ErrSessionNotFound {
		t.Errorf("unknown lookup: got %v, want ErrSessionNotFound", err)
	}

	for i := 0; i < MaxSessions; i++ {
		if _, err := ctx.NewSession(uint32(i)); err != nil {
			t.Fatalf("NewSession %d: %v", i, err)
		}
	}
	if _, err := ctx.NewSession(99); err != status.ErrSessionLimit {
		t.Errorf("table overflow: got %v, want ErrSessionLimit", err)
	}
	if _, err := ctx.NewSession(1); err != status.ErrSessionLimit && err != status.ErrInvalidParameter {
		t.Errorf("duplicate id: got %v", err)
	}

	ctx.FreeSession(1)
	if _, err := ctx.Session(1); err != status.ErrSessionNotFound {
		t.Errorf("freed session still present")
	}
	if _, err := ctx.NewSession(100); err != nil {
		t.Errorf("slot not reusable after free: %v", err)
	}
}

func TestAppendMessageMResetsCleanly(t *testing.T) {
	ctx, err := NewContext(ConfigInfo{
		SpdmVersions:  []protocol.Version{protocol.Version12},
		BaseHashAlgos: protocol.HashSHA256,
		BaseAsymAlgos: protocol.AsymEcdsaP256,
	}, ProvisionInfo{}, nil, nil, "test")
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	ctx.Negotiate.BaseHashSel = protocol.HashSHA256

	if err := ctx.AppendMessageM(nil, []byte{1, 2, 3}); err != nil {
		t.Fatalf("AppendMessageM: %v", err)
	}
	got, err := ctx.L1L2Transcript(nil)
	if err != nil || !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("transcript = %v, %v", got, err)
	}
	ctx.ResetMessageM(nil)
	got, _ = ctx.L1L2Transcript(nil)
	if len(got) != 0 {
		t.Errorf("transcript not reset: %v", got)
	}

	// Session-scoped transcript is independent of the main one.
	sess, err := ctx.NewSession(7)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	id := sess.ID
	if err := ctx.AppendMessageM(&id, []byte{9}); err != nil {
		t.Fatalf("AppendMessageM session: %v", err)
	}
	if ctx.Runtime.MessageM.Len() != 0 {
		t.Errorf("session append leaked into main transcript")
	}
	got, err = ctx.L1L2Transcript(&id)
	if err != nil || !bytes.Equal(got, []byte{9}) {
		t.Errorf("session transcript = %v, %v", got, err)
	}
}
