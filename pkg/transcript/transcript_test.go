package transcript

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/protocol"
)

func TestManagedBufferAppendReset(t *testing.T) {
	m := NewManagedBuffer(8)
	if err := m.Append([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Append([]byte{4, 5}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !bytes.Equal(m.Bytes(), []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Bytes = %v", m.Bytes())
	}
	m.Reset()
	if m.Len() != 0 {
		t.Errorf("Len after reset = %d", m.Len())
	}
	if err := m.Append([]byte{9}); err != nil {
		t.Fatalf("Append after reset: %v", err)
	}
	if !bytes.Equal(m.Bytes(), []byte{9}) {
		t.Errorf("Bytes after reset = %v", m.Bytes())
	}
}

func TestManagedBufferOverflow(t *testing.T) {
	m := NewManagedBuffer(4)
	if err := m.Append([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Append([]byte{4, 5}); !errors.Is(err, ErrBufferFull) {
		t.Errorf("got %v, want ErrBufferFull", err)
	}
	// A failed append leaves the buffer unchanged.
	if !bytes.Equal(m.Bytes(), []byte{1, 2, 3}) {
		t.Errorf("Bytes after overflow = %v", m.Bytes())
	}
}

func TestHashedTranscriptMatchesOneShot(t *testing.T) {
	h, err := NewHashedTranscript(protocol.HashSHA256)
	if err != nil {
		t.Fatalf("NewHashedTranscript: %v", err)
	}
	if err := h.Append([]byte("abc")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := h.Append([]byte("def")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	want, err := crypto.HashAll(protocol.HashSHA256, []byte("abcdef"))
	if err != nil {
		t.Fatalf("HashAll: %v", err)
	}
	if got := h.Finalize(); !bytes.Equal(got, want) {
		t.Errorf("Finalize = %x, want %x", got, want)
	}

	// Finalize clones: the transcript keeps absorbing afterwards.
	if err := h.Append([]byte("ghi")); err != nil {
		t.Fatalf("Append after Finalize: %v", err)
	}
	want2, _ := crypto.HashAll(protocol.HashSHA256, []byte("abcdefghi"))
	if got := h.Finalize(); !bytes.Equal(got, want2) {
		t.Errorf("second Finalize = %x, want %x", got, want2)
	}
}

func TestHashedTranscriptReset(t *testing.T) {
	h, err := NewHashedTranscript(protocol.HashSHA384)
	if err != nil {
		t.Fatalf("NewHashedTranscript: %v", err)
	}
	if err := h.Append([]byte("stale")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	h.Reset()
	if err := h.Append([]byte("fresh")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	want, _ := crypto.HashAll(protocol.HashSHA384, []byte("fresh"))
	if got := h.Finalize(); !bytes.Equal(got, want) {
		t.Errorf("Finalize after reset = %x, want %x", got, want)
	}
}
