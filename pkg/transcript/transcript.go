// Package transcript implements the rolling message logs whose hashes feed
// every SPDM signature. Two representations exist: a bounded raw buffer that
// retains the exact bytes, and a running hash context that absorbs them
// incrementally for long sessions.
package transcript

import (
	"errors"

	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/protocol"
)

// ErrBufferFull is returned when an append would exceed a raw transcript's
// fixed capacity.
var ErrBufferFull = errors.New("transcript: buffer full")

// Transcript absorbs the raw bytes of every in-flight message of a flow.
type Transcript interface {
	// Append absorbs the given message bytes.
	Append(b []byte) error

	// Reset discards everything absorbed so far.
	Reset()
}

// ManagedBuffer is a bounded append-only byte log.
type ManagedBuffer struct {
	data []byte
	cap  int
}

// NewManagedBuffer creates a buffer bounded to capacity bytes.
func NewManagedBuffer(capacity int) *ManagedBuffer {
	return &ManagedBuffer{data: make([]byte, 0, capacity), cap: capacity}
}

// Append absorbs b, failing with ErrBufferFull when capacity would be
// exceeded. A failed append leaves the buffer unchanged.
func (m *ManagedBuffer) Append(b []byte) error {
	if len(m.data)+len(b) > m.cap {
		return ErrBufferFull
	}
	m.data = append(m.data, b...)
	return nil
}

// Bytes returns the accumulated transcript.
func (m *ManagedBuffer) Bytes() []byte {
	return m.data
}

// Len returns the accumulated size.
func (m *ManagedBuffer) Len() int {
	return len(m.data)
}

// Reset discards the accumulated bytes, keeping capacity.
func (m *ManagedBuffer) Reset() {
	m.data = m.data[:0]
}

// HashedTranscript absorbs message bytes into a running hash context
// instead of retaining them. Finalize clones the context so the transcript
// can keep growing after a signature check.
type HashedTranscript struct {
	algo protocol.BaseHashAlgo
	ctx  crypto.HashCtx
}

// NewHashedTranscript creates a running-hash transcript for the negotiated
// hash algorithm.
func NewHashedTranscript(algo protocol.BaseHashAlgo) (*HashedTranscript, error) {
	ctx, err := crypto.NewHashCtx(algo)
	if err != nil {
		return nil, err
	}
	return &HashedTranscript{algo: algo, ctx: ctx}, nil
}

// Append absorbs b into the running hash.
func (h *HashedTranscript) Append(b []byte) error {
	h.ctx.Update(b)
	return nil
}

// Finalize returns the digest of everything absorbed so far without
// disturbing the running context.
func (h *HashedTranscript) Finalize() []byte {
	return h.ctx.Clone().Finalize()
}

// Reset restarts the running hash.
func (h *HashedTranscript) Reset() {
	ctx, err := crypto.NewHashCtx(h.algo)
	if err != nil {
		// The algorithm was valid at construction; a provider swap-out
		// mid-session is a programming error.
		panic(err)
	}
	h.ctx = ctx
}
