package crypto

import (
	"crypto/rand"
	"encoding"
	"hash"

	"github.com/backkem/spdm/pkg/protocol"
)

// Randomer fills a buffer with cryptographically secure entropy.
type Randomer interface {
	Fill(b []byte) error
}

var randomProvider Randomer = stdRandom{}

// RegisterRandom replaces the entropy provider.
func RegisterRandom(p Randomer) { randomProvider = p }

// Random fills b with cryptographically secure entropy.
func Random(b []byte) error {
	return randomProvider.Fill(b)
}

// stdRandom reads from the operating system entropy source.
type stdRandom struct{}

func (stdRandom) Fill(b []byte) error {
	if _, err := rand.Read(b); err != nil {
		return ErrEntropyFail
	}
	return nil
}

// HashCtx is an incremental hash context that can be cloned mid-stream.
type HashCtx interface {
	// Update feeds more data into the running digest.
	Update(b []byte)

	// Finalize returns the digest of all data fed so far.
	Finalize() []byte

	// Clone returns an independent copy of the context's current state.
	Clone() HashCtx
}

// Hash dispatches hashing operations to the negotiated algorithm.
type Hash interface {
	// HashAll computes the digest of data in one shot.
	HashAll(algo protocol.BaseHashAlgo, data []byte) ([]byte, error)

	// NewCtx creates an incremental hash context for the given algorithm.
	NewCtx(algo protocol.BaseHashAlgo) (HashCtx, error)
}

var hashProvider Hash = stdHash{}

// RegisterHash replaces the hashing provider.
func RegisterHash(p Hash) { hashProvider = p }

// HashAll computes the digest of data in one shot using the negotiated
// algorithm.
func HashAll(algo protocol.BaseHashAlgo, data []byte) ([]byte, error) {
	return hashProvider.HashAll(algo, data)
}

// NewHashCtx creates an incremental hash context for the given algorithm.
func NewHashCtx(algo protocol.BaseHashAlgo) (HashCtx, error) {
	return hashProvider.NewCtx(algo)
}

// stdHash dispatches to the standard library SHA-2 family and x/crypto's
// SHA-3 family.
type stdHash struct{}

func newHash(algo protocol.BaseHashAlgo) (hash.Hash, error) {
	newFn, err := hashConstructor(algo)
	if err != nil {
		return nil, err
	}
	return newFn(), nil
}

func (stdHash) HashAll(algo protocol.BaseHashAlgo, data []byte) ([]byte, error) {
	h, err := newHash(algo)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

func (stdHash) NewCtx(algo protocol.BaseHashAlgo) (HashCtx, error) {
	h, err := newHash(algo)
	if err != nil {
		return nil, err
	}
	return &stdHashCtx{algo: algo, h: h}, nil
}

// stdHashCtx wraps a hash.Hash. Cloning round-trips the running state
// through the digest's binary marshaling, which every supported algorithm
// implements.
type stdHashCtx struct {
	algo protocol.BaseHashAlgo
	h    hash.Hash
}

func (c *stdHashCtx) Update(b []byte) {
	c.h.Write(b)
}

func (c *stdHashCtx) Finalize() []byte {
	return c.h.Sum(nil)
}

func (c *stdHashCtx) Clone() HashCtx {
	m, ok := c.h.(encoding.BinaryMarshaler)
	if !ok {
		panic("crypto: hash state is not marshalable")
	}
	state, err := m.MarshalBinary()
	if err != nil {
		panic(err)
	}
	fresh, _ := newHash(c.algo)
	if err := fresh.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		panic(err)
	}
	return &stdHashCtx{algo: c.algo, h: fresh}
}
