package transport

import (
	"sync"
	"time"
)

// Pipe is an in-memory DeviceIO pair for tests and loopback integration: a
// frame sent on one endpoint is received on the other. Frames are delivered
// in order and never fragmented.
type Pipe struct {
	a, b *pipeEndpoint
}

// NewPipe creates a connected endpoint pair.
func NewPipe() *Pipe {
	a := newPipeEndpoint()
	b := newPipeEndpoint()
	a.peer, b.peer = b, a
	return &Pipe{a: a, b: b}
}

// Requester returns the endpoint the Requester drives.
func (p *Pipe) Requester() DeviceIO {
	return p.a
}

// Responder returns the endpoint the Responder drives.
func (p *Pipe) Responder() DeviceIO {
	return p.b
}

// Close shuts down both endpoints. Blocked receivers return ErrClosed.
func (p *Pipe) Close() {
	p.a.close()
	p.b.close()
}

type pipeEndpoint struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]byte
	closed bool
	peer   *pipeEndpoint

	// ReceiveTimeout bounds how long Receive blocks. Zero means forever.
	ReceiveTimeout time.Duration
}

func newPipeEndpoint() *pipeEndpoint {
	e := &pipeEndpoint{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *pipeEndpoint) Send(frame []byte) error {
	peer := e.peer
	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.closed {
		return ErrClosed
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	peer.queue = append(peer.queue, buf)
	peer.cond.Signal()
	return nil
}

func (e *pipeEndpoint) Receive(buf []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var deadline *time.Timer
	if e.ReceiveTimeout > 0 {
		deadline = time.AfterFunc(e.ReceiveTimeout, func() {
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		})
		defer deadline.Stop()
	}
	start := time.Now()

	for len(e.queue) == 0 {
		if e.closed {
			return 0, ErrClosed
		}
		if e.ReceiveTimeout > 0 && time.Since(start) >= e.ReceiveTimeout {
			return 0, ErrTimeout
		}
		e.cond.Wait()
	}
	frame := e.queue[0]
	e.queue = e.queue[1:]
	if len(buf) < len(frame) {
		return 0, ErrBufferTooSmall
	}
	copy(buf, frame)
	return len(frame), nil
}

func (e *pipeEndpoint) close() {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
}
