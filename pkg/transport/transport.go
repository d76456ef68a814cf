// Package transport defines the boundary between the SPDM engine and the
// medium carrying its messages. The engine never interprets transport
// headers; it hands SPDM payloads to an Encap for framing and raw frames to
// a DeviceIO for delivery.
package transport

import "errors"

// Transport layer errors.
var (
	// ErrBufferTooSmall is returned when an output buffer cannot hold the
	// encapsulated or decapsulated message.
	ErrBufferTooSmall = errors.New("transport: output buffer too small")

	// ErrMalformedFrame is returned when a received frame fails framing
	// validation.
	ErrMalformedFrame = errors.New("transport: malformed frame")

	// ErrClosed is returned when the device endpoint has been closed.
	ErrClosed = errors.New("transport: endpoint closed")

	// ErrTimeout is returned when a receive deadline passes.
	ErrTimeout = errors.New("transport: receive timeout")
)

// Encap wraps and unwraps SPDM payloads in transport framing.
type Encap interface {
	// Encap writes the framed form of spdm into out and returns the
	// frame length.
	Encap(spdm []byte, out []byte) (int, error)

	// Decap strips framing from raw into out and returns the SPDM
	// payload length.
	Decap(raw []byte, out []byte) (int, error)
}

// DeviceIO is the physical I/O surface under the engine. Send and Receive
// are the engine's only suspension points; blocking implementations are the
// baseline.
type DeviceIO interface {
	// Send writes one complete frame.
	Send(frame []byte) error

	// Receive fills buf with the next complete frame and returns its
	// length.
	Receive(buf []byte) (int, error)
}
