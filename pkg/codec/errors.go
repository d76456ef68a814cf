package codec

import "errors"

// Codec layer errors.
var (
	// ErrBufferFull is returned by a Writer when the remaining capacity of
	// its backing buffer cannot hold the value being encoded.
	ErrBufferFull = errors.New("codec: buffer full")

	// ErrUnderflow is returned by a Reader when fewer bytes remain than the
	// value being decoded requires.
	ErrUnderflow = errors.New("codec: buffer underflow")
)
