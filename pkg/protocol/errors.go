package protocol

import "errors"

// Data model errors.
var (
	// ErrUnknownBits is returned when a closed bit set carries bits the
	// implementation does not define.
	ErrUnknownBits = errors.New("protocol: unknown bits in flag set")

	// ErrSizeExceeded is returned when a variable-length container would
	// overflow its fixed capacity.
	ErrSizeExceeded = errors.New("protocol: container capacity exceeded")
)
