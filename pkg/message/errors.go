package message

import "errors"

// ErrInvalidField is returned when a payload fails structural validation:
// a reserved field with a mandatory value, a length that contradicts its
// content, or an unsupported external-algorithm count.
var ErrInvalidField = errors.New("message: invalid field")
