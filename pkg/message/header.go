// Package message implements the SPDM message payload codecs. Every
// message is header (version, code) followed by Param1, Param2 and a
// payload whose layout can depend on the negotiated version, the selected
// algorithm sizes and runtime flags; payload codecs therefore take the
// engine Context. All multi-byte fields are little-endian.
package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/protocol"
)

// Header is the two-byte SPDM message header.
type Header struct {
	Version protocol.Version
	Code    protocol.RequestResponseCode
}

// Encode writes the header.
func (h *Header) Encode(w *codec.Writer) error {
	if err := h.Version.Encode(w); err != nil {
		return err
	}
	return h.Code.Encode(w)
}

// ReadHeader reads the two header bytes.
func ReadHeader(r *codec.Reader) (Header, error) {
	version, err := protocol.ReadVersion(r)
	if err != nil {
		return Header{}, err
	}
	code, err := protocol.ReadRequestResponseCode(r)
	if err != nil {
		return Header{}, err
	}
	return Header{Version: version, Code: code}, nil
}
