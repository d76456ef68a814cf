package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
)

// ErrorCode is Param1 of an ERROR response (DSP0274 Table 48). Unknown
// codes survive decode unchanged.
type ErrorCode uint8

const (
	ErrorInvalidRequest       ErrorCode = 0x01
	ErrorBusy                 ErrorCode = 0x03
	ErrorUnexpectedRequest    ErrorCode = 0x04
	ErrorUnspecified          ErrorCode = 0x05
	ErrorDecryptError         ErrorCode = 0x06
	ErrorUnsupportedRequest   ErrorCode = 0x07
	ErrorRequestInFlight      ErrorCode = 0x08
	ErrorInvalidResponseCode  ErrorCode = 0x09
	ErrorSessionLimitExceeded ErrorCode = 0x0A
	ErrorSessionRequired      ErrorCode = 0x0B
	ErrorResetRequired        ErrorCode = 0x0C
	ErrorResponseTooLarge     ErrorCode = 0x0D
	ErrorRequestTooLarge      ErrorCode = 0x0E
	ErrorLargeResponse        ErrorCode = 0x0F
	ErrorMessageLost          ErrorCode = 0x10
	ErrorResponseNotReady     ErrorCode = 0x42
	ErrorRequestResynch       ErrorCode = 0x43
)

// ErrorResponse is the ERROR payload: code, code-specific data byte, and
// optional extended data.
type ErrorResponse struct {
	Code         ErrorCode
	Data         uint8
	ExtendedData []byte
}

// Encode writes the payload.
func (p *ErrorResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutU8(uint8(p.Code)); err != nil { // param1
		return err
	}
	if err := w.PutU8(p.Data); err != nil { // param2
		return err
	}
	return w.PutBytes(p.ExtendedData)
}

// Decode reads the payload. Extended data is whatever follows the
// parameters; its interpretation is code-specific.
func (p *ErrorResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	code, err := r.U8() // param1
	if err != nil {
		return err
	}
	data, err := r.U8() // param2
	if err != nil {
		return err
	}
	ext, err := r.Bytes(r.Left())
	if err != nil {
		return err
	}
	p.Code = ErrorCode(code)
	p.Data = data
	p.ExtendedData = ext
	return nil
}

// ResponseNotReadyExt is the extended data of a ResponseNotReady error:
// retry delay exponent, the original request code, the token to present in
// RESPOND_IF_READY, and the retry multiplier.
type ResponseNotReadyExt struct {
	RdtExponent uint8
	RequestCode uint8
	Token       uint8
	Rdtm        uint8
}

// ParseResponseNotReadyExt decodes the four extended-data bytes.
func ParseResponseNotReadyExt(ext []byte) (ResponseNotReadyExt, error) {
	r := codec.NewReader(ext)
	var out ResponseNotReadyExt
	var err error
	if out.RdtExponent, err = r.U8(); err != nil {
		return ResponseNotReadyExt{}, err
	}
	if out.RequestCode, err = r.U8(); err != nil {
		return ResponseNotReadyExt{}, err
	}
	if out.Token, err = r.U8(); err != nil {
		return ResponseNotReadyExt{}, err
	}
	if out.Rdtm, err = r.U8(); err != nil {
		return ResponseNotReadyExt{}, err
	}
	return out, nil
}
