package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
)

// EndSessionAttributes is Param1 of END_SESSION.
type EndSessionAttributes uint8

// EndSessionPreserveState asks the Responder to keep negotiated state
// cached for a later session.
const EndSessionPreserveState EndSessionAttributes = 1 << 0

// EndSessionRequest is the END_SESSION payload.
type EndSessionRequest struct {
	Attributes EndSessionAttributes
}

// Encode writes the payload.
func (p *EndSessionRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutU8(uint8(p.Attributes)); err != nil { // param1
		return err
	}
	return w.PutU8(0) // param2
}

// Decode reads the payload.
func (p *EndSessionRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	attrs, err := r.U8() // param1
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil { // param2
		return err
	}
	p.Attributes = EndSessionAttributes(attrs)
	return nil
}

// EndSessionAckResponse is the END_SESSION_ACK payload: parameters only.
type EndSessionAckResponse struct{}

// Encode writes the payload.
func (p *EndSessionAckResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	return w.PutZeros(2)
}

// Decode reads the payload.
func (p *EndSessionAckResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	return r.Skip(2)
}

// HeartbeatRequest is the HEARTBEAT payload: parameters only.
type HeartbeatRequest struct{}

// Encode writes the payload.
func (p *HeartbeatRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	return w.PutZeros(2)
}

// Decode reads the payload.
func (p *HeartbeatRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	return r.Skip(2)
}

// HeartbeatAckResponse is the HEARTBEAT_ACK payload: parameters only.
type HeartbeatAckResponse struct{}

// Encode writes the payload.
func (p *HeartbeatAckResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	return w.PutZeros(2)
}

// Decode reads the payload.
func (p *HeartbeatAckResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	return r.Skip(2)
}
