package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/protocol"
)

// PskExchangeRequest is the PSK_EXCHANGE payload: summary hash type in
// Param1, the requester session id half, then the length-prefixed PSK
// hint, requester context and opaque data.
type PskExchangeRequest struct {
	SummaryHashType protocol.MeasurementSummaryHashType
	ReqSessionID    uint16
	PskHint         []byte
	Context         []byte
	Opaque          protocol.OpaqueData
}

// Encode writes the payload.
func (p *PskExchangeRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	if len(p.PskHint) > protocol.MaxPskHintSize || len(p.Context) > protocol.MaxPskContextSize {
		return ErrInvalidField
	}
	if err := w.PutU8(uint8(p.SummaryHashType)); err != nil { // param1
		return err
	}
	if err := w.PutU8(0); err != nil { // param2
		return err
	}
	if err := w.PutU16(p.ReqSessionID); err != nil {
		return err
	}
	if err := w.PutU16(uint16(len(p.PskHint))); err != nil {
		return err
	}
	if err := w.PutU16(uint16(len(p.Context))); err != nil {
		return err
	}
	if err := w.PutU16(uint16(len(p.Opaque.Data))); err != nil {
		return err
	}
	if err := w.PutBytes(p.PskHint); err != nil {
		return err
	}
	if err := w.PutBytes(p.Context); err != nil {
		return err
	}
	return w.PutBytes(p.Opaque.Data)
}

// Decode reads the payload.
func (p *PskExchangeRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	summary, err := r.U8() // param1
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil { // param2
		return err
	}
	reqSession, err := r.U16()
	if err != nil {
		return err
	}
	hintLen, err := r.U16()
	if err != nil {
		return err
	}
	contextLen, err := r.U16()
	if err != nil {
		return err
	}
	opaqueLen, err := r.U16()
	if err != nil {
		return err
	}
	if int(hintLen) > protocol.MaxPskHintSize || int(contextLen) > protocol.MaxPskContextSize ||
		int(opaqueLen) > protocol.MaxOpaqueSize {
		return ErrInvalidField
	}
	hint, err := r.Bytes(int(hintLen))
	if err != nil {
		return err
	}
	context, err := r.Bytes(int(contextLen))
	if err != nil {
		return err
	}
	opaque, err := r.Bytes(int(opaqueLen))
	if err != nil {
		return err
	}
	p.SummaryHashType = protocol.MeasurementSummaryHashType(summary)
	p.ReqSessionID = reqSession
	p.PskHint = hint
	p.Context = context
	p.Opaque = protocol.OpaqueData{Data: opaque}
	return nil
}

// PskExchangeRspResponse is the PSK_EXCHANGE_RSP payload.
type PskExchangeRspResponse struct {
	HeartbeatPeriod        uint8
	RspSessionID           uint16
	MeasurementSummaryHash []byte
	ResponderContext       []byte
	Opaque                 protocol.OpaqueData
	ResponderVerifyData    []byte
}

// Encode writes the payload.
func (p *PskExchangeRspResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	hashSize := ctx.Negotiate.BaseHashSel.Size()
	if len(p.ResponderContext) > protocol.MaxPskContextSize {
		return ErrInvalidField
	}
	if err := w.PutU8(p.HeartbeatPeriod); err != nil { // param1
		return err
	}
	if err := w.PutU8(0); err != nil { // param2
		return err
	}
	if err := w.PutU16(p.RspSessionID); err != nil {
		return err
	}
	if err := w.PutZeros(2); err != nil { // reserved
		return err
	}
	if err := w.PutU16(uint16(len(p.ResponderContext))); err != nil {
		return err
	}
	if err := w.PutU16(uint16(len(p.Opaque.Data))); err != nil {
		return err
	}
	if ctx.Runtime.NeedMeasurementSummaryHash {
		if len(p.MeasurementSummaryHash) != hashSize {
			return ErrInvalidField
		}
		if err := w.PutBytes(p.MeasurementSummaryHash); err != nil {
			return err
		}
	}
	if err := w.PutBytes(p.ResponderContext); err != nil {
		return err
	}
	if err := w.PutBytes(p.Opaque.Data); err != nil {
		return err
	}
	if len(p.ResponderVerifyData) != hashSize {
		return ErrInvalidField
	}
	return w.PutBytes(p.ResponderVerifyData)
}

// Decode reads the payload.
func (p *PskExchangeRspResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	hashSize := ctx.Negotiate.BaseHashSel.Size()
	heartbeat, err := r.U8() // param1
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil { // param2
		return err
	}
	rspSession, err := r.U16()
	if err != nil {
		return err
	}
	if err := r.Skip(2); err != nil { // reserved
		return err
	}
	contextLen, err := r.U16()
	if err != nil {
		return err
	}
	opaqueLen, err := r.U16()
	if err != nil {
		return err
	}
	if int(contextLen) > protocol.MaxPskContextSize || int(opaqueLen) > protocol.MaxOpaqueSize {
		return ErrInvalidField
	}
	var summary []byte
	if ctx.Runtime.NeedMeasurementSummaryHash {
		summary, err = r.Bytes(hashSize)
		if err != nil {
			return err
		}
	}
	context, err := r.Bytes(int(contextLen))
	if err != nil {
		return err
	}
	opaque, err := r.Bytes(int(opaqueLen))
	if err != nil {
		return err
	}
	verify, err := r.Bytes(hashSize)
	if err != nil {
		return err
	}
	p.HeartbeatPeriod = heartbeat
	p.RspSessionID = rspSession
	p.MeasurementSummaryHash = summary
	p.ResponderContext = context
	p.Opaque = protocol.OpaqueData{Data: opaque}
	p.ResponderVerifyData = verify
	return nil
}

// PskFinishRequest is the PSK_FINISH payload: both parameters reserved,
// then the requester verify data HMAC.
type PskFinishRequest struct {
	RequesterVerifyData []byte
}

// Encode writes the payload.
func (p *PskFinishRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	if err := w.PutZeros(2); err != nil { // param1, param2
		return err
	}
	if len(p.RequesterVerifyData) != ctx.Negotiate.BaseHashSel.Size() {
		return ErrInvalidField
	}
	return w.PutBytes(p.RequesterVerifyData)
}

// Decode reads the payload.
func (p *PskFinishRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	if err := r.Skip(2); err != nil { // param1, param2
		return err
	}
	verify, err := r.Bytes(ctx.Negotiate.BaseHashSel.Size())
	if err != nil {
		return err
	}
	p.RequesterVerifyData = verify
	return nil
}

// PskFinishRspResponse is the PSK_FINISH_RSP payload: parameters only.
type PskFinishRspResponse struct{}

// Encode writes the payload.
func (p *PskFinishRspResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	return w.PutZeros(2)
}

// Decode reads the payload.
func (p *PskFinishRspResponse) Decode(ctx *common.Context, r *codec.Reader) error {
	return r.Skip(2)
}
