package message

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/protocol"
)

// HandshakeInTheClear reports whether both sides negotiated the
// handshake-in-the-clear capability, which removes the verify-data fields
// from KEY_EXCHANGE_RSP and moves them to FINISH_RSP.
func HandshakeInTheClear(ctx *common.Context) bool {
	return ctx.Negotiate.ReqCapabilitiesSel.Contains(protocol.ReqCapHandshakeInClear) &&
		ctx.Negotiate.RspCapabilitiesSel.Contains(protocol.RspCapHandshakeInClear)
}

// KeyExchangeRequest is the KEY_EXCHANGE payload: summary hash type in
// Param1, slot in Param2, the requester's session id half, its ephemeral
// exchange data and opaque negotiation data. SPDM 1.2 adds a session
// policy byte.
type KeyExchangeRequest struct {
	SummaryHashType protocol.MeasurementSummaryHashType
	SlotID          uint8
	ReqSessionID    uint16
	SessionPolicy   uint8
	RandomData      protocol.Nonce
	ExchangeData    []byte
	Opaque          protocol.OpaqueData
}

// Encode writes the payload.
func (p *KeyExchangeRequest) Encode(ctx *common.Context, w *codec.Writer) error {
	if len(p.ExchangeData) != ctx.Negotiate.DheSel.Size() {
		return ErrInvalidField
	}
	if err := w.PutU8(uint8(p.SummaryHashType)); err != nil { // param1
		return err
	}
	if err := w.PutU8(p.SlotID); err != nil { // param2
		return err
	}
	if err := w.PutU16(p.ReqSessionID); err != nil {
		return err
	}
	if ctx.Negotiate.SpdmVersionSel >= protocol.Version12 {
		if err := w.PutU8(p.SessionPolicy); err != nil {
			return err
		}
		if err := w.PutU8(0); err != nil { // reserved
			return err
		}
	} else {
		if err := w.PutZeros(2); err != nil { // reserved
			return err
		}
	}
	if err := p.RandomData.Encode(w); err != nil {
		return err
	}
	if err := w.PutBytes(p.ExchangeData); err != nil {
		return err
	}
	return p.Opaque.Encode(w)
}

// Decode reads the payload.
func (p *KeyExchangeRequest) Decode(ctx *common.Context, r *codec.Reader) error {
	summary, err := r.U8() // param1
	if err != nil {
		return err
	}
	slot, err := r.U8() // param2
	if err != nil {
		return err
	}
	reqSession, err := r.U16()
	if err != nil {
		return err
	}
	var policy uint8
	if ctx.Negotiate.SpdmVersionSel >= protocol.Version12 {
		policy, err = r.U8()
		if err != nil {
			return err
		}
		if err := r.Skip(1); err != nil {
			return err
		}
	} else {
		if err := r.Skip(2); err != nil {
			return err
		}
	}
	random, err := protocol.ReadNonce(r)
	if err != nil {
		return err
	}
	exchange, err := r.Bytes(ctx.Negotiate.DheSel.Size())
	if err != nil {
		return err
	}
	opaque, err := protocol.ReadOpaqueData(r)
	if err != nil {
		return err
	}
	p.SummaryHashType = protocol.MeasurementSummaryHashType(summary)
	p.SlotID = slot
	p.ReqSessionID = reqSession
	p.SessionPolicy = policy
	p.RandomData = random
	p.ExchangeData = exchange
	p.Opaque = opaque
	return nil
}

// KeyExchangeRspResponse is the KEY_EXCHANGE_RSP payload. The measurement
// summary hash is on the wire only when the request asked for one; the
// responder verify data only when the handshake is not in the clear.
type KeyExchangeRspResponse struct {
	HeartbeatPeriod        uint8
	RspSessionID           uint16
	MutAuthRequested       uint8
	ReqSlotIDParam         uint8
	RandomData             protocol.Nonce
	ExchangeData           []byte
	MeasurementSummaryHash []byte
	Opaque                 protocol.OpaqueData
	Signature              protocol.Signature
	ResponderVerifyData    []byte
}

// Encode writes the payload.
func (p *KeyExchangeRspResponse) Encode(ctx *common.Context, w *codec.Writer) error {
	hashSize := ctx.Negotiate.BaseHashSel.Size()
	if len(p.ExchangeData) != ctx.Negotiate.DheSel.Size() {
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
	if err := w.PutU8(p.MutAuthRequested); err != nil {
		return err
	}
	if err := w.PutU8(p.ReqSlotIDParam); err != nil {
		return err
	}
	if err := p.RandomData.Encode(w); err != nil {
		return err
	}
	if err := w.PutBytes(p.ExchangeData); err != nil {
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
	if err := p.Opaque.Encode(w); err != nil {
		return err
	}
	if len(p.Signature.Data) != ctx.Negotiate.BaseAsymSel.Size() {
		return ErrInvalidField
	}
	if err := w.PutBytes(p.Signature.Data); err != nil {
		return err
	}
	if !HandshakeInTheClear(ctx) {
		if len(p.ResponderVerifyData) != hashSize {
			return ErrInvalidField
		}
		if err := w.PutBytes(p.ResponderVerifyData); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the payload.
func (p *KeyExchangeRspResponse) Decode(ctx *common.Context, r *codec.Reader) error {
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
	mutAuth, err := r.U8()
	if err != nil {
		return err
	}
	slotParam, err := r.U8()
	if err != nil {
		return err
	}
	random, err := protocol.ReadNonce(r)
	if err != nil {
		return err
	}
	exchange, err := r.Bytes(ctx.Negotiate.DheSel.Size())
	if err != nil {
		return err
	}
	var summary []byte
	if ctx.Runtime.NeedMeasurementSummaryHash {
		summary, err = r.Bytes(hashSize)
		if err != nil {
			return err
		}
	}
	opaque, err := protocol.ReadOpaqueData(r)
	if err != nil {
		return err
	}
	sig, err := r.Bytes(ctx.Negotiate.BaseAsymSel.Size())
	if err != nil {
		return err
	}
	var verifyData []byte
	if !HandshakeInTheClear(ctx) {
		verifyData, err = r.Bytes(hashSize)
		if err != nil {
			return err
		}
	}
	p.HeartbeatPeriod = heartbeat
	p.RspSessionID = rspSession
	p.MutAuthRequested = mutAuth
	p.ReqSlotIDParam = slotParam
	p.RandomData = random
	p.ExchangeData = exchange
	p.MeasurementSummaryHash = summary
	p.Opaque = opaque
	p.Signature = protocol.Signature{Data: sig}
	p.ResponderVerifyData = verifyData
	return nil
}
