package responder

import (
	"math/bits"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// highestBit32 picks the strongest algorithm from the intersection of two
// offer masks: the highest set bit, or 0 when the sets are disjoint.
func highestBit32(a, b uint32) uint32 {
	inter := a & b
	if inter == 0 {
		return 0
	}
	return 1 << (31 - bits.LeadingZeros32(inter))
}

func highestBit16(a, b uint16) uint16 {
	return uint16(highestBit32(uint32(a), uint32(b)))
}

// handleNegotiateAlgorithms intersects the requester's offers with the
// configured sets and selects the strongest of each concern.
func (c *Context) handleNegotiateAlgorithms(sessionID *uint32, req []byte) ([]byte, error) {
	if c.Common.Runtime.ConnectionState < common.ConnectionAfterCapabilities {
		return c.errorResponse(message.ErrorUnexpectedRequest, 0)
	}
	cfg := &c.Common.Config

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.NegotiateAlgorithmsRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	neg := &c.Common.Negotiate
	neg.MeasurementSpecificationSel = protocol.MeasurementSpecification(
		uint8(highestBit32(uint32(request.MeasurementSpecification), uint32(cfg.MeasurementSpecification))))
	neg.BaseAsymSel = protocol.BaseAsymAlgo(highestBit32(uint32(request.BaseAsymAlgo), uint32(cfg.BaseAsymAlgos)))
	neg.BaseHashSel = protocol.BaseHashAlgo(highestBit32(uint32(request.BaseHashAlgo), uint32(cfg.BaseHashAlgos)))
	// The measurement hash is the responder's own choice; the request
	// carries no offer mask for it.
	neg.MeasurementHashSel = protocol.MeasurementHashAlgo(
		highestBit32(uint32(cfg.MeasurementHashAlgos), ^uint32(0)))
	if neg.BaseAsymSel == 0 || neg.BaseHashSel == 0 {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	selStructs := make([]message.AlgStruct, 0, len(request.Alg))
	for _, alg := range request.Alg {
		var sel uint16
		switch alg.Type {
		case message.AlgTypeDhe:
			sel = highestBit16(alg.Supported, uint16(cfg.DheAlgos))
			neg.DheSel = protocol.DheAlgo(sel)
		case message.AlgTypeAead:
			sel = highestBit16(alg.Supported, uint16(cfg.AeadAlgos))
			neg.AeadSel = protocol.AeadAlgo(sel)
		case message.AlgTypeReqBaseAsym:
			sel = highestBit16(alg.Supported, uint16(cfg.ReqAsymAlgos))
			neg.ReqAsymSel = protocol.ReqAsymAlgo(sel)
		case message.AlgTypeKeySchedule:
			sel = highestBit16(alg.Supported, uint16(cfg.KeySchedules))
			neg.KeyScheduleSel = protocol.KeyScheduleAlgo(sel)
		default:
			continue
		}
		selStructs = append(selStructs, message.AlgStruct{Type: alg.Type, Supported: sel})
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: neg.SpdmVersionSel,
		Code:    protocol.ResponseAlgorithms,
	}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.AlgorithmsResponse{
		MeasurementSpecificationSel: neg.MeasurementSpecificationSel,
		MeasurementHashAlgo:         neg.MeasurementHashSel,
		BaseAsymSel:                 neg.BaseAsymSel,
		BaseHashSel:                 neg.BaseHashSel,
		Alg:                         selStructs,
	}
	if err := rsp.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}

	if err := c.Common.AppendMessageA(req[:r.Used()]); err != nil {
		return nil, err
	}
	if err := c.Common.AppendMessageA(w.Bytes()); err != nil {
		return nil, err
	}
	c.Common.Runtime.ConnectionState = common.ConnectionNegotiated
	return w.Bytes(), nil
}
