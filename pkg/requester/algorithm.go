package requester

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// SendReceiveAlgorithms runs NEGOTIATE_ALGORITHMS/ALGORITHMS and records
// the responder's selections after checking each is a subset of what was
// offered.
func (c *Context) SendReceiveAlgorithms() error {
	if c.Common.Runtime.ConnectionState < common.ConnectionAfterCapabilities {
		return status.ErrInvalidStateLocal
	}
	cfg := &c.Common.Config

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestNegotiateAlgorithms,
	}
	if err := header.Encode(w); err != nil {
		return status.ErrBufferFull
	}
	request := message.NegotiateAlgorithmsRequest{
		MeasurementSpecification: cfg.MeasurementSpecification,
		BaseAsymAlgo:             cfg.BaseAsymAlgos,
		BaseHashAlgo:             cfg.BaseHashAlgos,
		Alg: []message.AlgStruct{
			{Type: message.AlgTypeDhe, Supported: uint16(cfg.DheAlgos)},
			{Type: message.AlgTypeAead, Supported: uint16(cfg.AeadAlgos)},
			{Type: message.AlgTypeReqBaseAsym, Supported: uint16(cfg.ReqAsymAlgos)},
			{Type: message.AlgTypeKeySchedule, Supported: uint16(cfg.KeySchedules)},
		},
	}
	if err := request.Encode(c.Common, w); err != nil {
		return status.ErrBufferFull
	}
	sent := w.Bytes()

	rcv := c.newMsgBuf()
	n, err := c.sendReceive(nil, sent, rcv)
	if err != nil {
		return err
	}

	r := codec.NewReader(rcv[:n])
	rspHeader, err := message.ReadHeader(r)
	if err != nil {
		return status.ErrInvalidMsgField
	}
	if rspHeader.Version != c.Common.Negotiate.SpdmVersionSel {
		return status.ErrInvalidMsgField
	}
	switch rspHeader.Code {
	case protocol.ResponseAlgorithms:
	case protocol.ResponseError:
		return c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return status.ErrErrorPeer
	}

	var rsp message.AlgorithmsResponse
	if err := rsp.Decode(c.Common, r); err != nil {
		return status.ErrInvalidMsgField
	}

	// Every selection must come from the offered set.
	if rsp.MeasurementSpecificationSel&^cfg.MeasurementSpecification != 0 ||
		rsp.BaseAsymSel&^cfg.BaseAsymAlgos != 0 ||
		rsp.BaseHashSel&^cfg.BaseHashAlgos != 0 ||
		rsp.MeasurementHashAlgo&^cfg.MeasurementHashAlgos != 0 {
		return status.ErrInvalidMsgField
	}

	neg := &c.Common.Negotiate
	neg.MeasurementSpecificationSel = rsp.MeasurementSpecificationSel
	neg.MeasurementHashSel = rsp.MeasurementHashAlgo
	neg.BaseAsymSel = rsp.BaseAsymSel
	neg.BaseHashSel = rsp.BaseHashSel
	for _, alg := range rsp.Alg {
		switch alg.Type {
		case message.AlgTypeDhe:
			sel := protocol.DheAlgo(alg.Supported)
			if sel&^cfg.DheAlgos != 0 {
				return status.ErrInvalidMsgField
			}
			neg.DheSel = sel
		case message.AlgTypeAead:
			sel := protocol.AeadAlgo(alg.Supported)
			if sel&^cfg.AeadAlgos != 0 {
				return status.ErrInvalidMsgField
			}
			neg.AeadSel = sel
		case message.AlgTypeReqBaseAsym:
			sel := protocol.ReqAsymAlgo(alg.Supported)
			if sel&^cfg.ReqAsymAlgos != 0 {
				return status.ErrInvalidMsgField
			}
			neg.ReqAsymSel = sel
		case message.AlgTypeKeySchedule:
			sel := protocol.KeyScheduleAlgo(alg.Supported)
			if sel&^cfg.KeySchedules != 0 {
				return status.ErrInvalidMsgField
			}
			neg.KeyScheduleSel = sel
		}
	}

	if err := c.Common.AppendMessageA(sent); err != nil {
		return err
	}
	if err := c.Common.AppendMessageA(rcv[:r.Used()]); err != nil {
		return err
	}
	c.Common.Runtime.ConnectionState = common.ConnectionNegotiated
	c.log.Infof("negotiated algorithms: hash size %d, asym size %d",
		neg.BaseHashSel.Size(), neg.BaseAsymSel.Size())
	return nil
}
