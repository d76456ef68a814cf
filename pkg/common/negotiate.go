package common

import "github.com/backkem/spdm/pkg/protocol"

// NegotiateInfo is the outcome of the negotiation phase: selected version,
// capability sets and algorithms. It is written once by the
// version/capability/algorithm flows and read-only afterwards.
type NegotiateInfo struct {
	SpdmVersionSel protocol.Version

	ReqCTExponentSel   uint8
	RspCTExponentSel   uint8
	ReqCapabilitiesSel protocol.RequestCapabilityFlags
	RspCapabilitiesSel protocol.ResponseCapabilityFlags

	MeasurementSpecificationSel protocol.MeasurementSpecification
	MeasurementHashSel          protocol.MeasurementHashAlgo
	BaseHashSel                 protocol.BaseHashAlgo
	BaseAsymSel                 protocol.BaseAsymAlgo
	DheSel                      protocol.DheAlgo
	AeadSel                     protocol.AeadAlgo
	ReqAsymSel                  protocol.ReqAsymAlgo
	KeyScheduleSel              protocol.KeyScheduleAlgo
}
