package message

import (
	"bytes"
	"testing"

	"lukechampine.com/frand"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/protocol"
)

func TestVersionResponseRoundtrip(t *testing.T) {
	ctx := newTestContext(t, protocol.Version12, protocol.HashSHA256, protocol.AsymEcdsaP256, false)
	rsp := VersionResponse{Versions: []protocol.VersionEntry{
		protocol.NewVersionEntry(protocol.Version10),
		protocol.NewVersionEntry(protocol.Version11),
		protocol.NewVersionEntry(protocol.Version12),
	}}
	w := codec.NewWriter(make([]byte, 32))
	if err := rsp.Encode(ctx, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got VersionResponse
	r := codec.NewReader(w.Bytes())
	if err := got.Decode(ctx, r); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Versions) != 3 || got.Versions[2].Version() != protocol.Version12 {
		t.Errorf("roundtrip = %+v", got)
	}
	if r.Used() != w.Used() {
		t.Errorf("consumed %d, wrote %d", r.Used(), w.Used())
	}
}

func TestCapabilitiesRoundtrip(t *testing.T) {
	ctx := newTestContext(t, protocol.Version12, protocol.HashSHA256, protocol.AsymEcdsaP256, false)

	request := GetCapabilitiesRequest{
		CTExponent: 12,
		Flags:      protocol.ReqCapCert | protocol.ReqCapChal | protocol.ReqCapKeyEx,
	}
	w := codec.NewWriter(make([]byte, 16))
	if err := request.Encode(ctx, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got GetCapabilitiesRequest
	if err := got.Decode(ctx, codec.NewReader(w.Bytes())); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != request {
		t.Errorf("roundtrip = %+v", got)
	}

	rsp := CapabilitiesResponse{
		CTExponent: 14,
		Flags:      protocol.RspCapCert | protocol.RspCapMeasSig | protocol.RspCapKeyEx,
	}
	w2 := codec.NewWriter(make([]byte, 16))
	if err := rsp.Encode(ctx, w2); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got2 CapabilitiesResponse
	if err := got2.Decode(ctx, codec.NewReader(w2.Bytes())); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got2 != rsp {
		t.Errorf("roundtrip = %+v", got2)
	}
}

func TestNegotiateAlgorithmsRoundtrip(t *testing.T) {
	ctx := newTestContext(t, protocol.Version12, protocol.HashSHA384, protocol.AsymEcdsaP384, false)

	request := NegotiateAlgorithmsRequest{
		MeasurementSpecification: protocol.MeasSpecDMTF,
		BaseAsymAlgo:             protocol.AsymEcdsaP256 | protocol.AsymEcdsaP384,
		BaseHashAlgo:             protocol.HashSHA256 | protocol.HashSHA384,
		Alg: []AlgStruct{
			{Type: AlgTypeDhe, Supported: uint16(protocol.DheSecp256r1)},
			{Type: AlgTypeAead, Supported: uint16(protocol.AeadAes128Gcm)},
			{Type: AlgTypeReqBaseAsym, Supported: uint16(protocol.AsymEcdsaP256)},
			{Type: AlgTypeKeySchedule, Supported: uint16(protocol.KeyScheduleSpdm)},
		},
	}
	w := codec.NewWriter(make([]byte, 128))
	if err := request.Encode(ctx, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got NegotiateAlgorithmsRequest
	r := codec.NewReader(w.Bytes())
	if err := got.Decode(ctx, r); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.BaseAsymAlgo != request.BaseAsymAlgo || got.BaseHashAlgo != request.BaseHashAlgo ||
		len(got.Alg) != 4 || got.Alg[1] != request.Alg[1] {
		t.Errorf("roundtrip = %+v", got)
	}
	if r.Used() != w.Used() {
		t.Errorf("consumed %d, wrote %d", r.Used(), w.Used())
	}

	rsp := AlgorithmsResponse{
		MeasurementSpecificationSel: protocol.MeasSpecDMTF,
		MeasurementHashAlgo:         protocol.MeasHashSHA384,
		BaseAsymSel:                 protocol.AsymEcdsaP384,
		BaseHashSel:                 protocol.HashSHA384,
		Alg: []AlgStruct{
			{Type: AlgTypeDhe, Supported: uint16(protocol.DheSecp256r1)},
		},
	}
	w2 := codec.NewWriter(make([]byte, 128))
	if err := rsp.Encode(ctx, w2); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got2 AlgorithmsResponse
	if err := got2.Decode(ctx, codec.NewReader(w2.Bytes())); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got2.BaseHashSel != rsp.BaseHashSel || got2.MeasurementHashAlgo != rsp.MeasurementHashAlgo {
		t.Errorf("roundtrip = %+v", got2)
	}
}

func TestDigestsResponseRoundtrip(t *testing.T) {
	ctx := newTestContext(t, protocol.Version12, protocol.HashSHA384, protocol.AsymEcdsaP384, false)

	d0 := make([]byte, 48)
	d1 := make([]byte, 48)
	frand.Read(d0)
	frand.Read(d1)
	rsp := DigestsResponse{SlotMask: 0b0000_0101, Digests: [][]byte{d0, d1}}

	w := codec.NewWriter(make([]byte, 128))
	if err := rsp.Encode(ctx, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got DigestsResponse
	if err := got.Decode(ctx, codec.NewReader(w.Bytes())); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SlotMask != rsp.SlotMask || len(got.Digests) != 2 ||
		!bytes.Equal(got.Digests[0], d0) || !bytes.Equal(got.Digests[1], d1) {
		t.Errorf("roundtrip = %+v", got)
	}
}

func TestDigestsResponseMaskMismatch(t *testing.T) {
	ctx := newTestContext(t, protocol.Version12, protocol.HashSHA384, protocol.AsymEcdsaP384, false)
	rsp := DigestsResponse{SlotMask: 0b0000_0011, Digests: [][]byte{make([]byte, 48)}}
	w := codec.NewWriter(make([]byte, 128))
	if err := rsp.Encode(ctx, w); err != ErrInvalidField {
		t.Errorf("got %v, want ErrInvalidField", err)
	}
}

func TestCertificateRoundtrip(t *testing.T) {
	ctx := newTestContext(t, protocol.Version12, protocol.HashSHA384, protocol.AsymEcdsaP384, false)

	request := GetCertificateRequest{SlotID: 2, Offset: 512, Length: 512}
	w := codec.NewWriter(make([]byte, 8))
	if err := request.Encode(ctx, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if w.Used() != 6 {
		t.Errorf("request encoded %d bytes, want 6", w.Used())
	}
	var gotReq GetCertificateRequest
	if err := gotReq.Decode(ctx, codec.NewReader(w.Bytes())); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotReq != request {
		t.Errorf("roundtrip = %+v", gotReq)
	}

	portion := make([]byte, 288)
	frand.Read(portion)
	rsp := CertificateResponse{
		SlotID:          2,
		PortionLength:   288,
		RemainderLength: 0,
		CertChain:       portion,
	}
	w2 := codec.NewWriter(make([]byte, 512))
	if err := rsp.Encode(ctx, w2); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var gotRsp CertificateResponse
	if err := gotRsp.Decode(ctx, codec.NewReader(w2.Bytes())); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotRsp.PortionLength != 288 || !bytes.Equal(gotRsp.CertChain, portion) {
		t.Errorf("roundtrip mismatch")
	}
}

func TestCertificateResponseRejectsOversizedPortion(t *testing.T) {
	ctx := newTestContext(t, protocol.Version12, protocol.HashSHA384, protocol.AsymEcdsaP384, false)

	w := codec.NewWriter(make([]byte, 1024))
	if err := w.PutU8(0); err != nil { // param1
		t.Fatal(err)
	}
	if err := w.PutU8(0); err != nil { // param2
		t.Fatal(err)
	}
	if err := w.PutU16(protocol.MaxCertPortionSize + 1); err != nil {
		t.Fatal(err)
	}
	if err := w.PutU16(0); err != nil {
		t.Fatal(err)
	}
	var rsp CertificateResponse
	if err := rsp.Decode(ctx, codec.NewReader(w.Bytes())); err != ErrInvalidField {
		t.Errorf("got %v, want ErrInvalidField", err)
	}
}

func TestErrorResponseRoundtrip(t *testing.T) {
	ctx := newTestContext(t, protocol.Version12, protocol.HashSHA256, protocol.AsymEcdsaP256, false)

	rsp := ErrorResponse{
		Code:         ErrorResponseNotReady,
		Data:         0,
		ExtendedData: []byte{10, uint8(protocol.RequestGetMeasurements), 0x42, 1},
	}
	w := codec.NewWriter(make([]byte, 16))
	if err := rsp.Encode(ctx, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got ErrorResponse
	if err := got.Decode(ctx, codec.NewReader(w.Bytes())); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Code != ErrorResponseNotReady || !bytes.Equal(got.ExtendedData, rsp.ExtendedData) {
		t.Errorf("roundtrip = %+v", got)
	}

	ext, err := ParseResponseNotReadyExt(got.ExtendedData)
	if err != nil {
		t.Fatalf("ParseResponseNotReadyExt: %v", err)
	}
	if ext.RdtExponent != 10 || ext.Token != 0x42 {
		t.Errorf("ext = %+v", ext)
	}
}

func TestKeyExchangeRoundtrip(t *testing.T) {
	ctx := newTestContext(t, protocol.Version12, protocol.HashSHA256, protocol.AsymEcdsaP256, false)
	ctx.Negotiate.DheSel = protocol.DheSecp256r1
	ctx.Negotiate.AeadSel = protocol.AeadAes128Gcm

	exchange := make([]byte, 64)
	frand.Read(exchange)
	request := KeyExchangeRequest{
		SummaryHashType: protocol.SummaryHashNone,
		SlotID:          0,
		ReqSessionID:    0xBEEF,
		SessionPolicy:   1,
		ExchangeData:    exchange,
	}
	w := codec.NewWriter(make([]byte, 256))
	if err := request.Encode(ctx, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got KeyExchangeRequest
	r := codec.NewReader(w.Bytes())
	if err := got.Decode(ctx, r); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ReqSessionID != 0xBEEF || got.SessionPolicy != 1 || !bytes.Equal(got.ExchangeData, exchange) {
		t.Errorf("roundtrip = %+v", got)
	}
	if r.Used() != w.Used() {
		t.Errorf("consumed %d, wrote %d", r.Used(), w.Used())
	}

	rsp := KeyExchangeRspResponse{
		HeartbeatPeriod:     2,
		RspSessionID:        0xCAFE,
		ExchangeData:        exchange,
		Signature:           protocol.Signature{Data: make([]byte, 64)},
		ResponderVerifyData: make([]byte, 32),
	}
	w2 := codec.NewWriter(make([]byte, 512))
	if err := rsp.Encode(ctx, w2); err != nil {
		t.Fatalf("Encode rsp: %v", err)
	}
	var got2 KeyExchangeRspResponse
	r2 := codec.NewReader(w2.Bytes())
	if err := got2.Decode(ctx, r2); err != nil {
		t.Fatalf("Decode rsp: %v", err)
	}
	if got2.RspSessionID != 0xCAFE || got2.HeartbeatPeriod != 2 || len(got2.ResponderVerifyData) != 32 {
		t.Errorf("roundtrip = %+v", got2)
	}
	if r2.Used() != w2.Used() {
		t.Errorf("consumed %d, wrote %d", r2.Used(), w2.Used())
	}
}

func TestPskExchangeRoundtrip(t *testing.T) {
	ctx := newTestContext(t, protocol.Version12, protocol.HashSHA256, protocol.AsymEcdsaP256, false)

	request := PskExchangeRequest{
		SummaryHashType: protocol.SummaryHashNone,
		ReqSessionID:    0x0102,
		PskHint:         []byte("hint"),
		Context:         []byte("requester context"),
	}
	w := codec.NewWriter(make([]byte, 256))
	if err := request.Encode(ctx, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got PskExchangeRequest
	if err := got.Decode(ctx, codec.NewReader(w.Bytes())); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ReqSessionID != 0x0102 || !bytes.Equal(got.PskHint, request.PskHint) ||
		!bytes.Equal(got.Context, request.Context) {
		t.Errorf("roundtrip = %+v", got)
	}

	rsp := PskExchangeRspResponse{
		HeartbeatPeriod:     0,
		RspSessionID:        0x0304,
		ResponderContext:    []byte("responder context"),
		ResponderVerifyData: make([]byte, 32),
	}
	w2 := codec.NewWriter(make([]byte, 256))
	if err := rsp.Encode(ctx, w2); err != nil {
		t.Fatalf("Encode rsp: %v", err)
	}
	var got2 PskExchangeRspResponse
	if err := got2.Decode(ctx, codec.NewReader(w2.Bytes())); err != nil {
		t.Fatalf("Decode rsp: %v", err)
	}
	if got2.RspSessionID != 0x0304 || !bytes.Equal(got2.ResponderContext, rsp.ResponderContext) {
		t.Errorf("roundtrip = %+v", got2)
	}
}
