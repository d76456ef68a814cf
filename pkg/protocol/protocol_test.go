package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/spdm/pkg/codec"
)

func TestVersionNibbles(t *testing.T) {
	tests := []struct {
		v            Version
		major, minor uint8
	}{
		{Version10, 1, 0},
		{Version11, 1, 1},
		{Version12, 1, 2},
		{Version(0x34), 3, 4},
	}
	for _, tc := range tests {
		if tc.v.Major() != tc.major || tc.v.Minor() != tc.minor {
			t.Errorf("%#x: got %d.%d, want %d.%d", uint8(tc.v), tc.v.Major(), tc.v.Minor(), tc.major, tc.minor)
		}
	}
}

func TestUnknownVersionSurvivesRoundtrip(t *testing.T) {
	w := codec.NewWriter(make([]byte, 1))
	if err := Version(0x47).Encode(w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := ReadVersion(codec.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("ReadVersion: %v", err)
	}
	if got != Version(0x47) {
		t.Errorf("unknown version normalized to %#x", uint8(got))
	}
}

func TestAlgoSizes(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"SHA-256", HashSHA256.Size(), 32},
		{"SHA-384", HashSHA384.Size(), 48},
		{"SHA-512", HashSHA512.Size(), 64},
		{"SHA3-512", HashSHA3512.Size(), 64},
		{"no hash selected", BaseHashAlgo(0).Size(), 0},
		{"RSASSA-2048", AsymRsaSsa2048.Size(), 256},
		{"RSASSA-4096", AsymRsaSsa4096.Size(), 512},
		{"ECDSA P-256", AsymEcdsaP256.Size(), 64},
		{"ECDSA P-384", AsymEcdsaP384.Size(), 96},
		{"ECDSA P-521", AsymEcdsaP521.Size(), 132},
		{"SECP256R1 exchange", DheSecp256r1.Size(), 64},
		{"FFDHE-2048 exchange", DheFfdhe2048.Size(), 256},
		{"AES-128-GCM key", AeadAes128Gcm.KeySize(), 16},
		{"CHACHA20 key", AeadChacha20Poly1305.KeySize(), 32},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("size = %d, want %d", tc.got, tc.want)
			}
		})
	}
}

func TestClosedBitSetsRejectUnknownBits(t *testing.T) {
	w := codec.NewWriter(make([]byte, 4))
	if err := w.PutU32(0xFFFFFFFF); err != nil {
		t.Fatalf("PutU32: %v", err)
	}
	if _, err := ReadBaseHashAlgo(codec.NewReader(w.Bytes())); !errors.Is(err, ErrUnknownBits) {
		t.Errorf("hash: got %v, want ErrUnknownBits", err)
	}
	if _, err := ReadBaseAsymAlgo(codec.NewReader(w.Bytes())); !errors.Is(err, ErrUnknownBits) {
		t.Errorf("asym: got %v, want ErrUnknownBits", err)
	}
	if _, err := ReadRequestCapabilityFlags(codec.NewReader(w.Bytes())); !errors.Is(err, ErrUnknownBits) {
		t.Errorf("req caps: got %v, want ErrUnknownBits", err)
	}
}

func TestContentChangedFromBits(t *testing.T) {
	tests := []struct {
		bits    uint8
		want    ContentChanged
		wantErr bool
	}{
		{0x00, ContentChangeNotSupported, false},
		{0x17, ContentChangeDetected, false},
		{0x27, ContentChangeNone, false},
		{0x30, 0, true},
		{0xC7, ContentChangeNotSupported, false}, // reserved bits [7:6] ignored
	}
	for _, tc := range tests {
		got, err := ContentChangedFromBits(tc.bits)
		if tc.wantErr {
			if err == nil {
				t.Errorf("bits %#x: expected error", tc.bits)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("bits %#x: got %#x, %v", tc.bits, uint8(got), err)
		}
	}
}

func TestMeasurementBlockRoundtrip(t *testing.T) {
	value := bytes.Repeat([]byte{0x5A}, 48)
	block := MeasurementBlock{
		Index:         3,
		Specification: MeasSpecDMTF,
		Measurement: DmtfMeasurement{
			Type:           DmtfMeasurementFirmware,
			Representation: DmtfRepresentationDigest,
			ValueSize:      48,
			Value:          value,
		},
	}
	block.Size = uint16(block.Measurement.WireSize())

	buf := make([]byte, block.WireSize())
	w := codec.NewWriter(buf)
	if err := block.Encode(w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if w.Used() != block.WireSize() {
		t.Errorf("encoded %d bytes, want %d", w.Used(), block.WireSize())
	}

	got, err := ReadMeasurementBlock(codec.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("ReadMeasurementBlock: %v", err)
	}
	if got.Index != block.Index || got.Size != block.Size ||
		got.Measurement.Type != block.Measurement.Type ||
		got.Measurement.Representation != block.Measurement.Representation ||
		!bytes.Equal(got.Measurement.Value, value) {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}

func TestCertChainBufferAppend(t *testing.T) {
	var chain CertChainBuffer
	if err := chain.Append(0, bytes.Repeat([]byte{1}, 512)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := chain.Append(512, bytes.Repeat([]byte{2}, 288)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if chain.DataSize() != 800 {
		t.Errorf("DataSize = %d, want 800", chain.DataSize())
	}
	if err := chain.Append(MaxCertChainSize-10, make([]byte, 11)); !errors.Is(err, ErrSizeExceeded) {
		t.Errorf("overflow append: got %v, want ErrSizeExceeded", err)
	}
}

func TestOpaqueDataRoundtrip(t *testing.T) {
	opaque := OpaqueData{Data: []byte{9, 8, 7, 6}}
	w := codec.NewWriter(make([]byte, 16))
	if err := opaque.Encode(w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := ReadOpaqueData(codec.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("ReadOpaqueData: %v", err)
	}
	if !bytes.Equal(got.Data, opaque.Data) {
		t.Errorf("roundtrip = %v", got.Data)
	}
}
