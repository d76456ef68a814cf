package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterReaderRoundtrip(t *testing.T) {
	buf := make([]byte, 32)
	w := NewWriter(buf)

	if err := w.PutU8(0xAB); err != nil {
		t.Fatalf("PutU8: %v", err)
	}
	if err := w.PutU16(0x1234); err != nil {
		t.Fatalf("PutU16: %v", err)
	}
	if err := w.PutU24(0x00CDEF01); err != nil {
		t.Fatalf("PutU24: %v", err)
	}
	if err := w.PutU32(0xDEADBEEF); err != nil {
		t.Fatalf("PutU32: %v", err)
	}
	if err := w.PutBytes([]byte{1, 2, 3}); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}

	r := NewReader(w.Bytes())
	if v, err := r.U8(); err != nil || v != 0xAB {
		t.Errorf("U8 = %#x, %v", v, err)
	}
	if v, err := r.U16(); err != nil || v != 0x1234 {
		t.Errorf("U16 = %#x, %v", v, err)
	}
	if v, err := r.U24(); err != nil || v != 0x00CDEF01 {
		t.Errorf("U24 = %#x, %v", v, err)
	}
	if v, err := r.U32(); err != nil || v != 0xDEADBEEF {
		t.Errorf("U32 = %#x, %v", v, err)
	}
	if v, err := r.Bytes(3); err != nil || !bytes.Equal(v, []byte{1, 2, 3}) {
		t.Errorf("Bytes = %v, %v", v, err)
	}

	// The writer's reported usage must equal the reader's consumption.
	if r.Used() != w.Used() {
		t.Errorf("reader consumed %d, writer used %d", r.Used(), w.Used())
	}
	if r.Left() != 0 {
		t.Errorf("reader has %d bytes left", r.Left())
	}
}

func TestWireIsLittleEndian(t *testing.T) {
	buf := make([]byte, 4)
	w := NewWriter(buf)
	if err := w.PutU32(0x01020304); err != nil {
		t.Fatalf("PutU32: %v", err)
	}
	want := []byte{0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("wire bytes = %x, want %x", w.Bytes(), want)
	}
}

func TestWriterBufferFull(t *testing.T) {
	tests := []struct {
		name string
		cap  int
		op   func(w *Writer) error
	}{
		{"U8 into empty", 0, func(w *Writer) error { return w.PutU8(1) }},
		{"U16 into one byte", 1, func(w *Writer) error { return w.PutU16(1) }},
		{"U24 into two bytes", 2, func(w *Writer) error { return w.PutU24(1) }},
		{"U32 into three bytes", 3, func(w *Writer) error { return w.PutU32(1) }},
		{"Bytes overflow", 2, func(w *Writer) error { return w.PutBytes([]byte{1, 2, 3}) }},
		{"Zeros overflow", 1, func(w *Writer) error { return w.PutZeros(2) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWriter(make([]byte, tc.cap))
			if err := tc.op(w); !errors.Is(err, ErrBufferFull) {
				t.Errorf("got %v, want ErrBufferFull", err)
			}
			if w.Used() != 0 {
				t.Errorf("failed write consumed %d bytes", w.Used())
			}
		})
	}
}

func TestReaderUnderflow(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.U16(); !errors.Is(err, ErrUnderflow) {
		t.Errorf("U16 on one byte: got %v, want ErrUnderflow", err)
	}
	if _, err := r.U8(); err != nil {
		t.Errorf("U8 after failed U16: %v", err)
	}
	if _, err := r.U8(); !errors.Is(err, ErrUnderflow) {
		t.Errorf("U8 on empty: got %v, want ErrUnderflow", err)
	}
}
