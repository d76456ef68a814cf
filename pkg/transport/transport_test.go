package transport

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestMctpRoundtrip(t *testing.T) {
	var encap Mctp
	payload := []byte{0x11, 0x84, 0x00, 0x00}

	frame := make([]byte, 16)
	n, err := encap.Encap(payload, frame)
	if err != nil {
		t.Fatalf("Encap: %v", err)
	}
	if n != len(payload)+1 || frame[0] != 0x05 {
		t.Errorf("frame = %x", frame[:n])
	}

	out := make([]byte, 16)
	m, err := encap.Decap(frame[:n], out)
	if err != nil {
		t.Fatalf("Decap: %v", err)
	}
	if !bytes.Equal(out[:m], payload) {
		t.Errorf("roundtrip = %x", out[:m])
	}
}

func TestMctpRejectsWrongMessageType(t *testing.T) {
	var encap Mctp
	out := make([]byte, 16)
	if _, err := encap.Decap([]byte{0x7E, 1, 2}, out); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("got %v, want ErrMalformedFrame", err)
	}
}

func TestPciDoeRoundtrip(t *testing.T) {
	var encap PciDoe
	tests := []struct {
		name    string
		payload []byte
	}{
		{"dword aligned", []byte{1, 2, 3, 4}},
		{"needs padding", []byte{1, 2, 3, 4, 5}},
		{"empty", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			frame := make([]byte, 64)
			n, err := encap.Encap(tc.payload, frame)
			if err != nil {
				t.Fatalf("Encap: %v", err)
			}
			if n%4 != 0 {
				t.Errorf("frame length %d not dword aligned", n)
			}

			out := make([]byte, 64)
			m, err := encap.Decap(frame[:n], out)
			if err != nil {
				t.Fatalf("Decap: %v", err)
			}
			// Decap returns the padded payload; the prefix must match.
			if !bytes.Equal(out[:len(tc.payload)], tc.payload) {
				t.Errorf("roundtrip = %x", out[:m])
			}
		})
	}
}

func TestPciDoeRejectsBadHeader(t *testing.T) {
	var encap PciDoe
	out := make([]byte, 64)
	if _, err := encap.Decap([]byte{1, 2, 3}, out); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("short frame: got %v, want ErrMalformedFrame", err)
	}
	bad := make([]byte, 12)
	bad[0] = 0xFF // wrong vendor
	if _, err := encap.Decap(bad, out); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("wrong vendor: got %v, want ErrMalformedFrame", err)
	}
}

func TestPipeDelivery(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	if err := pipe.Requester().Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf := make([]byte, 16)
	n, err := pipe.Responder().Receive(buf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte("hello")) {
		t.Errorf("received %q", buf[:n])
	}

	// Frames stay ordered.
	pipe.Responder().Send([]byte("a"))
	pipe.Responder().Send([]byte("b"))
	n, _ = pipe.Requester().Receive(buf)
	if string(buf[:n]) != "a" {
		t.Errorf("first frame = %q", buf[:n])
	}
	n, _ = pipe.Requester().Receive(buf)
	if string(buf[:n]) != "b" {
		t.Errorf("second frame = %q", buf[:n])
	}
}

func TestPipeCloseUnblocksReceiver(t *testing.T) {
	pipe := NewPipe()
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 16)
		_, err := pipe.Requester().Receive(buf)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	pipe.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("got %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver still blocked after close")
	}
}

func TestPipeSendToClosedEndpoint(t *testing.T) {
	pipe := NewPipe()
	pipe.Close()
	if err := pipe.Requester().Send([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
