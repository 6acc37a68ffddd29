package datagram

import (
	"bytes"
	"testing"

	"github.com/ignacioSepam/sbmp/pkg/checksum"
	"github.com/ignacioSepam/sbmp/pkg/frame"
)

func TestParse(t *testing.T) {
	payload := []byte{0x34, 0x12, 0x05, 0xDE, 0xAD, 0xBE, 0xEF}
	dg, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if dg.Session != 0x1234 {
		t.Errorf("Session = %#x, want 0x1234", dg.Session)
	}
	if dg.Type != 0x05 {
		t.Errorf("Type = %#x, want 0x05", dg.Type)
	}
	if !bytes.Equal(dg.Payload, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("Payload = %v", dg.Payload)
	}
}

func TestParseShort(t *testing.T) {
	if _, err := Parse([]byte{0x01, 0x02}); err != ErrShort {
		t.Errorf("Parse(short) err = %v, want ErrShort", err)
	}
}

func TestParseEmptyBody(t *testing.T) {
	dg, err := Parse([]byte{0x00, 0x00, 0x09})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(dg.Payload) != 0 {
		t.Errorf("Payload = %v, want empty", dg.Payload)
	}
}

func TestDgOrigin(t *testing.T) {
	dg := Dg{Session: 0x8001}
	if dg.Origin() != 1 {
		t.Errorf("Origin() = %d, want 1", dg.Origin())
	}
	dg.Session = 0x0001
	if dg.Origin() != 0 {
		t.Errorf("Origin() = %d, want 0", dg.Origin())
	}
}

func TestStartTxWritesHeaderThenAcceptsBody(t *testing.T) {
	var buf bytes.Buffer
	f := frame.New(64, &buf, nil)

	body := []byte{0xCA, 0xFE}
	if !StartTx(f, checksum.None, 0xBEEF, 0x07, len(body)) {
		t.Fatalf("StartTx returned false")
	}
	if n := f.SendBuffer(body); n != len(body) {
		t.Fatalf("SendBuffer = %d, want %d", n, len(body))
	}

	want := []byte{frame.SOF, byte(checksum.None), byte(HeaderSize + len(body)), 0, 0xEF, 0xBE, 0x07, 0xCA, 0xFE}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("wire bytes = %v, want %v", buf.Bytes(), want)
	}
}

func TestStartTxRejectsWhileFrameActive(t *testing.T) {
	var buf bytes.Buffer
	f := frame.New(64, &buf, nil)

	// A non-zero body length keeps the frame's transmit active after the
	// header is written; a zero-length body would complete the frame at once.
	if !StartTx(f, checksum.None, 1, 1, 2) {
		t.Fatalf("first StartTx returned false")
	}
	if StartTx(f, checksum.None, 2, 1, 0) {
		t.Errorf("second StartTx returned true while a transmit was active")
	}
}

func TestParseAndStartTxRoundTrip(t *testing.T) {
	var wire bytes.Buffer
	tx := frame.New(64, &wire, nil)

	body := []byte("payload body")
	if !StartTx(tx, checksum.XOR, 0x4321, 0x02, len(body)) {
		t.Fatalf("StartTx failed")
	}
	tx.SendBuffer(body)

	var got Dg
	rx := frame.New(64, &bytes.Buffer{}, frame.UpstreamHandlerFunc(func(_ *frame.Frame, payload []byte) {
		dg, err := Parse(payload)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		got = dg
	}))
	for _, b := range wire.Bytes() {
		rx.Feed(b)
	}

	if got.Session != 0x4321 || got.Type != 0x02 || !bytes.Equal(got.Payload, body) {
		t.Errorf("got %+v", got)
	}
}
