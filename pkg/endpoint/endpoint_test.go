package endpoint_test

import (
	"bytes"
	"testing"

	"github.com/ignacioSepam/sbmp/pkg/checksum"
	"github.com/ignacioSepam/sbmp/pkg/datagram"
	"github.com/ignacioSepam/sbmp/pkg/endpoint"
	"github.com/ignacioSepam/sbmp/pkg/frame"
)

// pump moves everything an endpoint has written into from onto the wire
// of to, simulating a byte-stream transport between two endpoints in a
// single-threaded test.
func pump(from *bytes.Buffer, to *endpoint.Endpoint) {
	b := append([]byte(nil), from.Bytes()...)
	from.Reset()
	for _, c := range b {
		to.Feed(c)
	}
}

func sendRawDatagram(t *testing.T, ep *endpoint.Endpoint, session uint16, typ byte, body []byte) {
	t.Helper()
	var wire bytes.Buffer
	f := frame.New(64, &wire, nil)
	if !datagram.StartTx(f, checksum.None, session, typ, len(body)) {
		t.Fatalf("StartTx failed")
	}
	f.SendBuffer(body)
	for _, b := range wire.Bytes() {
		ep.Feed(b)
	}
}

func TestNextSessionWraps(t *testing.T) {
	var buf bytes.Buffer
	ep := endpoint.New(&buf, endpoint.WithSessionSeed(0x7FFF), endpoint.WithOrigin(1))

	s1 := ep.NextSession()
	if want := uint16(0x7FFF | 0x8000); s1 != want {
		t.Fatalf("s1 = %#x, want %#x", s1, want)
	}
	s2 := ep.NextSession()
	if want := uint16(0x8000); s2 != want {
		t.Fatalf("s2 = %#x, want %#x (counter wraps to 0, origin bit stays set)", s2, want)
	}
}

func TestNextSessionCarriesOriginBit(t *testing.T) {
	var buf bytes.Buffer
	ep := endpoint.New(&buf)
	for i := 0; i < 5; i++ {
		if s := ep.NextSession(); s&0x8000 != 0 {
			t.Errorf("session %#x has origin bit set, want unset (origin=0)", s)
		}
	}
}

func TestHandshakeSuccess(t *testing.T) {
	var aWire, bWire bytes.Buffer
	a := endpoint.New(&aWire, endpoint.WithBufferCapacity(64))
	b := endpoint.New(&bWire, endpoint.WithBufferCapacity(64))

	if !a.StartHandshake() {
		t.Fatalf("A.StartHandshake() = false")
	}
	if a.HandshakeStatus() != endpoint.AwaitReply {
		t.Fatalf("A status = %v, want AwaitReply", a.HandshakeStatus())
	}

	pump(&aWire, b) // B receives HSK_START, replies HSK_ACCEPT

	if b.HandshakeStatus() != endpoint.Success {
		t.Fatalf("B status = %v, want Success", b.HandshakeStatus())
	}
	if b.Origin() != 1 {
		t.Errorf("B origin = %d, want 1 (A's HSK_START carried origin bit 0)", b.Origin())
	}

	pump(&bWire, a) // A receives HSK_ACCEPT

	if a.HandshakeStatus() != endpoint.Success {
		t.Fatalf("A status = %v, want Success", a.HandshakeStatus())
	}
	if a.Origin() != 0 {
		t.Errorf("A origin = %d, want 0 (unchanged: A never handles an HSK_START)", a.Origin())
	}
	if a.PeerBufferSize() != 64 {
		t.Errorf("A PeerBufferSize = %d, want 64", a.PeerBufferSize())
	}
	if b.PeerBufferSize() != 64 {
		t.Errorf("B PeerBufferSize = %d, want 64", b.PeerBufferSize())
	}
}

func TestHandshakeSimultaneousCollision(t *testing.T) {
	var aWire, bWire bytes.Buffer
	a := endpoint.New(&aWire)
	b := endpoint.New(&bWire)

	if !a.StartHandshake() || !b.StartHandshake() {
		t.Fatalf("StartHandshake failed")
	}

	aOut := append([]byte(nil), aWire.Bytes()...)
	bOut := append([]byte(nil), bWire.Bytes()...)
	aWire.Reset()
	bWire.Reset()

	for _, c := range aOut {
		b.Feed(c)
	}
	for _, c := range bOut {
		a.Feed(c)
	}

	if a.HandshakeStatus() != endpoint.Conflict {
		t.Errorf("A status = %v, want Conflict", a.HandshakeStatus())
	}
	if b.HandshakeStatus() != endpoint.Conflict {
		t.Errorf("B status = %v, want Conflict", b.HandshakeStatus())
	}
}

func TestHandshakeRestartWhileAlreadySuccessfulRenegotiates(t *testing.T) {
	var aWire, bWire bytes.Buffer
	a := endpoint.New(&aWire)
	b := endpoint.New(&bWire)

	a.StartHandshake()
	pump(&aWire, b)
	pump(&bWire, a)
	if a.HandshakeStatus() != endpoint.Success || b.HandshakeStatus() != endpoint.Success {
		t.Fatalf("initial handshake did not succeed: a=%v b=%v", a.HandshakeStatus(), b.HandshakeStatus())
	}

	// B is already SUCCESS; a fresh HSK_START from A still re-negotiates
	// rather than being rejected as a protocol error.
	a.StartHandshake()
	pump(&aWire, b)

	if b.HandshakeStatus() != endpoint.Success {
		t.Errorf("B status after re-handshake = %v, want Success", b.HandshakeStatus())
	}
}

func TestStartResponseRespectsPeerBufferSize(t *testing.T) {
	var aWire, bWire bytes.Buffer
	a := endpoint.New(&aWire)
	b := endpoint.New(&bWire, endpoint.WithBufferCapacity(16))

	a.StartHandshake()
	pump(&aWire, b)
	pump(&bWire, a)

	if a.HandshakeStatus() != endpoint.Success {
		t.Fatalf("handshake did not complete: %v", a.HandshakeStatus())
	}
	if a.PeerBufferSize() != 16 {
		t.Fatalf("PeerBufferSize = %d, want 16", a.PeerBufferSize())
	}

	if session, ok := a.StartSession(0x20, 14); ok {
		t.Errorf("StartSession(len=14) succeeded for session %#x, want rejection (14 > 16-3)", session)
	}
	if _, ok := a.StartSession(0x20, 13); !ok {
		t.Errorf("StartSession(len=13) rejected, want success (13 <= 16-3)")
	}
}

func TestSendMessageAndSendResponseReportAcceptedBytes(t *testing.T) {
	var buf bytes.Buffer
	ep := endpoint.New(&buf, endpoint.WithBufferCapacity(64))

	session, n, ok := ep.SendMessage(0x30, []byte("hello"))
	if !ok || n != 5 {
		t.Fatalf("SendMessage = (%d, %v), want (5, true)", n, ok)
	}

	n2, ok2 := ep.SendResponse(0x31, []byte("world"), session)
	if !ok2 || n2 != 5 {
		t.Fatalf("SendResponse = (%d, %v), want (5, true)", n2, ok2)
	}
}

func TestListenerDispatchAndDefaultHandler(t *testing.T) {
	var buf bytes.Buffer
	ep := endpoint.New(&buf)

	var got []byte
	ep.AddListener(0x0042, func(_ *endpoint.Endpoint, dg *datagram.Dg) {
		got = append([]byte(nil), dg.Payload...)
	})

	var defaulted []byte
	ep.SetDefaultHandler(func(dg *datagram.Dg) {
		defaulted = append([]byte(nil), dg.Payload...)
	})

	sendRawDatagram(t, ep, 0x0042, 0x09, []byte{1, 2, 3})
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("listener payload = %v, want [1 2 3]", got)
	}

	sendRawDatagram(t, ep, 0x0099, 0x09, []byte{9})
	if !bytes.Equal(defaulted, []byte{9}) {
		t.Fatalf("default handler payload = %v, want [9]", defaulted)
	}
}

func TestAddListenerFailsWhenTableFull(t *testing.T) {
	var buf bytes.Buffer
	ep := endpoint.New(&buf, endpoint.WithListenerSlots(1))

	cb := func(_ *endpoint.Endpoint, _ *datagram.Dg) {}
	if !ep.AddListener(0x01, cb) {
		t.Fatalf("first AddListener failed")
	}
	if ep.AddListener(0x02, cb) {
		t.Errorf("second AddListener succeeded with only one slot configured")
	}
}

func TestRemoveListenerClearsFirstMatchOnly(t *testing.T) {
	var buf bytes.Buffer
	ep := endpoint.New(&buf, endpoint.WithListenerSlots(4))

	var calls int
	cb := func(_ *endpoint.Endpoint, _ *datagram.Dg) { calls++ }
	ep.AddListener(0x01, cb)
	ep.AddListener(0x01, cb)

	ep.RemoveListener(0x01)
	sendRawDatagram(t, ep, 0x01, 0x00, nil)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (one duplicate slot should remain active)", calls)
	}
}

func TestCRC32DisabledDowngradesPeerPreference(t *testing.T) {
	var aWire, bWire bytes.Buffer
	a := endpoint.New(&aWire, endpoint.WithPreferredChecksum(checksum.CRC32))
	b := endpoint.New(&bWire, endpoint.WithCRC32Disabled())

	a.StartHandshake()
	pump(&aWire, b)
	pump(&bWire, a)

	if a.HandshakeStatus() != endpoint.Success {
		t.Fatalf("handshake did not complete: %v", a.HandshakeStatus())
	}

	session, n, ok := b.SendMessage(0x40, []byte("hi"))
	if !ok || n != 2 {
		t.Fatalf("SendMessage from B = (%d, %v), want (2, true)", n, ok)
	}
	_ = session
	if bWire.Len() == 0 {
		t.Fatalf("B wrote nothing")
	}
	if got := checksum.Kind(bWire.Bytes()[1]); got != checksum.XOR {
		t.Errorf("frame checksum kind = %v, want XOR (CRC32 request downgraded)", got)
	}
}
