// Package frame implements the SBMP FRM layer: a byte-driven receive state
// machine that delimits and validates frames on a raw byte stream, and a
// symmetric transmit API that frames outgoing payloads through a
// caller-supplied byte writer.
//
// Wire format:
//
//	SOF(0x01) | CKSUM_KIND(1B) | LEN_LSB | LEN_MSB | payload[LEN] | CKSUM[0|1|4]
package frame

import (
	"bytes"
	"io"

	"github.com/ignacioSepam/sbmp/pkg/checksum"
)

// SOF marks the start of a frame on the wire. Any byte received outside a
// frame that is not SOF is silently discarded.
const SOF byte = 0x01

// UpstreamHandler receives frame payloads completed by Feed. It is the
// back-reference the FRM layer uses to reach the layer above it (normally
// an *endpoint.Endpoint) instead of the source's opaque user token — see
// SPEC_FULL.md §9. Payload aliases the Frame's internal buffer and is only
// valid for the duration of the call.
type UpstreamHandler interface {
	HandlePayload(f *Frame, payload []byte)
}

// UpstreamHandlerFunc adapts a plain function to UpstreamHandler.
type UpstreamHandlerFunc func(f *Frame, payload []byte)

// HandlePayload calls fn.
func (fn UpstreamHandlerFunc) HandlePayload(f *Frame, payload []byte) { fn(f, payload) }

// state is the receive-side parser state. Unlike a tagged-union
// representation, the running checksum accumulator lives on Frame itself
// rather than as state-associated data — Go's switch doesn't carry payload
// the way an enum with fields would.
type state byte

const (
	stateIdle state = iota
	stateChecksumKind
	stateLenLSB
	stateLenMSB
	statePayload
	stateChecksumBytes
)

// Frame is the FRM layer. One Frame backs exactly one endpoint; it is not
// safe for concurrent use — see SPEC_FULL.md §5.
type Frame struct {
	w       io.ByteWriter
	handler UpstreamHandler

	// receive state
	st          state
	buf         []byte // len 0..cap; cap is the fixed declared capacity
	received    int
	expectedLen uint16
	rxKind      checksum.Kind
	rxAcc       checksum.Accumulator
	rxCksumBuf  [4]byte
	rxCksumGot  int
	rxCksumNeed int
	rxEnabled   bool

	// transmit state
	txEnabled bool
	txActive  bool
	txKind    checksum.Kind
	txAcc     checksum.Accumulator
	txLen     uint16
	txSent    uint16
}

// Option configures a Frame at construction.
type Option func(*Frame)

// WithRxDisabled starts the Frame with receive disabled; bytes fed via Feed
// are discarded until SetRxEnabled(true) is called.
func WithRxDisabled() Option { return func(f *Frame) { f.rxEnabled = false } }

// WithTxDisabled starts the Frame with transmit disabled; StartTx/SendByte/
// SendBuffer return false until SetTxEnabled(true) is called.
func WithTxDisabled() Option { return func(f *Frame) { f.txEnabled = false } }

// New returns a Frame with a payload buffer of the given capacity. Received
// frames are delivered to handler; transmitted bytes are written through w.
func New(capacity int, w io.ByteWriter, handler UpstreamHandler, opts ...Option) *Frame {
	f := &Frame{
		w:         w,
		handler:   handler,
		buf:       make([]byte, 0, capacity),
		rxEnabled: true,
		txEnabled: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Capacity returns the fixed payload buffer capacity.
func (f *Frame) Capacity() int { return cap(f.buf) }

// SetRxEnabled enables or disables the receive path. While disabled, Feed
// discards every byte regardless of parser state.
func (f *Frame) SetRxEnabled(v bool) { f.rxEnabled = v }

// SetTxEnabled enables or disables the transmit path.
func (f *Frame) SetTxEnabled(v bool) { f.txEnabled = v }

// RxEnabled reports whether the receive path is enabled.
func (f *Frame) RxEnabled() bool { return f.rxEnabled }

// TxEnabled reports whether the transmit path is enabled.
func (f *Frame) TxEnabled() bool { return f.txEnabled }

// Reset returns the receive state machine to idle, discarding any
// partially received frame. It does not touch buffer capacity or an
// in-progress transmit.
func (f *Frame) Reset() {
	f.st = stateIdle
	f.buf = f.buf[:0]
	f.received = 0
	f.expectedLen = 0
	f.rxKind = 0
	f.rxAcc = nil
	f.rxCksumGot = 0
	f.rxCksumNeed = 0
}

// Feed consumes one byte received off the wire, advancing the receive state
// machine by exactly one transition. When a frame is completed and its
// checksum validated, Feed invokes the upstream handler synchronously
// before returning — see SPEC_FULL.md §5 on ordering.
func (f *Frame) Feed(b byte) {
	if !f.rxEnabled {
		return
	}
	switch f.st {
	case stateIdle:
		if b == SOF {
			f.st = stateChecksumKind
		}

	case stateChecksumKind:
		k := checksum.Kind(b)
		if !k.Valid() {
			f.st = stateIdle
			return
		}
		f.rxKind = k
		f.rxAcc = checksum.NewAccumulator(k)
		f.st = stateLenLSB

	case stateLenLSB:
		f.expectedLen = uint16(b)
		f.st = stateLenMSB

	case stateLenMSB:
		f.expectedLen |= uint16(b) << 8
		f.buf = f.buf[:0]
		f.received = 0
		if f.expectedLen == 0 {
			f.enterChecksumOrDeliver()
		} else {
			f.st = statePayload
		}

	case statePayload:
		if len(f.buf) >= cap(f.buf) {
			// Declared length exceeds our fixed capacity: reject and resync.
			f.st = stateIdle
			return
		}
		f.buf = append(f.buf, b)
		f.received++
		if f.rxAcc != nil {
			f.rxAcc.Update(b)
		}
		if f.received == int(f.expectedLen) {
			f.enterChecksumOrDeliver()
		}

	case stateChecksumBytes:
		f.rxCksumBuf[f.rxCksumGot] = b
		f.rxCksumGot++
		if f.rxCksumGot == f.rxCksumNeed {
			f.finishChecksum()
		}
	}
}

func (f *Frame) enterChecksumOrDeliver() {
	size := f.rxKind.Size()
	if size == 0 {
		f.deliver()
		return
	}
	f.rxCksumGot = 0
	f.rxCksumNeed = size
	f.st = stateChecksumBytes
}

func (f *Frame) finishChecksum() {
	want := f.rxAcc.Bytes()
	got := f.rxCksumBuf[:f.rxCksumNeed]
	if !bytes.Equal(want, got) {
		f.st = stateIdle
		f.rxAcc = nil
		f.buf = f.buf[:0]
		f.received = 0
		return
	}
	f.deliver()
}

func (f *Frame) deliver() {
	payload := f.buf[:f.received]
	f.st = stateIdle
	if f.handler != nil {
		f.handler.HandlePayload(f, payload)
	}
	f.buf = f.buf[:0]
	f.received = 0
	f.rxAcc = nil
}

// StartTx begins transmitting a frame with the given checksum kind and
// total payload length, writing the SOF/kind/length header immediately and
// priming the checksum accumulator. It returns false without writing
// anything if Tx is disabled or a transmit is already in progress.
func (f *Frame) StartTx(kind checksum.Kind, length uint16) bool {
	if !f.txEnabled || f.txActive {
		return false
	}
	hdr := [4]byte{SOF, byte(kind), byte(length), byte(length >> 8)}
	for _, b := range hdr {
		if err := f.w.WriteByte(b); err != nil {
			return false
		}
	}
	f.txKind = kind
	f.txAcc = checksum.NewAccumulator(kind)
	f.txLen = length
	f.txSent = 0
	f.txActive = true
	if length == 0 {
		f.flushTrailer()
	}
	return true
}

// SendByte appends one payload byte to the frame started by StartTx. Once
// the declared length has been reached, the checksum trailer is flushed
// automatically on this call. Returns false without writing if Tx is
// disabled or no transmit is in progress.
func (f *Frame) SendByte(b byte) bool {
	if !f.txEnabled || !f.txActive {
		return false
	}
	if err := f.w.WriteByte(b); err != nil {
		f.txActive = false
		f.txAcc = nil
		return false
	}
	if f.txAcc != nil {
		f.txAcc.Update(b)
	}
	f.txSent++
	if f.txSent == f.txLen {
		f.flushTrailer()
	}
	return true
}

// SendBuffer appends p one byte at a time via SendByte, stopping early if
// SendByte returns false. It returns the number of bytes actually written.
func (f *Frame) SendBuffer(p []byte) int {
	n := 0
	for _, b := range p {
		if !f.SendByte(b) {
			break
		}
		n++
	}
	return n
}

func (f *Frame) flushTrailer() {
	if f.txAcc != nil {
		for _, b := range f.txAcc.Bytes() {
			_ = f.w.WriteByte(b)
		}
	}
	f.txActive = false
	f.txAcc = nil
}
