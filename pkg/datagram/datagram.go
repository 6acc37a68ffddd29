// Package datagram implements the SBMP DG layer: it interprets a frame
// payload as a session-numbered, typed datagram, and provides the
// symmetric "start header, then stream body bytes" transmit half.
package datagram

import (
	"errors"

	"github.com/ignacioSepam/sbmp/pkg/checksum"
	"github.com/ignacioSepam/sbmp/pkg/frame"
)

// HeaderSize is the fixed [session:2][type:1] datagram header length.
const HeaderSize = 3

// ErrShort is returned by Parse when a frame payload is too short to hold
// a datagram header.
var ErrShort = errors.New("sbmp: datagram: payload shorter than header")

// OriginMask isolates the origin bit (bit 15) of a session number.
const OriginMask uint16 = 0x8000

// SessionMask isolates the 15-bit per-endpoint counter of a session number.
const SessionMask uint16 = 0x7FFF

// Dg is a view over a frame payload: session number, type, and body. It
// does not own its buffer — Payload aliases the frame's receive buffer and
// is only valid for the duration of one upstream callback. Callers that
// need to retain data past the callback must copy it.
type Dg struct {
	Session uint16
	Type    byte
	Payload []byte
}

// Origin returns the origin bit (bit 15) of the datagram's session number.
func (d Dg) Origin() uint16 { return (d.Session & OriginMask) >> 15 }

// Parse interprets payload as [session:2 LE][type:1][body...]. It returns
// ErrShort if payload is shorter than the 3-byte header.
func Parse(payload []byte) (Dg, error) {
	if len(payload) < HeaderSize {
		return Dg{}, ErrShort
	}
	return Dg{
		Session: uint16(payload[0]) | uint16(payload[1])<<8,
		Type:    payload[2],
		Payload: payload[HeaderSize:],
	}, nil
}

// StartTx begins transmitting a datagram: it starts the underlying frame
// with a total payload length of the 3-byte header plus bodyLen, then
// writes the header bytes. The caller streams the body via f.SendByte /
// f.SendBuffer immediately afterward. Returns false if the underlying
// frame's StartTx fails (Tx disabled or a transmit already in progress) or
// if writing the header bytes was rejected.
func StartTx(f *frame.Frame, kind checksum.Kind, session uint16, typ byte, bodyLen int) bool {
	total := HeaderSize + bodyLen
	if total < 0 || total > 0xFFFF {
		return false
	}
	if !f.StartTx(kind, uint16(total)) {
		return false
	}
	hdr := [HeaderSize]byte{byte(session), byte(session >> 8), typ}
	n := f.SendBuffer(hdr[:])
	return n == HeaderSize
}
