package endpoint

import (
	"github.com/ignacioSepam/sbmp/pkg/checksum"
	"github.com/ignacioSepam/sbmp/pkg/datagram"
)

type handshakePayload struct {
	prefCksum checksum.Kind
	bufSize   uint16
}

func encodeHandshakePayload(k checksum.Kind, bufSize uint16) [handshakePayloadSize]byte {
	return [handshakePayloadSize]byte{byte(k), byte(bufSize), byte(bufSize >> 8)}
}

func decodeHandshakePayload(body []byte) (handshakePayload, bool) {
	if len(body) < handshakePayloadSize {
		return handshakePayload{}, false
	}
	return handshakePayload{
		prefCksum: checksum.Kind(body[0]),
		bufSize:   uint16(body[1]) | uint16(body[2])<<8,
	}, true
}

// StartHandshake resets handshake state to NOT_STARTED, then opens a new
// session and sends HSK_START on it, advertising this endpoint's preferred
// checksum and buffer size. On send failure it reverts to NOT_STARTED
// rather than leaving the prior handshake state in place.
func (ep *Endpoint) StartHandshake() bool {
	session := ep.NextSession()
	body := encodeHandshakePayload(ep.effectivePreferredChecksum(), ep.ownBufSize)
	if !datagram.StartTx(ep.frm, handshakeChecksum, session, HskStart, len(body)) {
		ep.hskSession = 0
		ep.hskStatus = NotStarted
		return false
	}
	if ep.frm.SendBuffer(body[:]) != len(body) {
		ep.hskSession = 0
		ep.hskStatus = NotStarted
		return false
	}
	ep.hskSession = session
	ep.hskStatus = AwaitReply
	return true
}

// AbortHandshake returns the handshake state to NotStarted without sending
// anything on the wire.
func (ep *Endpoint) AbortHandshake() {
	ep.hskSession = 0
	ep.hskStatus = NotStarted
}

// HandshakeStatus reports the endpoint's current handshake state.
func (ep *Endpoint) HandshakeStatus() Status { return ep.hskStatus }

func (ep *Endpoint) replyHandshake(typ byte, session uint16, body []byte) {
	if !datagram.StartTx(ep.frm, handshakeChecksum, session, typ, len(body)) {
		return
	}
	ep.frm.SendBuffer(body)
}

// handleHskStart responds to an incoming handshake request. If this
// endpoint already has one outstanding (AwaitReply), the collision is
// resolved by replying HSK_CONFLICT and moving to Conflict. Otherwise —
// including when handshake status is already Success — it silently
// re-negotiates: origin, peer checksum and peer buffer size are all
// overwritten from this exchange. That re-negotiation-on-repeat behavior is
// preserved from the source as-is; see SPEC_FULL.md §9.
func (ep *Endpoint) handleHskStart(dg *datagram.Dg) {
	if ep.hskStatus == AwaitReply {
		body := encodeHandshakePayload(ep.effectivePreferredChecksum(), ep.ownBufSize)
		ep.replyHandshake(HskConflict, dg.Session, body[:])
		ep.hskStatus = Conflict
		return
	}

	ep.origin = (^(dg.Session >> 15)) & 1
	if hp, ok := decodeHandshakePayload(dg.Payload); ok {
		ep.peerCksum = ep.downgradeIfUnavailable(hp.prefCksum)
		ep.peerBufSize = hp.bufSize
	}
	body := encodeHandshakePayload(ep.effectivePreferredChecksum(), ep.ownBufSize)
	ep.replyHandshake(HskAccept, dg.Session, body[:])
	ep.hskStatus = Success
}

func (ep *Endpoint) handleHskAccept(dg *datagram.Dg) {
	if ep.hskStatus != AwaitReply || dg.Session != ep.hskSession {
		ep.logger.Warnf("sbmp: endpoint: unexpected HSK_ACCEPT for session 0x%04x", dg.Session)
		return
	}
	if hp, ok := decodeHandshakePayload(dg.Payload); ok {
		ep.peerCksum = ep.downgradeIfUnavailable(hp.prefCksum)
		ep.peerBufSize = hp.bufSize
	}
	ep.hskStatus = Success
}

func (ep *Endpoint) handleHskConflict(dg *datagram.Dg) {
	if ep.hskStatus != AwaitReply || dg.Session != ep.hskSession {
		ep.logger.Warnf("sbmp: endpoint: unexpected HSK_CONFLICT for session 0x%04x", dg.Session)
		return
	}
	ep.hskStatus = Conflict
}
