// Package endpoint implements the SBMP EP layer: session allocation with
// origin-bit arbitration, the four-state handshake, a fixed-size listener
// table, and the send convenience wrappers layered over a frame.Frame.
package endpoint

import (
	"io"

	"github.com/ignacioSepam/sbmp/pkg/checksum"
	"github.com/ignacioSepam/sbmp/pkg/datagram"
	"github.com/ignacioSepam/sbmp/pkg/frame"
	"github.com/ignacioSepam/sbmp/pkg/sbmplog"
)

const (
	defaultBufferCapacity = 256
	defaultListenerSlots  = 8
	defaultOwnBufferSize  = 512

	// handshake frames are always sent XOR-checksummed: at HSK_START time
	// the peer's preference isn't known yet, and using a fixed kind for
	// every handshake frame keeps the bootstrapping case simple.
	handshakeChecksum = checksum.XOR
)

// Listener receives datagrams addressed to the session it was registered
// for. dg aliases the endpoint's receive buffer and is only valid for the
// duration of the call.
type Listener func(ep *Endpoint, dg *datagram.Dg)

// DefaultHandler receives datagrams that matched no listener slot and were
// not a handshake type. dg aliases the endpoint's receive buffer and is
// only valid for the duration of the call.
type DefaultHandler func(dg *datagram.Dg)

type listenerSlot struct {
	session uint16
	cb      Listener
	active  bool
}

// Endpoint is the EP layer for one point-to-point link. It is not safe for
// concurrent use; callers that feed bytes from a reader goroutine and send
// from others must serialize access themselves — see SPEC_FULL.md §5.
type Endpoint struct {
	frm *frame.Frame
	dg  datagram.Dg

	nextSession uint16 // 15-bit counter, pre-origin-shift
	origin      uint16 // 0 or 1

	ownBufSize  uint16
	peerBufSize uint16

	ownCksum     checksum.Kind
	peerCksum    checksum.Kind
	crc32Enabled bool

	hskStatus  Status
	hskSession uint16

	listeners      []listenerSlot
	defaultHandler DefaultHandler

	logger sbmplog.Logger
}

type config struct {
	bufferCapacity int
	listenerSlots  int
	crc32Enabled   bool
	origin         uint16
	prefCksum      checksum.Kind
	sessionSeed    uint16
	logger         sbmplog.Logger
	defaultHandler DefaultHandler
}

// Option configures an Endpoint at construction.
type Option func(*config)

// WithBufferCapacity sets the frame payload buffer capacity, and the value
// advertised to the peer as this endpoint's own buffer size during the
// handshake. Default 256.
func WithBufferCapacity(n int) Option { return func(c *config) { c.bufferCapacity = n } }

// WithListenerSlots sets the fixed number of listener table slots.
// Default 8.
func WithListenerSlots(n int) Option { return func(c *config) { c.listenerSlots = n } }

// WithCRC32Disabled prevents the endpoint from ever advertising or
// accepting checksum.CRC32; a peer request for it is downgraded to XOR.
func WithCRC32Disabled() Option { return func(c *config) { c.crc32Enabled = false } }

// WithLogger installs a diagnostics sink. Default sbmplog.NopLogger.
func WithLogger(l sbmplog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOrigin seeds the origin bit used until a handshake changes it.
func WithOrigin(bit uint16) Option { return func(c *config) { c.origin = bit & 1 } }

// WithPreferredChecksum sets the checksum kind this endpoint advertises
// during the handshake and requests the peer use when sending to it.
// Default checksum.XOR.
func WithPreferredChecksum(k checksum.Kind) Option { return func(c *config) { c.prefCksum = k } }

// WithSessionSeed sets the initial 15-bit session counter value.
func WithSessionSeed(seed uint16) Option {
	return func(c *config) { c.sessionSeed = seed & datagram.SessionMask }
}

// WithDefaultHandler installs the handler for datagrams matching no
// listener slot.
func WithDefaultHandler(h DefaultHandler) Option { return func(c *config) { c.defaultHandler = h } }

// New returns an Endpoint that frames its wire traffic through w. Received
// bytes are delivered via Feed.
func New(w io.ByteWriter, opts ...Option) *Endpoint {
	cfg := &config{
		bufferCapacity: defaultBufferCapacity,
		listenerSlots:  defaultListenerSlots,
		crc32Enabled:   true,
		prefCksum:      checksum.XOR,
		logger:         sbmplog.NopLogger,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ep := &Endpoint{
		nextSession:    cfg.sessionSeed,
		origin:         cfg.origin,
		ownBufSize:     uint16(cfg.bufferCapacity),
		peerBufSize:    0xFFFF,
		ownCksum:       cfg.prefCksum,
		peerCksum:      cfg.prefCksum,
		crc32Enabled:   cfg.crc32Enabled,
		listeners:      make([]listenerSlot, cfg.listenerSlots),
		defaultHandler: cfg.defaultHandler,
		logger:         cfg.logger,
	}
	if ep.ownBufSize == 0 {
		ep.ownBufSize = defaultOwnBufferSize
	}
	ep.frm = frame.New(cfg.bufferCapacity, w, ep)
	return ep
}

// Reset clears handshake and frame receive state, but keeps buffers,
// listeners and configuration intact.
func (ep *Endpoint) Reset() {
	ep.frm.Reset()
	ep.hskStatus = NotStarted
	ep.hskSession = 0
	ep.peerBufSize = 0xFFFF
}

// Feed drives the receive state machine with one byte off the wire.
func (ep *Endpoint) Feed(b byte) { ep.frm.Feed(b) }

// SetRxEnabled enables or disables the underlying frame's receive path.
func (ep *Endpoint) SetRxEnabled(v bool) { ep.frm.SetRxEnabled(v) }

// SetTxEnabled enables or disables the underlying frame's transmit path.
func (ep *Endpoint) SetTxEnabled(v bool) { ep.frm.SetTxEnabled(v) }

// Origin returns the endpoint's current origin bit.
func (ep *Endpoint) Origin() uint16 { return ep.origin }

// PeerBufferSize returns the peer's advertised buffer size (0xFFFF until a
// handshake completes).
func (ep *Endpoint) PeerBufferSize() uint16 { return ep.peerBufSize }

// SetDefaultHandler replaces the handler for unmatched datagrams.
func (ep *Endpoint) SetDefaultHandler(h DefaultHandler) { ep.defaultHandler = h }

// SendByte streams one body byte for a transmit started by StartResponse or
// StartSession. It returns false if no transmit is active or the frame's
// transmit path is disabled.
func (ep *Endpoint) SendByte(b byte) bool { return ep.frm.SendByte(b) }

// SendBuffer streams p as body bytes for a transmit started by
// StartResponse or StartSession, stopping at the first byte SendByte
// rejects. It returns the number of bytes accepted.
func (ep *Endpoint) SendBuffer(p []byte) int { return ep.frm.SendBuffer(p) }

// HandlePayload implements frame.UpstreamHandler: it parses the completed
// frame payload as a datagram and dispatches it.
func (ep *Endpoint) HandlePayload(_ *frame.Frame, payload []byte) {
	dg, err := datagram.Parse(payload)
	if err != nil {
		ep.logger.Warnf("sbmp: endpoint: dropping frame: %v", err)
		return
	}
	ep.dg = dg
	ep.dispatch(&ep.dg)
}

func (ep *Endpoint) dispatch(dg *datagram.Dg) {
	switch dg.Type {
	case HskStart:
		ep.handleHskStart(dg)
		return
	case HskAccept:
		ep.handleHskAccept(dg)
		return
	case HskConflict:
		ep.handleHskConflict(dg)
		return
	}
	for i := range ep.listeners {
		s := &ep.listeners[i]
		if s.active && s.session == dg.Session {
			s.cb(ep, dg)
			return
		}
	}
	if ep.defaultHandler != nil {
		ep.defaultHandler(dg)
	}
}

// NextSession returns the next session number for a locally-initiated
// exchange: the current 15-bit counter with the origin bit set at bit 15.
// The counter then advances, wrapping to 0 once it passes its 15-bit range.
func (ep *Endpoint) NextSession() uint16 {
	s := (ep.nextSession & datagram.SessionMask) | (ep.origin << 15)
	ep.nextSession++
	if ep.nextSession > datagram.SessionMask {
		ep.nextSession = 0
	}
	return s
}

func (ep *Endpoint) downgradeIfUnavailable(k checksum.Kind) checksum.Kind {
	if k == checksum.CRC32 && !ep.crc32Enabled {
		ep.logger.Errorf("sbmp: endpoint: peer requested CRC32, downgrading to XOR")
		return checksum.XOR
	}
	return k
}

func (ep *Endpoint) effectivePreferredChecksum() checksum.Kind {
	return ep.downgradeIfUnavailable(ep.ownCksum)
}

// AddListener installs cb for datagrams addressed to session, occupying
// the first free slot. Returns false if the listener table is full.
func (ep *Endpoint) AddListener(session uint16, cb Listener) bool {
	for i := range ep.listeners {
		if !ep.listeners[i].active {
			ep.listeners[i] = listenerSlot{session: session, cb: cb, active: true}
			return true
		}
	}
	return false
}

// RemoveListener clears the first active slot registered for session. If
// multiple slots share the same session number, only that first one is
// cleared — preserved from the source as-is, see SPEC_FULL.md §9.
func (ep *Endpoint) RemoveListener(session uint16) {
	for i := range ep.listeners {
		if ep.listeners[i].active && ep.listeners[i].session == session {
			ep.listeners[i] = listenerSlot{}
			return
		}
	}
}

// StartResponse begins transmitting a datagram of the given type and body
// length within an existing session, using the peer's negotiated checksum
// preference. It returns false without writing anything if length would
// exceed the peer's advertised buffer size once the 3-byte datagram header
// is accounted for, or if the underlying frame rejects the transmit. A
// non-zero length must be followed by length bytes via SendByte or
// SendBuffer to flush the frame's trailer; SendResponse does both steps.
func (ep *Endpoint) StartResponse(typ byte, length int, session uint16) bool {
	if length < 0 || length > int(ep.peerBufSize)-datagram.HeaderSize {
		return false
	}
	return datagram.StartTx(ep.frm, ep.peerCksum, session, typ, length)
}

// StartSession allocates a new session via NextSession and begins
// transmitting a datagram of the given type and body length within it. It
// returns the allocated session and false if the transmit could not start;
// callers should treat a false return as the session never having existed
// on the wire.
func (ep *Endpoint) StartSession(typ byte, length int) (uint16, bool) {
	session := ep.NextSession()
	if !ep.StartResponse(typ, length, session) {
		return session, false
	}
	return session, true
}

// SendResponse starts and streams body as a datagram within an existing
// session. It returns the number of body bytes actually accepted and
// whether the full body was sent.
func (ep *Endpoint) SendResponse(typ byte, body []byte, session uint16) (int, bool) {
	if !ep.StartResponse(typ, len(body), session) {
		return 0, false
	}
	n := ep.frm.SendBuffer(body)
	return n, n == len(body)
}

// SendMessage allocates a new session and streams body within it. It
// returns the allocated session, the number of body bytes actually
// accepted, and whether the full body was sent.
func (ep *Endpoint) SendMessage(typ byte, body []byte) (uint16, int, bool) {
	session, ok := ep.StartSession(typ, len(body))
	if !ok {
		return session, 0, false
	}
	n := ep.frm.SendBuffer(body)
	return session, n, n == len(body)
}
