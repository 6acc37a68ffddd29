package endpoint

// Reserved datagram types the endpoint layer interprets itself, ahead of
// listener dispatch. Types outside this range are application-defined.
const (
	HskStart    byte = 0x01
	HskAccept   byte = 0x02
	HskConflict byte = 0x03

	// Reserved for a future bulk-transfer extension. Not implemented; an
	// endpoint that receives one of these today falls through to the
	// listener table like any other unrecognized type.
	hskBulkStart byte = 0x04
	hskBulkData  byte = 0x05
	hskBulkEnd   byte = 0x06
)

// handshakePayloadSize is the wire length of a handshake datagram's body:
// [preferred_checksum:1][own_buffer_size:2 LE].
const handshakePayloadSize = 3
