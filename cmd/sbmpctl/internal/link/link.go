// Package link wires an *endpoint.Endpoint to a real byte-stream device
// (normally a serial port opened by path) for sbmpctl's commands: a
// background goroutine feeds bytes off the device into the endpoint, and
// a JSONL diagnostic log records handshake and framing events tagged with
// a per-invocation correlation ID.
package link

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ignacioSepam/sbmp/pkg/checksum"
	"github.com/ignacioSepam/sbmp/pkg/endpoint"
)

// ParseChecksum maps a config/flag string to a checksum.Kind.
func ParseChecksum(s string) (checksum.Kind, error) {
	switch s {
	case "none":
		return checksum.None, nil
	case "xor":
		return checksum.XOR, nil
	case "crc32", "":
		return checksum.CRC32, nil
	default:
		return 0, fmt.Errorf("sbmpctl: unknown checksum kind %q (want none, xor, or crc32)", s)
	}
}

// byteWriter adapts an io.Writer to io.ByteWriter one byte at a time,
// matching how the frame layer emits its wire bytes.
type byteWriter struct{ w io.Writer }

func (b byteWriter) WriteByte(c byte) error {
	_, err := b.w.Write([]byte{c})
	return err
}

// Link owns one endpoint.Endpoint bound to an open device, a background
// reader goroutine, and the diagnostic session's correlation ID.
type Link struct {
	SessionID string
	Endpoint  *endpoint.Endpoint

	conn io.ReadWriteCloser
	diag *diagLog
	done chan struct{}
}

// Open opens the device at path and wires a new *endpoint.Endpoint to it,
// starting a reader goroutine that feeds incoming bytes to the endpoint.
// Diagnostic events are appended to logPath as JSON lines; pass "" to
// disable diagnostic logging.
func Open(path string, prefCksum checksum.Kind, bufSize int, logPath string) (*Link, error) {
	conn, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("sbmpctl: open %s: %w", path, err)
	}

	sessionID := uuid.New().String()
	dl, err := newDiagLog(logPath, sessionID)
	if err != nil {
		conn.Close()
		return nil, err
	}

	ep := endpoint.New(byteWriter{conn},
		endpoint.WithBufferCapacity(bufSize),
		endpoint.WithPreferredChecksum(prefCksum),
		endpoint.WithLogger(dl),
	)

	l := &Link{
		SessionID: sessionID,
		Endpoint:  ep,
		conn:      conn,
		diag:      dl,
		done:      make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

func (l *Link) readLoop() {
	r := bufio.NewReader(l.conn)
	for {
		select {
		case <-l.done:
			return
		default:
		}
		b, err := r.ReadByte()
		if err != nil {
			if err != io.EOF {
				l.diag.Errorf("sbmpctl: read: %v", err)
			}
			return
		}
		l.Endpoint.Feed(b)
	}
}

// Close stops the reader goroutine, closes the diagnostic log, and closes
// the underlying device.
func (l *Link) Close() error {
	close(l.done)
	l.diag.Close()
	return l.conn.Close()
}

// diagLog implements sbmplog.Logger by appending JSON lines to a file,
// each stamped with the owning Link's correlation ID.
type diagLog struct {
	f         *os.File
	sessionID string
}

type diagEvent struct {
	Time      string `json:"time"`
	Level     string `json:"level"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func newDiagLog(path, sessionID string) (*diagLog, error) {
	if path == "" {
		return &diagLog{}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &diagLog{f: f, sessionID: sessionID}, nil
}

func (d *diagLog) write(level, format string, args ...any) {
	if d.f == nil {
		return
	}
	ev := diagEvent{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		SessionID: d.sessionID,
		Message:   fmt.Sprintf(format, args...),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b = append(b, '\n')
	_, _ = d.f.Write(b)
}

func (d *diagLog) Infof(format string, args ...any)  { d.write("info", format, args...) }
func (d *diagLog) Warnf(format string, args ...any)  { d.write("warn", format, args...) }
func (d *diagLog) Errorf(format string, args ...any) { d.write("error", format, args...) }

func (d *diagLog) Close() error {
	if d.f == nil {
		return nil
	}
	return d.f.Close()
}
