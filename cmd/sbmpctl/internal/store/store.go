// Package store persists sbmpctl's handshake history to a local sqlite
// database so past attempts can be reviewed with `sbmpctl history`.
package store

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite handshake-history database.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and runs
// migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS handshakes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			device TEXT NOT NULL,
			status TEXT NOT NULL,
			local_origin INTEGER,
			peer_checksum TEXT,
			peer_buffer_size INTEGER,
			started_at TEXT NOT NULL,
			finished_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_handshakes_session ON handshakes(session_id);
	`)
	return err
}

// Handshake is one recorded handshake attempt.
type Handshake struct {
	ID             int64
	SessionID      string
	Device         string
	Status         string
	LocalOrigin    *int
	PeerChecksum   string
	PeerBufferSize *int
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// RecordStart inserts a new in-progress handshake attempt and returns its
// row id.
func (db *DB) RecordStart(sessionID, device string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec(
		"INSERT INTO handshakes (session_id, device, status, started_at) VALUES (?, ?, ?, ?)",
		sessionID, device, "AWAIT_REPLY", now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordOutcome updates a handshake row with its final status and the
// negotiated peer parameters.
func (db *DB) RecordOutcome(id int64, status string, localOrigin, peerBufferSize int, peerChecksum string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.Exec(
		"UPDATE handshakes SET status=?, local_origin=?, peer_checksum=?, peer_buffer_size=?, finished_at=? WHERE id=?",
		status, localOrigin, peerChecksum, peerBufferSize, now, id,
	)
	return err
}

// Recent returns the most recent limit handshake attempts, newest first.
func (db *DB) Recent(limit int) ([]Handshake, error) {
	rows, err := db.Query(
		`SELECT id, session_id, device, status, local_origin, peer_checksum, peer_buffer_size, started_at, finished_at
		 FROM handshakes ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Handshake
	for rows.Next() {
		var h Handshake
		var started string
		var finished sql.NullString
		var origin, peerBufSize sql.NullInt64
		var peerCksum sql.NullString
		if err := rows.Scan(&h.ID, &h.SessionID, &h.Device, &h.Status, &origin, &peerCksum, &peerBufSize, &started, &finished); err != nil {
			return nil, err
		}
		if origin.Valid {
			v := int(origin.Int64)
			h.LocalOrigin = &v
		}
		if peerBufSize.Valid {
			v := int(peerBufSize.Int64)
			h.PeerBufferSize = &v
		}
		h.PeerChecksum = peerCksum.String
		h.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished.Valid {
			t, _ := time.Parse(time.RFC3339, finished.String)
			h.FinishedAt = &t
		}
		list = append(list, h)
	}
	return list, rows.Err()
}
