// Package db persists sealed event-log segments into a SQLite archive
// and exposes the queries the status API serves. Schema changes go
// through the embedded migrations; see RunMigrateCommand.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the capture archive database.
type DB struct {
	*sql.DB
	path string
}

// OpenDB opens (creating if needed) the SQLite archive at path and applies
// the connection pragmas. It does not touch the schema; migrations own
// that.
func OpenDB(path string) (*DB, error) {
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}

	// One writer (the archiver) plus short-lived API readers; WAL keeps
	// the readers from blocking the writer.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := sdb.Exec(p); err != nil {
			sdb.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	return &DB{DB: sdb, path: path}, nil
}

// OpenDBWithMigrationCheck opens the archive and reconciles its schema.
// With autoMigrate set, outstanding migrations are applied immediately
// (dev convenience); otherwise a schema mismatch closes the database and
// comes back as an error so the operator runs migrations deliberately.
func OpenDBWithMigrationCheck(path string, autoMigrate bool) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("getting migrations filesystem: %w", err)
	}

	if autoMigrate {
		if err := database.MigrateUp(migrationsFS); err != nil {
			database.Close()
			return nil, fmt.Errorf("applying migrations: %w", err)
		}
		return database, nil
	}

	if _, err := database.CheckAndPromptMigrations(migrationsFS); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string { return db.path }

// CaptureSession is one daemon run against one serial device.
type CaptureSession struct {
	SessionID string     `json:"session_id"`
	Port      string     `json:"port"`
	BaudRate  int        `json:"baud_rate"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// StartSession records the beginning of a capture run.
func (db *DB) StartSession(sessionID, port string, baud int) error {
	_, err := db.Exec(
		"INSERT INTO capture_sessions (session_id, port, baud_rate) VALUES (?, ?, ?)",
		sessionID, port, baud,
	)
	if err != nil {
		return fmt.Errorf("recording capture session: %w", err)
	}
	return nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(sessionID string) error {
	_, err := db.Exec(
		"UPDATE capture_sessions SET ended_at = CURRENT_TIMESTAMP WHERE session_id = ?",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("ending capture session: %w", err)
	}
	return nil
}

// Sessions returns recent capture sessions, newest first.
func (db *DB) Sessions(limit int) ([]CaptureSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT session_id, port, baud_rate, started_at, ended_at
		 FROM capture_sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []CaptureSession
	for rows.Next() {
		var s CaptureSession
		var ended sql.NullTime
		if err := rows.Scan(&s.SessionID, &s.Port, &s.BaudRate, &s.StartedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			t := ended.Time
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// LatestSessionID returns the most recently started session id, or ""
// when the archive has none.
func (db *DB) LatestSessionID() (string, error) {
	var id string
	err := db.QueryRow(
		"SELECT session_id FROM capture_sessions ORDER BY started_at DESC, rowid DESC LIMIT 1",
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// ArchivedSegment is one sealed segment's archive row.
type ArchivedSegment struct {
	SessionID    string    `json:"session_id"`
	SegmentIndex uint32    `json:"segment_index"`
	SealedAt     time.Time `json:"sealed_at"`
	ArchivedAt   time.Time `json:"archived_at"`
	RecordCount  int       `json:"record_count"`
	ByteSize     int       `json:"byte_size"`
}

// ArchivedRecord is one encoded record inside an archived segment.
type ArchivedRecord struct {
	SessionID    string `json:"session_id"`
	SegmentIndex uint32 `json:"segment_index"`
	Seq          int    `json:"seq"`
	EventCode    uint8  `json:"event_code"`
	Payload      []byte `json:"payload"`
}

// Segments returns archived segments, most recently archived first.
func (db *DB) Segments(limit int) ([]ArchivedSegment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT session_id, segment_index, sealed_at, archived_at, record_count, byte_size
		 FROM segments ORDER BY archived_at DESC, segment_index DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []ArchivedSegment
	for rows.Next() {
		var s ArchivedSegment
		if err := rows.Scan(&s.SessionID, &s.SegmentIndex, &s.SealedAt, &s.ArchivedAt, &s.RecordCount, &s.ByteSize); err != nil {
			return nil, err
		}
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return segments, nil
}

// SegmentRecords returns the records of one archived segment in append
// order.
func (db *DB) SegmentRecords(sessionID string, index uint32) ([]ArchivedRecord, error) {
	rows, err := db.Query(
		`SELECT session_id, segment_index, seq, event_code, payload
		 FROM records WHERE session_id = ? AND segment_index = ? ORDER BY seq`,
		sessionID, index)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ArchivedRecord
	for rows.Next() {
		var r ArchivedRecord
		if err := rows.Scan(&r.SessionID, &r.SegmentIndex, &r.Seq, &r.EventCode, &r.Payload); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
