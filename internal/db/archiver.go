package db

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/airquality.report/internal/eventlog"
	"github.com/banshee-data/airquality.report/internal/monitoring"
	"github.com/banshee-data/airquality.report/internal/timeutil"
)

// ArchiveSegment stores one sealed segment and all of its records in a
// single transaction, so a crash mid-archive leaves no partial segment
// behind.
func (db *DB) ArchiveSegment(sessionID string, seg *eventlog.Segment) error {
	records, err := seg.Records()
	if err != nil {
		return fmt.Errorf("parsing segment %d: %w", seg.Index(), err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning archive transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO segments (session_id, segment_index, sealed_at, record_count, byte_size)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, seg.Index(), seg.SealedAt(), seg.RecordCount(), seg.Len(),
	); err != nil {
		return fmt.Errorf("inserting segment %d: %w", seg.Index(), err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO records (session_id, segment_index, seq, event_code, payload) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()
	for i, rec := range records {
		if _, err := stmt.Exec(sessionID, seg.Index(), i, rec.Code, rec.Payload); err != nil {
			return fmt.Errorf("inserting record %d of segment %d: %w", i, seg.Index(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing segment %d: %w", seg.Index(), err)
	}
	return nil
}

// Archiver is the event log's single sealed-segment consumer: it wakes on
// the log's notification channel and on a periodic tick that catches
// anything a coalesced notification left behind, and writes each sealed
// segment into the archive. Segments that fail to archive stay queued and
// are retried on the next wake-up.
type Archiver struct {
	db       *DB
	log      *eventlog.Log
	session  string
	interval time.Duration
	clock    timeutil.Clock
	stats    *monitoring.PipelineStats

	pending []*eventlog.Segment // owned by the Run goroutine
}

// NewArchiver wires an archiver for one capture session. A zero interval
// selects 30s; nil clock and stats get the usual defaults.
func NewArchiver(database *DB, log *eventlog.Log, sessionID string, interval time.Duration, clock timeutil.Clock, stats *monitoring.PipelineStats) *Archiver {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if stats == nil {
		stats = &monitoring.PipelineStats{}
	}
	return &Archiver{
		db:       database,
		log:      log,
		session:  sessionID,
		interval: interval,
		clock:    clock,
		stats:    stats,
	}
}

// Run drains sealed segments until ctx is cancelled, then performs one
// final drain so a shutdown flush is not stranded in the queue. The
// caller must seal the log's open segment before cancelling if it wants
// that data archived.
func (a *Archiver) Run(ctx context.Context) {
	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Drain()
			return
		case <-a.log.Sealed():
			a.Drain()
		case <-ticker.C():
			a.Drain()
		}
	}
}

// Drain archives every sealed segment currently queued, in index order.
// On a database error the remaining segments are kept for the next
// attempt. Not safe for concurrent use; Run is the only caller in the
// daemon.
func (a *Archiver) Drain() {
	a.pending = append(a.pending, a.log.TakeSealed()...)
	for len(a.pending) > 0 {
		seg := a.pending[0]
		if err := a.db.ArchiveSegment(a.session, seg); err != nil {
			a.stats.ArchiveErrors.Add(1)
			monitoring.Logf("db: archiving segment %d failed (will retry): %v", seg.Index(), err)
			return
		}
		a.pending = a.pending[1:]
		a.stats.SegmentsArchived.Add(1)
	}
}
