// Package eventlog implements the append-only segmented log that the
// capture pipeline writes encoded sensor records into.
//
// The log hands out fixed-capacity segments identified by a monotonically
// increasing index. Append is a compare-and-append: the caller presents
// the segment index it last observed, and the record is stored only when
// that index matches the current segment and the record fits. In every
// other case the log returns the index the caller must encode for, with
// nothing stored. That is how rollover propagates to the producer: each
// segment must be decodable without state from its predecessors, so the
// producer resets its delta baseline and re-encodes before trying again.
//
// Sealed segments queue in memory until a consumer (normally the archiver)
// drains them with TakeSealed. If nothing drains, the queue is bounded by
// a retention limit and the oldest sealed segments are dropped.
package eventlog

import (
	"errors"
	"sync"

	"github.com/banshee-data/airquality.report/internal/monitoring"
	"github.com/banshee-data/airquality.report/internal/timeutil"
)

const (
	// DefaultSegmentBytes is the per-segment capacity used when Options
	// does not specify one.
	DefaultSegmentBytes = 4096

	// MinSegmentBytes is the smallest allowed segment capacity. Anything
	// smaller risks segments a single worst-case record cannot fit in,
	// which would stop the append protocol from converging.
	MinSegmentBytes = 512

	// DefaultRetainSealed is the number of sealed segments kept when no
	// consumer is draining them.
	DefaultRetainSealed = 16
)

// Flags adjust a single Append call.
type Flags uint32

// FlagNotify asks the log to wake the sealed-segment consumer as soon as
// this append causes a rollover, rather than leaving the segment for the
// next periodic drain.
const FlagNotify Flags = 1 << 0

// ErrRecordTooLarge reports a payload whose framed form cannot fit even in
// an empty segment. The append protocol cannot converge on such a record,
// so producers must treat this as fatal.
var ErrRecordTooLarge = errors.New("eventlog: record larger than segment capacity")

// ErrInvalidSegmentBytes reports an Options.SegmentBytes below the
// minimum.
var ErrInvalidSegmentBytes = errors.New("eventlog: segment capacity below minimum")

// Options configure a Log.
type Options struct {
	// SegmentBytes is the capacity of each segment. Zero selects
	// DefaultSegmentBytes; values below MinSegmentBytes are rejected.
	SegmentBytes int

	// RetainSealed bounds the sealed-segment queue. Zero selects
	// DefaultRetainSealed.
	RetainSealed int

	// Clock stamps segments as they seal. Zero value selects the real
	// clock.
	Clock timeutil.Clock

	// Stats receives seal/drop counters. Optional.
	Stats *monitoring.PipelineStats
}

// Log is an in-memory append-only segmented log with a single producer
// and a single sealed-segment consumer.
type Log struct {
	mu     sync.Mutex
	segCap int
	retain int
	clock  timeutil.Clock
	stats  *monitoring.PipelineStats
	cur    *Segment
	sealed []*Segment
	notify chan struct{}
}

// New creates a Log with segment index 0 open.
func New(opts Options) (*Log, error) {
	if opts.SegmentBytes == 0 {
		opts.SegmentBytes = DefaultSegmentBytes
	}
	if opts.SegmentBytes < MinSegmentBytes {
		return nil, ErrInvalidSegmentBytes
	}
	if opts.RetainSealed == 0 {
		opts.RetainSealed = DefaultRetainSealed
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Stats == nil {
		opts.Stats = &monitoring.PipelineStats{}
	}
	return &Log{
		segCap: opts.SegmentBytes,
		retain: opts.RetainSealed,
		clock:  opts.Clock,
		stats:  opts.Stats,
		cur:    newSegment(0, opts.SegmentBytes),
		notify: make(chan struct{}, 1),
	}, nil
}

// Append stores one record. last is the segment index the caller most
// recently observed. The returned index equals last exactly when the
// record was stored in that segment. Any other return means nothing was
// stored and names the segment the caller must encode for: either the
// caller's view was stale, or the record did not fit and the log rolled
// to a fresh segment.
func (l *Log) Append(last uint32, code EventCode, payload []byte, flags Flags) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if recordSize(payload) > l.segCap {
		return l.cur.index, ErrRecordTooLarge
	}
	if last != l.cur.index {
		return l.cur.index, nil
	}
	if !l.cur.fits(payload) {
		l.sealLocked()
		if flags&FlagNotify != 0 {
			l.wake()
		}
		return l.cur.index, nil
	}
	l.cur.append(code, payload)
	return l.cur.index, nil
}

// sealLocked queues the current segment for the consumer and opens its
// successor. Callers hold l.mu.
func (l *Log) sealLocked() {
	seg := l.cur
	seg.sealedAt = l.clock.Now()
	l.sealed = append(l.sealed, seg)
	l.stats.SegmentsSealed.Add(1)
	if len(l.sealed) > l.retain {
		drop := len(l.sealed) - l.retain
		l.sealed = l.sealed[drop:]
		l.stats.SegmentsDropped.Add(uint64(drop))
		monitoring.Logf("eventlog: dropped %d sealed segment(s) with no consumer draining", drop)
	}
	l.cur = newSegment(seg.index+1, l.segCap)
}

func (l *Log) wake() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// SealCurrent seals the open segment so a final drain can pick it up, and
// reports whether a segment was sealed. Sealing an empty segment is a
// no-op.
func (l *Log) SealCurrent() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur.records == 0 {
		return false
	}
	l.sealLocked()
	l.wake()
	return true
}

// TakeSealed removes and returns all sealed segments in index order.
func (l *Log) TakeSealed() []*Segment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.sealed
	l.sealed = nil
	return out
}

// Sealed returns the consumer wake-up channel. Signals are coalesced:
// receiving one means "drain now", not "exactly one segment is waiting".
func (l *Log) Sealed() <-chan struct{} { return l.notify }

// CurrentIndex returns the index of the open segment.
func (l *Log) CurrentIndex() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cur.index
}

// CurrentFill returns the byte length and record count of the open
// segment.
func (l *Log) CurrentFill() (bytes, records int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cur.buf), l.cur.records
}

// SegmentBytes returns the per-segment capacity the log was built with.
func (l *Log) SegmentBytes() int { return l.segCap }
