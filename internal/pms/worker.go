package pms

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/airquality.report/internal/eventlog"
	"github.com/banshee-data/airquality.report/internal/monitoring"
)

// Event codes tagging records in the event log. Archived records are
// interpreted by these values, so they are stable.
const (
	EventPMS3003 eventlog.EventCode = 1 // short-variant record
	EventPMS5003 eventlog.EventCode = 2 // long-variant record
)

// EventCode returns the log tag for records of this variant.
func (v Variant) EventCode() eventlog.EventCode {
	if v == VariantLong {
		return EventPMS5003
	}
	return EventPMS3003
}

// Appender is the slice of the event log the worker writes through. See
// eventlog.Log.Append for the index contract.
type Appender interface {
	Append(last uint32, code eventlog.EventCode, payload []byte, flags eventlog.Flags) (uint32, error)
}

// Worker owns one capture stream end to end: frames in from the serial
// port, delta-encoded records out to the event log. It is the only
// goroutine touching its baseline and segment index, so the pipeline
// carries no locks.
type Worker struct {
	reader    *FrameReader
	log       Appender
	indicator StatusIndicator
	stats     *monitoring.PipelineStats

	bw        *BitWriter
	baseline  Baseline
	lastIndex uint32
}

// NewWorker wires a capture worker. A nil indicator gets the logging
// default; a nil stats discards counters.
func NewWorker(reader *FrameReader, log Appender, indicator StatusIndicator, stats *monitoring.PipelineStats) *Worker {
	if indicator == nil {
		indicator = LogIndicator{}
	}
	if stats == nil {
		stats = &monitoring.PipelineStats{}
	}
	return &Worker{
		reader:    reader,
		log:       log,
		indicator: indicator,
		stats:     stats,
		bw:        NewBitWriter(),
	}
}

// Run processes frames until the stream ends or ctx is cancelled. The
// blocking read cannot be interrupted directly; closing the underlying
// port unblocks it, after which Run notices the cancelled context and
// returns nil. End of stream also returns nil. Anything else is an error.
func (wk *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := wk.reader.Next()
		if err != nil {
			switch {
			case errors.Is(err, ErrChecksum):
				wk.indicator.Error()
				continue
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				monitoring.Logf("pms: capture stream ended")
				return nil
			default:
				return fmt.Errorf("pms: stream read failed: %w", err)
			}
		}
		if err := wk.appendFrame(frame); err != nil {
			wk.indicator.Error()
			wk.stats.AppendErrors.Add(1)
			return fmt.Errorf("pms: appending record: %w", err)
		}
		wk.indicator.Success()
	}
}

// appendFrame encodes and appends one frame, retrying after rollover. The
// baseline advances only when the log stores the record under the index
// the encoding assumed; on rollover it resets, so the first record of a
// new segment carries absolute values. The retry loop is unbounded in
// principle and converges on the first retry in practice, since the
// re-encoded record meets an empty segment.
func (wk *Worker) appendFrame(f Frame) error {
	chans := deriveChannels(f)
	n := f.Variant.FieldCount()
	for {
		payload := encodeRecord(wk.bw, chans, n, &wk.baseline, f.Checksum)
		idx, err := wk.log.Append(wk.lastIndex, f.Variant.EventCode(), payload, eventlog.FlagNotify)
		if err != nil {
			return err
		}
		if idx == wk.lastIndex {
			wk.baseline.Commit(chans)
			wk.stats.RecordsAppended.Add(1)
			return nil
		}
		wk.lastIndex = idx
		wk.baseline.Reset()
		wk.stats.Rollovers.Add(1)
	}
}
