package monitoring

import "sync/atomic"

// PipelineStats collects counters from the capture pipeline. The capture
// worker and the event log increment them; the status API reads snapshots.
// All fields are safe for concurrent use.
type PipelineStats struct {
	BytesScanned     atomic.Uint64
	FramesShort      atomic.Uint64
	FramesLong       atomic.Uint64
	ChecksumErrors   atomic.Uint64
	Resyncs          atomic.Uint64
	RecordsAppended  atomic.Uint64
	Rollovers        atomic.Uint64
	SegmentsSealed   atomic.Uint64
	SegmentsDropped  atomic.Uint64
	SegmentsArchived atomic.Uint64
	AppendErrors     atomic.Uint64
	ArchiveErrors    atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of PipelineStats shaped for JSON
// reporting.
type StatsSnapshot struct {
	BytesScanned     uint64 `json:"bytes_scanned"`
	FramesShort      uint64 `json:"frames_short"`
	FramesLong       uint64 `json:"frames_long"`
	ChecksumErrors   uint64 `json:"checksum_errors"`
	Resyncs          uint64 `json:"resyncs"`
	RecordsAppended  uint64 `json:"records_appended"`
	Rollovers        uint64 `json:"rollovers"`
	SegmentsSealed   uint64 `json:"segments_sealed"`
	SegmentsDropped  uint64 `json:"segments_dropped"`
	SegmentsArchived uint64 `json:"segments_archived"`
	AppendErrors     uint64 `json:"append_errors"`
	ArchiveErrors    uint64 `json:"archive_errors"`
}

// Snapshot copies the current counter values. Each counter is read
// individually, so a snapshot taken mid-frame may be off by one between
// related counters; totals are still monotonic.
func (s *PipelineStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		BytesScanned:     s.BytesScanned.Load(),
		FramesShort:      s.FramesShort.Load(),
		FramesLong:       s.FramesLong.Load(),
		ChecksumErrors:   s.ChecksumErrors.Load(),
		Resyncs:          s.Resyncs.Load(),
		RecordsAppended:  s.RecordsAppended.Load(),
		Rollovers:        s.Rollovers.Load(),
		SegmentsSealed:   s.SegmentsSealed.Load(),
		SegmentsDropped:  s.SegmentsDropped.Load(),
		SegmentsArchived: s.SegmentsArchived.Load(),
		AppendErrors:     s.AppendErrors.Load(),
		ArchiveErrors:    s.ArchiveErrors.Load(),
	}
}
