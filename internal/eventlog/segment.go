package eventlog

import (
	"encoding/binary"
	"fmt"
	"time"
)

// EventCode tags each record with the layout of its payload. Code 0 is
// reserved; producers define their own nonzero codes and must keep them
// stable, since archived records are interpreted by code alone.
type EventCode uint8

// Record is one framed entry in a segment.
type Record struct {
	Code    EventCode
	Payload []byte
}

// Segment is one fixed-capacity slab of the log. Records are framed as a
// single event-code byte, a uvarint payload length, and the payload bytes.
// Once sealed a segment never changes.
type Segment struct {
	index    uint32
	buf      []byte
	records  int
	sealedAt time.Time
}

func newSegment(index uint32, capacity int) *Segment {
	return &Segment{index: index, buf: make([]byte, 0, capacity)}
}

// Index returns the segment's position in the log's monotonic sequence.
func (s *Segment) Index() uint32 { return s.index }

// Len returns the number of framed bytes currently in the segment.
func (s *Segment) Len() int { return len(s.buf) }

// RecordCount returns the number of records appended to the segment.
func (s *Segment) RecordCount() int { return s.records }

// Bytes returns the framed segment contents. The caller must not modify
// the returned slice.
func (s *Segment) Bytes() []byte { return s.buf }

// SealedAt returns the seal timestamp, or the zero time while the segment
// is still open.
func (s *Segment) SealedAt() time.Time { return s.sealedAt }

// recordSize returns the framed size of a payload: code byte, uvarint
// length, payload.
func recordSize(payload []byte) int {
	return 1 + uvarintLen(uint64(len(payload))) + len(payload)
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func (s *Segment) fits(payload []byte) bool {
	return len(s.buf)+recordSize(payload) <= cap(s.buf)
}

func (s *Segment) append(code EventCode, payload []byte) {
	s.buf = append(s.buf, byte(code))
	s.buf = binary.AppendUvarint(s.buf, uint64(len(payload)))
	s.buf = append(s.buf, payload...)
	s.records++
}

// Records re-parses the framed bytes into individual records. Payload
// slices alias the segment buffer; callers that outlive the segment must
// copy them.
func (s *Segment) Records() ([]Record, error) {
	out := make([]Record, 0, s.records)
	buf := s.buf
	for len(buf) > 0 {
		code := EventCode(buf[0])
		buf = buf[1:]
		n, sz := binary.Uvarint(buf)
		if sz <= 0 {
			return nil, fmt.Errorf("segment %d: malformed record length at offset %d", s.index, len(s.buf)-len(buf))
		}
		buf = buf[sz:]
		if uint64(len(buf)) < n {
			return nil, fmt.Errorf("segment %d: record payload truncated (want %d bytes, have %d)", s.index, n, len(buf))
		}
		out = append(out, Record{Code: code, Payload: buf[:n:n]})
		buf = buf[n:]
	}
	return out, nil
}
