package pms

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/airquality.report/internal/monitoring"
)

/*
Plantower PMS Frame Layout

The sensor emits fixed-layout binary frames continuously in active mode.
Both supported variants share the same shell and differ only in field
count:

	offset  size  content
	0       1     marker 1, 0x42 'B'
	1       1     marker 2, 0x4D 'M'
	2       2     payload length, big-endian: 0x14 (PMS3003) or 0x1c (PMS5003)
	4       2n    data fields, big-endian uint16 (n = 9 or 13)
	4+2n    2     checksum trailer, big-endian

The length field counts every byte after itself including the trailer:
0x14 = 9 fields + trailer, 0x1c = 13 fields + trailer.

Field order: PM1.0/PM2.5/PM10 standard-particle concentrations, the same
three under atmospheric conditions, cumulative particle counts per size
bucket (two buckets on PMS3003, six on PMS5003), one reserved field.

The checksum is a 16-bit byte sum seeded with the two marker values
(0x42 + 0x4D = 143) and covering the length and field bytes. The stream
carries no other framing, so recovery from corruption is a byte-at-a-time
scan for the marker pair.
*/

// Wire constants for the frame shell.
const (
	FrameMarker1 = 0x42 // 'B'
	FrameMarker2 = 0x4D // 'M'

	lengthShort = 0x14 // PMS3003 payload length
	lengthLong  = 0x1c // PMS5003 payload length

	checksumSeed = FrameMarker1 + FrameMarker2

	// MaxFields is the field count of the long variant; it sizes the
	// per-frame arrays shared by both variants.
	MaxFields = 13
)

// Variant identifies which frame layout a sensor speaks.
type Variant uint8

const (
	// VariantShort is the PMS3003 layout: 9 fields, 20-byte payload.
	VariantShort Variant = iota + 1
	// VariantLong is the PMS5003 layout: 13 fields, 28-byte payload.
	VariantLong
)

// FieldCount returns the number of 16-bit data fields in the variant.
func (v Variant) FieldCount() int {
	if v == VariantLong {
		return 13
	}
	return 9
}

func (v Variant) String() string {
	switch v {
	case VariantShort:
		return "PMS3003"
	case VariantLong:
		return "PMS5003"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

func variantForLength(length uint16) (Variant, bool) {
	switch length {
	case lengthShort:
		return VariantShort, true
	case lengthLong:
		return VariantLong, true
	}
	return 0, false
}

// Frame is one validated sensor message.
type Frame struct {
	Variant  Variant
	Fields   [MaxFields]uint16 // first Variant.FieldCount() entries are set
	Checksum uint16            // trailer value, verified against the byte sum
}

// ErrChecksum reports a frame whose trailer does not match the running
// byte sum. The reader has already discarded the frame when it returns
// this; callers signal the condition and call Next again.
var ErrChecksum = errors.New("pms: frame checksum mismatch")

// FrameReader scans a byte stream for valid frames. It is not safe for
// concurrent use; the capture worker is its only caller.
type FrameReader struct {
	r     *bufio.Reader
	stats *monitoring.PipelineStats
}

// NewFrameReader wraps a byte source, typically a serial port. stats may
// be nil to discard counters.
func NewFrameReader(r io.Reader, stats *monitoring.PipelineStats) *FrameReader {
	if stats == nil {
		stats = &monitoring.PipelineStats{}
	}
	return &FrameReader{r: bufio.NewReader(r), stats: stats}
}

// Next blocks until it has assembled the next checksum-valid frame.
// Corrupt frames surface as ErrChecksum. Errors from the byte source are
// wrapped and returned; io.EOF appears when the stream ends between
// frames, io.ErrUnexpectedEOF when it ends inside one.
func (fr *FrameReader) Next() (Frame, error) {
	for {
		b, err := fr.readByte()
		if err != nil {
			return Frame{}, fmt.Errorf("pms: reading stream: %w", err)
		}
		if b != FrameMarker1 {
			continue
		}
		b, err = fr.readByte()
		if err != nil {
			return Frame{}, fmt.Errorf("pms: reading stream: %w", err)
		}
		if b != FrameMarker2 {
			// The failed candidate is discarded outright and the scan
			// restarts on the following byte; a marker-1 value sitting in
			// the marker-2 position is not re-tested.
			fr.stats.Resyncs.Add(1)
			continue
		}

		var lenBuf [2]byte
		if err := fr.readFull(lenBuf[:]); err != nil {
			return Frame{}, err
		}
		variant, ok := variantForLength(binary.BigEndian.Uint16(lenBuf[:]))
		if !ok {
			fr.stats.Resyncs.Add(1)
			continue
		}

		sum := uint16(checksumSeed) + uint16(lenBuf[0]) + uint16(lenBuf[1])
		n := variant.FieldCount()
		var body [2*MaxFields + 2]byte
		if err := fr.readFull(body[:2*n+2]); err != nil {
			return Frame{}, err
		}
		for _, fb := range body[:2*n] {
			sum += uint16(fb)
		}
		expected := binary.BigEndian.Uint16(body[2*n : 2*n+2])
		if sum != expected {
			fr.stats.ChecksumErrors.Add(1)
			return Frame{}, ErrChecksum
		}

		frame := Frame{Variant: variant, Checksum: expected}
		for i := 0; i < n; i++ {
			frame.Fields[i] = binary.BigEndian.Uint16(body[2*i : 2*i+2])
		}
		if variant == VariantLong {
			fr.stats.FramesLong.Add(1)
		} else {
			fr.stats.FramesShort.Add(1)
		}
		return frame, nil
	}
}

func (fr *FrameReader) readByte() (byte, error) {
	b, err := fr.r.ReadByte()
	if err != nil {
		return 0, err
	}
	fr.stats.BytesScanned.Add(1)
	return b, nil
}

func (fr *FrameReader) readFull(p []byte) error {
	if _, err := io.ReadFull(fr.r, p); err != nil {
		return fmt.Errorf("pms: reading frame body: %w", err)
	}
	fr.stats.BytesScanned.Add(uint64(len(p)))
	return nil
}
