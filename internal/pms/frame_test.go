package pms

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/airquality.report/internal/monitoring"
)

func TestFrameReader_ShortFrame(t *testing.T) {
	t.Parallel()
	fields := []uint16{12, 25, 40, 11, 24, 38, 5000, 4900, 7}
	stream := AppendFrameBytes(nil, VariantShort, fields)

	fr := NewFrameReader(bytes.NewReader(stream), nil)
	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, VariantShort, frame.Variant)
	for i, want := range fields {
		assert.Equal(t, want, frame.Fields[i], "field %d", i)
	}

	_, err = fr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReader_LongFrame(t *testing.T) {
	t.Parallel()
	fields := []uint16{12, 25, 40, 11, 24, 38, 9000, 2500, 600, 120, 40, 8, 0x9700}
	stream := AppendFrameBytes(nil, VariantLong, fields)

	fr := NewFrameReader(bytes.NewReader(stream), nil)
	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, VariantLong, frame.Variant)
	for i, want := range fields {
		assert.Equal(t, want, frame.Fields[i], "field %d", i)
	}
}

func TestFrameReader_ChecksumMatchesByteSum(t *testing.T) {
	t.Parallel()
	stream := AppendFrameBytes(nil, VariantShort, []uint16{301, 0xFFFF, 0x0100, 9})

	sum := uint16(checksumSeed)
	for _, b := range stream[2 : len(stream)-2] {
		sum += uint16(b)
	}

	fr := NewFrameReader(bytes.NewReader(stream), nil)
	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, sum, frame.Checksum)
}

func TestFrameReader_SkipsLeadingJunk(t *testing.T) {
	t.Parallel()
	stream := []byte{0x00, 0x13, 0x42, 0x99, 0x4D}
	stream = AppendFrameBytes(stream, VariantShort, []uint16{1, 2, 3})

	stats := &monitoring.PipelineStats{}
	fr := NewFrameReader(bytes.NewReader(stream), stats)
	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), frame.Fields[0])
	assert.Equal(t, uint64(1), stats.Resyncs.Load(), "0x42 0x99 is one failed candidate")
}

func TestFrameReader_RecoversAfterChecksumError(t *testing.T) {
	t.Parallel()
	bad := AppendFrameBytes(nil, VariantShort, []uint16{5, 5, 5})
	bad[len(bad)-1] ^= 0xFF
	stream := AppendFrameBytes(bad, VariantShort, []uint16{8, 8, 8})

	stats := &monitoring.PipelineStats{}
	fr := NewFrameReader(bytes.NewReader(stream), stats)

	_, err := fr.Next()
	require.ErrorIs(t, err, ErrChecksum)
	assert.Equal(t, uint64(1), stats.ChecksumErrors.Load())

	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(8), frame.Fields[0], "next frame parses cleanly")
}

func TestFrameReader_UnknownLengthResyncs(t *testing.T) {
	t.Parallel()
	stream := []byte{FrameMarker1, FrameMarker2, 0x00, 0x15}
	stream = AppendFrameBytes(stream, VariantShort, []uint16{6, 6, 6})

	stats := &monitoring.PipelineStats{}
	fr := NewFrameReader(bytes.NewReader(stream), stats)
	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(6), frame.Fields[0])
	assert.Equal(t, uint64(1), stats.Resyncs.Load())
}

func TestFrameReader_FailedCandidateByteNotRetested(t *testing.T) {
	t.Parallel()
	// A stray 0x42 immediately before a frame pairs with the frame's own
	// first marker byte, fails, and takes that byte with it: the scan does
	// not back up, so the first frame is lost and the second one parses.
	stream := []byte{FrameMarker1}
	stream = AppendFrameBytes(stream, VariantShort, []uint16{3, 3, 3, 3, 3, 3, 3, 3, 3})
	stream = AppendFrameBytes(stream, VariantShort, []uint16{9, 9, 9, 9, 9, 9, 9, 9, 9})

	stats := &monitoring.PipelineStats{}
	fr := NewFrameReader(bytes.NewReader(stream), stats)
	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(9), frame.Fields[0], "first frame is consumed by the resync")
	assert.Equal(t, uint64(1), stats.Resyncs.Load())

	_, err = fr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReader_TruncatedFrame(t *testing.T) {
	t.Parallel()
	stream := AppendFrameBytes(nil, VariantShort, []uint16{1, 2, 3})
	fr := NewFrameReader(bytes.NewReader(stream[:10]), nil)
	_, err := fr.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrameReader_CountsBytesScanned(t *testing.T) {
	t.Parallel()
	stream := []byte{0x01, 0x02, 0x03}
	stream = AppendFrameBytes(stream, VariantShort, nil)

	stats := &monitoring.PipelineStats{}
	fr := NewFrameReader(bytes.NewReader(stream), stats)
	_, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(stream)), stats.BytesScanned.Load())
	assert.Equal(t, uint64(1), stats.FramesShort.Load())
}

func TestVariant_Accessors(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 9, VariantShort.FieldCount())
	assert.Equal(t, 13, VariantLong.FieldCount())
	assert.Equal(t, "PMS3003", VariantShort.String())
	assert.Equal(t, "PMS5003", VariantLong.String())
	assert.Equal(t, "Variant(7)", Variant(7).String())
}
