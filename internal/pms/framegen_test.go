package pms

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendFrameBytes_GoldenShortFrame(t *testing.T) {
	t.Parallel()
	got := AppendFrameBytes(nil, VariantShort, []uint16{1, 2, 3, 4, 5, 6, 7, 8, 9})
	want := []byte{
		0x42, 0x4D, 0x00, 0x14,
		0x00, 0x01, 0x00, 0x02, 0x00, 0x03,
		0x00, 0x04, 0x00, 0x05, 0x00, 0x06,
		0x00, 0x07, 0x00, 0x08, 0x00, 0x09,
		0x00, 0xD0,
	}
	require.Equal(t, want, got)
}

func TestAppendFrameBytes_FrameSizes(t *testing.T) {
	t.Parallel()
	assert.Len(t, AppendFrameBytes(nil, VariantShort, nil), 24)
	assert.Len(t, AppendFrameBytes(nil, VariantLong, nil), 32)
}

func TestAppendFrameBytes_AppendsToDst(t *testing.T) {
	t.Parallel()
	out := AppendFrameBytes([]byte{0xAA}, VariantShort, nil)
	require.Len(t, out, 25)
	assert.Equal(t, byte(0xAA), out[0])
	assert.Equal(t, byte(FrameMarker1), out[1])
}

func TestAppendFrameBytes_PadsAndTruncatesFields(t *testing.T) {
	t.Parallel()
	frame := parseOne(t, AppendFrameBytes(nil, VariantShort, []uint16{7}))
	assert.Equal(t, uint16(7), frame.Fields[0])
	for i := 1; i < 9; i++ {
		assert.Zero(t, frame.Fields[i], "field %d", i)
	}

	long := make([]uint16, 15)
	for i := range long {
		long[i] = uint16(i + 1)
	}
	stream := AppendFrameBytes(nil, VariantShort, long)
	require.Len(t, stream, 24, "fields beyond the variant's count are dropped")
	frame = parseOne(t, stream)
	assert.Equal(t, uint16(9), frame.Fields[8])
}

func TestAppendFrameBytes_RoundTripsRandomFields(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	for _, variant := range []Variant{VariantShort, VariantLong} {
		var stream []byte
		var want [][]uint16
		for i := 0; i < 25; i++ {
			fields := make([]uint16, variant.FieldCount())
			for j := range fields {
				fields[j] = uint16(rng.Intn(0x10000))
			}
			want = append(want, fields)
			stream = AppendFrameBytes(stream, variant, fields)
		}

		fr := NewFrameReader(bytes.NewReader(stream), nil)
		for i, fields := range want {
			frame, err := fr.Next()
			require.NoError(t, err, "%s frame %d", variant, i)
			require.Equal(t, variant, frame.Variant)
			for j, f := range fields {
				require.Equal(t, f, frame.Fields[j], "%s frame %d field %d", variant, i, j)
			}
		}
	}
}
