package pms

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitReader consumes bits least-significant-bit first, mirroring BitWriter.
// The shipped pipeline is encode-only, so decoding lives here as the
// round-trip oracle.
type bitReader struct {
	data []byte
	pos  int
}

func (r *bitReader) readBits(t *testing.T, count int) uint32 {
	t.Helper()
	var v uint32
	for i := 0; i < count; i++ {
		idx := r.pos >> 3
		require.Less(t, idx, len(r.data), "bit reader ran out of data")
		if r.data[idx]&(1<<(r.pos&7)) != 0 {
			v |= 1 << i
		}
		r.pos++
	}
	return v
}

func (r *bitReader) readVarint(t *testing.T) int32 {
	t.Helper()
	if r.readBits(t, 1) == 1 {
		return 0
	}
	neg := r.readBits(t, 1) == 1
	var mag int32
	if r.readBits(t, 1) == 1 {
		mag = 1
	} else if f := r.readBits(t, 5); f != varintEscape {
		mag = int32(f) + 2
	} else {
		mag = int32(r.readBits(t, 16)) + varintLargeBias
	}
	if neg {
		return -mag
	}
	return mag
}

// encodeOne returns the padded bytes for a single value along with the
// unpadded bit count.
func encodeOne(v int32) (data []byte, bits int) {
	w := NewBitWriter()
	writeVarint(w, v)
	bits = w.Len()*8 + w.n
	w.Flush()
	return w.Bytes(), bits
}

func TestWriteVarint_BitLengths(t *testing.T) {
	t.Parallel()
	cases := []struct {
		v    int32
		bits int
	}{
		{0, 1},
		{1, 3},
		{-1, 3},
		{2, 8},
		{-2, 8},
		{17, 8},
		{32, 8},
		{-32, 8},
		{33, 24},
		{-33, 24},
		{1000, 24},
		{65535, 24},
		{65568, 24},
		{-65568, 24},
	}
	for _, tc := range cases {
		_, bits := encodeOne(tc.v)
		assert.Equal(t, tc.bits, bits, "value %d", tc.v)
	}
}

func TestWriteVarint_RoundTripSmallRange(t *testing.T) {
	t.Parallel()
	for v := int32(-300); v <= 300; v++ {
		data, _ := encodeOne(v)
		r := &bitReader{data: data}
		require.Equal(t, v, r.readVarint(t), "value %d", v)
	}
}

func TestWriteVarint_RoundTripBracketEdges(t *testing.T) {
	t.Parallel()
	values := []int32{
		0, 1, -1, 2, -2, 31, -31, 32, -32, 33, -33, 34, -34,
		4095, -4096, 65534, -65534, 65535, -65535, 65567, -65567, 65568, -65568,
	}
	for _, v := range values {
		data, _ := encodeOne(v)
		r := &bitReader{data: data}
		require.Equal(t, v, r.readVarint(t), "value %d", v)
	}
}

func TestWriteVarint_RoundTripPackedSequence(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	values := make([]int32, 500)
	for i := range values {
		values[i] = int32(rng.Intn(2*65568+1) - 65568)
	}

	w := NewBitWriter()
	for _, v := range values {
		writeVarint(w, v)
	}
	w.Flush()

	r := &bitReader{data: w.Bytes()}
	for i, v := range values {
		require.Equal(t, v, r.readVarint(t), "sequence position %d", i)
	}
}

func TestWriteVarint_EscapePayload(t *testing.T) {
	t.Parallel()
	// 40 takes the widest form with payload 40 - 33 = 7.
	data, _ := encodeOne(40)
	r := &bitReader{data: data}
	require.Equal(t, uint32(0), r.readBits(t, 1), "zero bit")
	require.Equal(t, uint32(0), r.readBits(t, 1), "sign bit")
	require.Equal(t, uint32(0), r.readBits(t, 1), "unit bit")
	require.Equal(t, uint32(varintEscape), r.readBits(t, 5), "escape pattern")
	require.Equal(t, uint32(7), r.readBits(t, 16), "payload")
}
