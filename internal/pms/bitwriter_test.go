package pms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitWriter_LSBFirstWithinByte(t *testing.T) {
	t.Parallel()
	w := NewBitWriter()
	w.WriteBits(0b101, 3)
	w.WriteBits(0b11, 2)
	w.Flush()
	// bit positions 0..4 carry 1,0,1,1,1 → 0x1D
	require.Equal(t, []byte{0x1D}, w.Bytes())
}

func TestBitWriter_CrossesByteBoundary(t *testing.T) {
	t.Parallel()
	w := NewBitWriter()
	w.WriteBits(0xABC, 12)
	w.WriteBits(0xF, 4)
	w.Flush()
	require.Equal(t, []byte{0xBC, 0xFA}, w.Bytes())
}

func TestBitWriter_SixteenBitWrite(t *testing.T) {
	t.Parallel()
	w := NewBitWriter()
	w.WriteBits(0x1234, 16)
	require.Equal(t, []byte{0x34, 0x12}, w.Bytes())
	assert.Equal(t, 2, w.Len())
}

func TestBitWriter_FlushPadsWithZeros(t *testing.T) {
	t.Parallel()
	w := NewBitWriter()
	w.WriteBits(1, 1)
	assert.Equal(t, 0, w.Len(), "partial byte must not flush on its own")
	w.Flush()
	require.Equal(t, []byte{0x01}, w.Bytes())

	// Flush with nothing pending is a no-op.
	w.Flush()
	require.Equal(t, []byte{0x01}, w.Bytes())
}

func TestBitWriter_MasksHighBits(t *testing.T) {
	t.Parallel()
	w := NewBitWriter()
	w.WriteBits(0xFFFF, 4)
	w.Flush()
	require.Equal(t, []byte{0x0F}, w.Bytes())
}

func TestBitWriter_Reset(t *testing.T) {
	t.Parallel()
	w := NewBitWriter()
	w.WriteBits(0xFF, 8)
	w.WriteBits(1, 1)
	w.Reset()
	assert.Equal(t, 0, w.Len())
	w.WriteBits(0x2, 2)
	w.Flush()
	require.Equal(t, []byte{0x02}, w.Bytes())
}

func TestBitWriter_CountContract(t *testing.T) {
	t.Parallel()
	w := NewBitWriter()
	assert.Panics(t, func() { w.WriteBits(0, 0) })
	assert.Panics(t, func() { w.WriteBits(0, 17) })
}

func TestBitWriter_OverflowPanics(t *testing.T) {
	t.Parallel()
	w := NewBitWriter()
	for i := 0; i < recordBufferSize; i++ {
		w.WriteBits(0xAA, 8)
	}
	assert.Equal(t, recordBufferSize, w.Len())
	assert.Panics(t, func() { w.WriteBits(0xAA, 8) })
}
