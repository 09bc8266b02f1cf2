package pms

import "fmt"

// recordBufferSize bounds one encoded record. The widest record the
// protocol can produce is 13 channels at 24 bits each plus 15 checksum
// bits, 41 bytes once padded, so 256 leaves room to spare while still
// catching runaway emission.
const recordBufferSize = 256

// BitWriter packs bits into bytes least-significant-bit first: the first
// bit written becomes bit 0 of the first output byte. Complete bytes are
// flushed into a fixed-capacity buffer as they fill; Flush pads a trailing
// partial byte with zero bits.
//
// Overflowing the buffer means the caller broke the record-size contract
// and panics.
type BitWriter struct {
	buf []byte
	acc uint32
	n   int // pending bits in acc, always < 8 between calls
}

// NewBitWriter returns an empty BitWriter.
func NewBitWriter() *BitWriter {
	return &BitWriter{buf: make([]byte, 0, recordBufferSize)}
}

// WriteBits appends the low count bits of v, least-significant bit first.
// count must be between 1 and 16.
func (w *BitWriter) WriteBits(v uint32, count int) {
	if count < 1 || count > 16 {
		panic(fmt.Sprintf("pms: WriteBits count %d outside 1..16", count))
	}
	v &= 1<<count - 1
	w.acc |= v << w.n
	w.n += count
	for w.n >= 8 {
		w.push(byte(w.acc))
		w.acc >>= 8
		w.n -= 8
	}
}

// Flush pads any pending bits with zeros up to the next byte boundary.
func (w *BitWriter) Flush() {
	if w.n > 0 {
		w.push(byte(w.acc))
		w.acc = 0
		w.n = 0
	}
}

// Bytes returns the flushed output. The slice aliases the writer's buffer
// and is only valid until the next Reset.
func (w *BitWriter) Bytes() []byte { return w.buf }

// Len returns the number of flushed bytes.
func (w *BitWriter) Len() int { return len(w.buf) }

// Reset discards all output and pending bits.
func (w *BitWriter) Reset() {
	w.buf = w.buf[:0]
	w.acc = 0
	w.n = 0
}

func (w *BitWriter) push(b byte) {
	if len(w.buf) >= recordBufferSize {
		panic("pms: bit writer buffer overflow")
	}
	w.buf = append(w.buf, b)
}
