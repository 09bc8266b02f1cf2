package pms

// Delta values are written with a prefix code tuned for the common case of
// zero or near-zero deltas, least-significant bit first:
//
//	v == 0           1                      1 bit
//	|v| == 1         0 s 1                  3 bits
//	2 <= |v| <= 32   0 s 0 fffff            8 bits, f = |v| - 2
//	|v| >= 33        0 s 0 11111 f..f       24 bits, f = |v| - 33 in 16 bits
//
// s is the sign bit (1 = negative). The 5-bit field carries 0..30; the
// all-ones pattern escapes into the 16-bit form. A decoder must consume
// bits in exactly this order.

const (
	varintSmallMax  = 32   // largest magnitude in the 5-bit form
	varintEscape    = 0x1f // 5-bit escape into the 16-bit form
	varintLargeBias = 33   // subtracted from magnitudes in the 16-bit form
)

// writeVarint emits the code for v. Magnitudes beyond 65568 exceed the
// widest form and have their 16-bit payload masked; 16-bit frame fields
// keep in-contract deltas below that.
func writeVarint(w *BitWriter, v int32) {
	if v == 0 {
		w.WriteBits(1, 1)
		return
	}
	w.WriteBits(0, 1)
	if v < 0 {
		w.WriteBits(1, 1)
		v = -v
	} else {
		w.WriteBits(0, 1)
	}
	if v == 1 {
		w.WriteBits(1, 1)
		return
	}
	w.WriteBits(0, 1)
	if v <= varintSmallMax {
		w.WriteBits(uint32(v-2), 5)
		return
	}
	w.WriteBits(varintEscape, 5)
	w.WriteBits(uint32(v-varintLargeBias), 16)
}
