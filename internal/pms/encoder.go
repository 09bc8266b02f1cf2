package pms

// checksumBits is how much of the device checksum each record carries.
// Combined with byte padding this puts at least one full checksum byte in
// every record no matter how the channel codes fall.
const checksumBits = 15

// deriveChannels reduces a frame's raw fields to the values that get
// delta-encoded, in the order a decoder must replay. The concentration
// triples are differenced against the next-smaller size class (PM10 covers
// PM2.5 covers PM1.0 on a well-behaved sensor) and each cumulative count
// bucket against its successor, which pulls typical values toward zero
// before the bit code sees them. The last count bucket and the reserved
// field pass through raw.
func deriveChannels(f Frame) [MaxFields]int32 {
	var ch [MaxFields]int32
	fld := func(i int) int32 { return int32(f.Fields[i]) }

	ch[0] = fld(0)          // pm1.0 standard, absolute
	ch[1] = fld(1) - fld(0) // pm2.5 - pm1.0
	ch[2] = fld(2) - fld(1) // pm10 - pm2.5
	ch[3] = fld(3)          // pm1.0 atmospheric, absolute
	ch[4] = fld(4) - fld(3)
	ch[5] = fld(5) - fld(4)

	switch f.Variant {
	case VariantShort:
		ch[6] = fld(6) - fld(7)
		ch[7] = fld(7)
		ch[8] = fld(8) // reserved
	case VariantLong:
		for i := 6; i < 11; i++ {
			ch[i] = fld(i) - fld(i+1)
		}
		ch[11] = fld(11)
		ch[12] = fld(12) // reserved
	}
	return ch
}

// Baseline holds the previously committed channel values for one capture
// stream. A fresh or Reset baseline is all zero, so the first record of a
// segment encodes absolute values and decodes without history.
type Baseline struct {
	vals [MaxFields]int32
}

// Reset zeroes every channel. Called whenever the log rolls to a new
// segment.
func (b *Baseline) Reset() {
	b.vals = [MaxFields]int32{}
}

// Commit stores chans as the reference for the next record. Call only
// after the log has accepted the record that was encoded against the
// previous state.
func (b *Baseline) Commit(chans [MaxFields]int32) {
	b.vals = chans
}

// encodeRecord writes one record into w: the delta code for each of the
// first n channels against the baseline, the low 15 bits of the frame
// checksum, then padding to a byte boundary. The baseline is read, never
// written. The returned slice aliases w.
func encodeRecord(w *BitWriter, chans [MaxFields]int32, n int, base *Baseline, checksum uint16) []byte {
	w.Reset()
	for i := 0; i < n; i++ {
		writeVarint(w, chans[i]-base.vals[i])
	}
	w.WriteBits(uint32(checksum), checksumBits)
	w.Flush()
	return w.Bytes()
}
