package pms

import "encoding/binary"

// AppendFrameBytes appends one wire-format frame carrying the given
// fields to dst and returns the extended slice. The checksum trailer is
// computed; missing fields read as zero and extras are ignored. This
// exists for fixtures, tests, and the gen-pmsstream tool; the capture
// pipeline itself never writes frames.
func AppendFrameBytes(dst []byte, v Variant, fields []uint16) []byte {
	n := v.FieldCount()
	length := uint16(2*n + 2)
	dst = append(dst, FrameMarker1, FrameMarker2)
	dst = binary.BigEndian.AppendUint16(dst, length)
	sum := uint16(checksumSeed) + (length >> 8) + (length & 0xff)
	for i := 0; i < n; i++ {
		var f uint16
		if i < len(fields) {
			f = fields[i]
		}
		dst = binary.BigEndian.AppendUint16(dst, f)
		sum += (f >> 8) + (f & 0xff)
	}
	return binary.BigEndian.AppendUint16(dst, sum)
}
