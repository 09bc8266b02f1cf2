// Package pms implements the capture pipeline for Plantower PMS-family
// particulate-matter sensors: frame synchronization and validation over a
// serial byte stream, delta reduction of the measured fields, a compact
// variable-length bit encoding, and the append/rollover protocol against
// the event log.
//
// The pipeline runs as a single worker goroutine that owns all encoder
// state; see Worker. The wire protocol is documented in frame.go and the
// record encoding in encoder.go. Records are encode-only here: decoding
// archived records is a consumer concern.
package pms
