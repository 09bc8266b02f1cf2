// Package serialport abstracts the serial device a particulate sensor
// streams frames over: a minimal port interface, a factory for real
// hardware, and a mock for tests.
package serialport

import (
	"io"
)

// SerialPorter defines the minimal interface needed for a serial port
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
