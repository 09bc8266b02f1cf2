package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the rate the PMS sensor family ships at.
const DefaultBaudRate = 9600

// Open opens the serial device at path with 8N1 framing. A baud of zero
// selects DefaultBaudRate; the sensors themselves only ever speak 9600,
// but adapters in front of them sometimes re-clock. readTimeout bounds
// each Read call; zero leaves reads blocking, which is what the capture
// worker wants (a timed-out read reports zero bytes and will eventually
// abort the stream).
func Open(path string, baud int, readTimeout time.Duration) (SerialPorter, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", path, err)
	}
	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("setting read timeout on %s: %w", path, err)
		}
	}
	return port, nil
}
