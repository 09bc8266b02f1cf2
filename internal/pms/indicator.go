package pms

import "github.com/banshee-data/airquality.report/internal/monitoring"

// StatusIndicator receives fire-and-forget pipeline outcomes, the
// software stand-in for a capture board's status LEDs.
type StatusIndicator interface {
	// Success fires once per record committed to the log.
	Success()
	// Error fires on a checksum failure or a fatal append error.
	Error()
}

// LogIndicator reports indicator events through the monitoring logger.
// Success is silent so a healthy capture stays quiet at one frame per
// second.
type LogIndicator struct{}

// Success implements StatusIndicator.
func (LogIndicator) Success() {}

// Error implements StatusIndicator.
func (LogIndicator) Error() {
	monitoring.Logf("pms: capture error indicator")
}
