package monitoring

import (
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = format
	})
	Logf("capture started on %s", "/dev/ttyUSB0")
	if !strings.Contains(got, "capture started") {
		t.Errorf("custom logger not invoked, got %q", got)
	}

	// nil installs a no-op, not a nil function
	called := false
	SetLogger(nil)
	Logf("should be dropped")
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("should be seen")
	if !called {
		t.Error("logger replacement after nil did not take effect")
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}
