package serialport

import (
	"io"
	"sync"
)

// MockSerialPort implements SerialPorter for testing
type MockSerialPort struct {
	mu          sync.Mutex
	ReadData    []byte
	WrittenData []byte
	ReadError   error
	WriteError  error
	CloseError  error
	Closed      bool

	// BlockOnEmpty makes Read block once ReadData is exhausted until the
	// port is closed, mimicking an idle serial line instead of returning
	// io.EOF.
	BlockOnEmpty bool

	closed chan struct{}
}

// doneCh lazily creates the close-notification channel so that zero-value
// literals work. Callers hold m.mu.
func (m *MockSerialPort) doneCh() chan struct{} {
	if m.closed == nil {
		m.closed = make(chan struct{})
	}
	return m.closed
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.ReadError != nil {
		err := m.ReadError
		m.mu.Unlock()
		return 0, err
	}
	if m.Closed {
		m.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if len(m.ReadData) == 0 {
		if !m.BlockOnEmpty {
			m.mu.Unlock()
			return 0, io.EOF
		}
		ch := m.doneCh()
		m.mu.Unlock()
		<-ch
		return 0, io.ErrClosedPipe
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	m.mu.Unlock()
	return n, nil
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.WrittenData = append(m.WrittenData, p...)
	return len(p), nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Closed {
		m.Closed = true
		close(m.doneCh())
	}
	return m.CloseError
}
