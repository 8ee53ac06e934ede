package websocket

import (
	"errors"
	"sync"
	"time"
)

var errConnClosed = errors.New("connection closed")

// mockConnection blocks reads until closed and records text frames.
type mockConnection struct {
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	written chan []byte
	frames  []int
}

func newMockConnection() *mockConnection {
	return &mockConnection{
		done:    make(chan struct{}),
		written: make(chan []byte, 64),
	}
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errConnClosed
	}
	m.frames = append(m.frames, messageType)
	if messageType == 1 {
		select {
		case m.written <- data:
		default:
		}
	}
	return nil
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	<-m.done
	return 0, nil, errConnClosed
}

func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *mockConnection) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConnection) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConnection) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConnection) SetReadLimit(int64)                {}
func (m *mockConnection) SetPongHandler(func(string) error) {}
func (m *mockConnection) RemoteAddr() string                { return "127.0.0.1:50000" }
