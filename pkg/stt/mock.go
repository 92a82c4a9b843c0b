package stt

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
// Tests push events with Emit and inspect audio received via SentAudio.
type Mock struct {
	// StartFunc is called when Start is invoked. If nil, Start succeeds.
	StartFunc func(ctx context.Context) error

	// SendAudioFunc is called when SendAudio is invoked.
	// If nil, audio is recorded and the call succeeds.
	SendAudioFunc func(pcm16 []byte) error

	mu      sync.Mutex
	started bool
	closed  bool
	audio   [][]byte
	err     error
	events  chan Event
}

// NewMock creates a new mock STT provider.
func NewMock() *Mock {
	return &Mock{
		events: make(chan Event, 64),
	}
}

// Start marks the mock as started.
func (m *Mock) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	if m.StartFunc != nil {
		return m.StartFunc(ctx)
	}
	return nil
}

// SendAudio records the audio frame.
func (m *Mock) SendAudio(pcm16 []byte) error {
	if m.SendAudioFunc != nil {
		return m.SendAudioFunc(pcm16)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotConnected
	}
	buf := make([]byte, len(pcm16))
	copy(buf, pcm16)
	m.audio = append(m.audio, buf)
	return nil
}

// Events returns the event channel.
func (m *Mock) Events() <-chan Event {
	return m.events
}

// Err returns the error set with Fail.
func (m *Mock) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Close closes the event channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}

// Emit pushes a transcript event to consumers.
func (m *Mock) Emit(ev Event) {
	m.events <- ev
}

// Fail sets the terminal error and closes the event channel, simulating a
// dropped provider connection.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	m.err = err
	closed := m.closed
	m.closed = true
	m.mu.Unlock()
	if !closed {
		close(m.events)
	}
}

// SentAudio returns all audio frames received so far.
func (m *Mock) SentAudio() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.audio))
	copy(out, m.audio)
	return out
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
