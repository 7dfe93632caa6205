package tts

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

// Mock implements Synthesizer for testing.
type Mock struct {
	// StreamFunc is called when Stream is invoked.
	// If nil, returns the text bytes as "audio".
	StreamFunc func(ctx context.Context, text string) (io.ReadCloser, error)

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// NewMock creates a new mock synthesizer.
func NewMock() *Mock {
	return &Mock{}
}

// Stream calls StreamFunc and records the call.
func (m *Mock) Stream(ctx context.Context, text string) (io.ReadCloser, error) {
	m.record("Stream", text)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, text)
	}
	if text == "" {
		return nil, ErrEmptyText
	}
	return io.NopCloser(bytes.NewReader([]byte(text))), nil
}

func (m *Mock) record(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Time: time.Now()})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// Texts returns the text of every Stream call in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.Text)
	}
	return out
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ Synthesizer = (*Mock)(nil)
