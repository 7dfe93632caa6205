package stt

import (
	"context"
	"io"
	"sync"
)

// SliceStream replays fixed events, then returns Err or io.EOF.
type SliceStream struct {
	events []*Event
	err    error

	mu     sync.Mutex
	next   int
	closed bool
}

// NewSliceStream creates a stream yielding events and then err.
func NewSliceStream(events []*Event, err error) *SliceStream {
	return &SliceStream{events: events, err: err}
}

// Recv implements Stream.
func (s *SliceStream) Recv() (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.next < len(s.events) {
		ev := s.events[s.next]
		s.next++
		return ev, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

// Close implements Stream.
func (s *SliceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Mock implements Recognizer for testing.
type Mock struct {
	// StreamFunc is called when Stream is invoked.
	StreamFunc func(ctx context.Context, audio <-chan []byte) (Stream, error)

	mu    sync.Mutex
	calls int
}

// NewMock returns a recognizer whose streams replay events then end.
func NewMock(events ...*Event) *Mock {
	return &Mock{
		StreamFunc: func(ctx context.Context, audio <-chan []byte) (Stream, error) {
			return NewSliceStream(events, nil), nil
		},
	}
}

// Stream calls StreamFunc and counts the call.
func (m *Mock) Stream(ctx context.Context, audio <-chan []byte) (Stream, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, audio)
	}
	return NewSliceStream(nil, nil), nil
}

// CallCount returns how many streams were started.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ChanStream is a Stream fed by the test through Send, for cases that
// need events to arrive over time.
type ChanStream struct {
	events chan *Event
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

// NewChanStream creates an open ChanStream.
func NewChanStream() *ChanStream {
	return &ChanStream{
		events: make(chan *Event, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Send queues an event.
func (s *ChanStream) Send(ev *Event) {
	s.events <- ev
}

// Fail makes the next Recv after queued events return err.
func (s *ChanStream) Fail(err error) {
	s.errs <- err
}

// End finishes the stream; Recv returns io.EOF after queued events.
func (s *ChanStream) End() {
	close(s.events)
}

// Recv implements Stream.
func (s *ChanStream) Recv() (*Event, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return nil, io.EOF
		}
		return ev, nil
	case err := <-s.errs:
		return nil, err
	case <-s.done:
		return nil, ErrStreamClosed
	}
}

// Close implements Stream.
func (s *ChanStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

var (
	_ Recognizer = (*Mock)(nil)
	_ Stream     = (*SliceStream)(nil)
	_ Stream     = (*ChanStream)(nil)
)
