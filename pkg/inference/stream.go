package inference

import (
	"io"
	"sync"
)

// SliceStream replays a fixed list of chunks, then returns Err (or io.EOF
// when Err is nil). It backs Mock and is handy anywhere a canned
// completion is needed.
type SliceStream struct {
	chunks []*StreamChunk
	err    error

	mu     sync.Mutex
	next   int
	closed bool
}

// NewSliceStream creates a stream that yields chunks and then err.
func NewSliceStream(chunks []*StreamChunk, err error) *SliceStream {
	return &SliceStream{chunks: chunks, err: err}
}

// TextStream yields one chunk per delta. The last one carries
// FinishReason "stop".
func TextStream(deltas ...string) *SliceStream {
	chunks := make([]*StreamChunk, len(deltas))
	for i, d := range deltas {
		chunks[i] = &StreamChunk{ID: "mock", Delta: d}
	}
	if n := len(chunks); n > 0 {
		chunks[n-1].FinishReason = "stop"
	}
	return NewSliceStream(chunks, nil)
}

// Recv implements Stream.
func (s *SliceStream) Recv() (*StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.next < len(s.chunks) {
		c := s.chunks[s.next]
		s.next++
		return c, nil
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

var _ Stream = (*SliceStream)(nil)
