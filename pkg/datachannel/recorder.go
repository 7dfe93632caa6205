package datachannel

import (
	"context"
	"sync"

	"github.com/teslashibe/go-coach/pkg/protocol"
)

// Recorder is a Sink that keeps everything it is sent. Set Err to make
// Send fail, or Panic to make it panic.
type Recorder struct {
	// Err is returned from Send when non-nil. The message is not recorded.
	Err error

	// Panic, when non-nil, is passed to panic() from Send.
	Panic any

	mu       sync.Mutex
	messages [][]byte
	attempts int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send implements Sink.
func (r *Recorder) Send(ctx context.Context, data []byte) error {
	r.mu.Lock()
	r.attempts++
	err, p := r.Err, r.Panic
	if err == nil && p == nil {
		r.messages = append(r.messages, append([]byte(nil), data...))
	}
	r.mu.Unlock()

	if p != nil {
		panic(p)
	}
	return err
}

// Messages returns copies of the recorded payloads.
func (r *Recorder) Messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.messages))
	copy(out, r.messages)
	return out
}

// Decoded parses every recorded payload. Undecodable ones are skipped.
func (r *Recorder) Decoded() []*protocol.Message {
	var out []*protocol.Message
	for _, data := range r.Messages() {
		if msg, err := protocol.ParseMessage(data); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

// Kinds lists the kind of each recorded message in order.
func (r *Recorder) Kinds() []protocol.Kind {
	var kinds []protocol.Kind
	for _, msg := range r.Decoded() {
		kinds = append(kinds, msg.Kind)
	}
	return kinds
}

// Attempts counts Send calls, including failed ones.
func (r *Recorder) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Reset clears recorded state.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.attempts = 0
}

var _ Sink = (*Recorder)(nil)
