package relay

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/protocol"
	"github.com/teslashibe/go-coach/pkg/stt"
)

// TranscriptStream passes recognizer events through untouched and
// publishes {"transcript": text} for every event with text, before the
// event is returned.
type TranscriptStream struct {
	ctx    context.Context
	src    stt.Stream
	pub    Publisher
	logger *slog.Logger
}

// Transcripts wraps src. ctx bounds the publishes, not the stream itself.
func Transcripts(ctx context.Context, src stt.Stream, pub Publisher, logger *slog.Logger) *TranscriptStream {
	if logger == nil {
		logger = log.Component("relay.transcript")
	}
	return &TranscriptStream{ctx: ctx, src: src, pub: pub, logger: logger}
}

// Recv returns exactly what the wrapped stream returns.
func (s *TranscriptStream) Recv() (*stt.Event, error) {
	ev, err := s.src.Recv()
	if err != nil {
		return ev, err
	}
	if ev != nil && ev.Text != "" {
		text := ev.Text
		publish(s.ctx, s.pub, s.logger, func() (*protocol.Message, error) {
			return protocol.NewTranscript(text)
		})
	}
	return ev, nil
}

// Close closes the wrapped stream.
func (s *TranscriptStream) Close() error {
	return s.src.Close()
}

var _ stt.Stream = (*TranscriptStream)(nil)
