package relay

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/chat"
	"github.com/teslashibe/go-coach/pkg/inference"
	"github.com/teslashibe/go-coach/pkg/protocol"
	"github.com/teslashibe/go-coach/pkg/workout"
)

// MetricsPrefix starts the system entry that carries a snapshot.
const MetricsPrefix = "METRICS: "

// Generation runs one language-model turn with fresh workout metrics.
type Generation struct {
	gen     inference.Generator
	metrics workout.Source
	pub     Publisher
	logger  *slog.Logger
}

// NewGeneration creates a generation relay. metrics may be nil, in which
// case turns run on the history alone.
func NewGeneration(gen inference.Generator, metrics workout.Source, pub Publisher, logger *slog.Logger) *Generation {
	if logger == nil {
		logger = log.Component("relay.generation")
	}
	return &Generation{gen: gen, metrics: metrics, pub: pub, logger: logger}
}

// Stream fetches metrics, appends them to history when present, and opens
// a completion over the resulting history. The fetch finishes before
// generation starts. req supplies model settings; its Messages are
// replaced by the history.
//
// Errors from the generator are returned unchanged.
func (g *Generation) Stream(ctx context.Context, history *chat.Context, req inference.ChatRequest) (*GenerationStream, error) {
	if g.metrics != nil {
		if snap, ok := g.metrics.Fetch(ctx); ok {
			history.Append(inference.NewSystemMessage(MetricsPrefix + snap.String()))
			publish(ctx, g.pub, g.logger, func() (*protocol.Message, error) {
				return protocol.NewDebugMetrics(snap.Raw())
			})
		}
	}

	req.Messages = history.Messages()
	src, err := g.gen.Stream(ctx, &req)
	if err != nil {
		return nil, err
	}

	return &GenerationStream{ctx: ctx, src: src, pub: g.pub, logger: g.logger}, nil
}

// GenerationStream publishes {"coach_chunk": fragment} for each fragment
// before returning it.
type GenerationStream struct {
	ctx    context.Context
	src    inference.Stream
	pub    Publisher
	logger *slog.Logger
}

// Recv returns exactly what the wrapped stream returns.
func (s *GenerationStream) Recv() (*inference.StreamChunk, error) {
	chunk, err := s.src.Recv()
	if err != nil {
		return chunk, err
	}
	if chunk != nil {
		publish(s.ctx, s.pub, s.logger, func() (*protocol.Message, error) {
			return protocol.NewCoachChunk(chunk)
		})
	}
	return chunk, nil
}

// Close closes the wrapped stream.
func (s *GenerationStream) Close() error {
	return s.src.Close()
}

var _ inference.Stream = (*GenerationStream)(nil)
