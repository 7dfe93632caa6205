// Package datachannel publishes side-channel messages for a session.
//
// Publishing is best effort. A failure is returned to the caller, who logs
// it and moves on; nothing here ever interrupts the audio or generation
// streams that produced the message.
package datachannel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/protocol"
)

var (
	// ErrPanic is returned when a sink panics during Send.
	ErrPanic = errors.New("datachannel: sink panicked")

	// ErrNoSink is returned when a Publisher has nothing to send to.
	ErrNoSink = errors.New("datachannel: no sink")
)

// Sink delivers encoded messages to a transport.
type Sink interface {
	Send(ctx context.Context, data []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, data []byte) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, data []byte) error {
	return f(ctx, data)
}

// PublishError reports which message failed to go out.
type PublishError struct {
	Kind protocol.Kind
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("datachannel: publish %s: %v", e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Stats counts publish outcomes.
type Stats struct {
	Published uint64
	Failed    uint64
}

// Publisher encodes protocol messages and hands them to a sink.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewPublisher creates a publisher writing to sink.
func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = log.Component("datachannel")
	}
	return &Publisher{sink: sink, logger: logger}
}

// Publish encodes msg and sends it. It recovers from sink panics and
// reports them as ErrPanic, so the caller only ever sees an error value.
func (p *Publisher) Publish(ctx context.Context, msg *protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		if err != nil {
			p.failed.Add(1)
		} else {
			p.published.Add(1)
		}
	}()

	if p.sink == nil {
		return ErrNoSink
	}

	data, err := msg.Bytes()
	if err != nil {
		return &PublishError{Kind: msg.Kind, Err: err}
	}

	if err := p.sink.Send(ctx, data); err != nil {
		return &PublishError{Kind: msg.Kind, Err: err}
	}

	p.logger.Debug("published", "kind", msg.Kind, "bytes", len(data))
	return nil
}

// Stats returns a snapshot of the counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
	}
}
