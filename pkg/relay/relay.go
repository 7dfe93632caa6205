// Package relay wraps the recognizer and language-model streams of a
// coaching session.
//
// A relay is a decorator over a pull stream: it returns the same items,
// in the same order, with the same end-of-stream and error values as the
// stream it wraps. Its only addition is a side effect per item, publishing
// a copy on the session's side channel. Publish failures are logged and
// dropped; they never reach the consumer of the stream.
package relay

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-coach/pkg/protocol"
)

// Publisher delivers a side-channel message. The returned error is
// informational; relays log it and carry on. Implementations are not
// required to recover their own panics: datachannel.Publisher does, but
// any other Publisher is guarded by the relay as well.
type Publisher interface {
	Publish(ctx context.Context, msg *protocol.Message) error
}

// publish builds and sends a message, logging any failure.
func publish(ctx context.Context, pub Publisher, logger *slog.Logger, build func() (*protocol.Message, error)) {
	if pub == nil {
		return
	}
	// a panicking Publisher must not take the stream down with it
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("side-channel publish panicked", "panic", r)
		}
	}()

	msg, err := build()
	if err != nil {
		logger.Warn("side-channel encode failed", "error", err)
		return
	}
	if err := pub.Publish(ctx, msg); err != nil {
		logger.Debug("side-channel publish failed", "kind", msg.Kind, "error", err)
	}
}
