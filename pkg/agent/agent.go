// Package agent runs coaching sessions: it listens to the user through a
// room, answers each utterance with a model reply grounded in the latest
// workout metrics, and speaks the reply back.
package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/datachannel"
	"github.com/teslashibe/go-coach/pkg/inference"
	"github.com/teslashibe/go-coach/pkg/room"
	"github.com/teslashibe/go-coach/pkg/stt"
	"github.com/teslashibe/go-coach/pkg/tts"
	"github.com/teslashibe/go-coach/pkg/workout"
)

var (
	// ErrNoRecognizer is returned when Engines has no recognizer.
	ErrNoRecognizer = errors.New("agent: recognizer required")

	// ErrNoGenerator is returned when Engines has no generator.
	ErrNoGenerator = errors.New("agent: generator required")
)

// Engines are the speech and language backends a session drives.
type Engines struct {
	Recognizer stt.Recognizer
	Generator  inference.Generator

	// Synthesizer may be nil, in which case replies are only published
	// on the side channel.
	Synthesizer tts.Synthesizer
}

// Agent is the immutable template sessions are started from.
type Agent struct {
	cfg     Config
	engines Engines
	metrics workout.Source
	logger  *slog.Logger
}

// New builds an agent. metrics may be nil to run without workout data.
func New(cfg Config, engines Engines, metrics workout.Source) (*Agent, error) {
	if engines.Recognizer == nil {
		return nil, ErrNoRecognizer
	}
	if engines.Generator == nil {
		return nil, ErrNoGenerator
	}
	if cfg.PendingTurns <= 0 {
		cfg.PendingTurns = DefaultConfig().PendingTurns
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Component("agent")
	}
	return &Agent{cfg: cfg, engines: engines, metrics: metrics, logger: logger}, nil
}

// Instructions returns the persona sessions are seeded with.
func (a *Agent) Instructions() string {
	return a.cfg.Instructions
}

// Start opens recognition on the room's audio and runs the session until
// the recognizer ends, an engine fails, the room closes, or ctx is done.
// Side-channel messages go to sink. The session closes the room when it
// ends.
func (a *Agent) Start(ctx context.Context, id string, rm room.Room, sink datachannel.Sink) (*Session, error) {
	logger := a.logger.With("session", id)
	ctx, cancel := context.WithCancel(ctx)

	src, err := a.engines.Recognizer.Stream(ctx, rm.Audio())
	if err != nil {
		cancel()
		return nil, err
	}

	s := newSession(ctx, cancel, a, id, rm, sink, src, logger)
	s.start()
	logger.Info("session started")
	return s, nil
}
