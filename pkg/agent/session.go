package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/teslashibe/go-coach/pkg/chat"
	"github.com/teslashibe/go-coach/pkg/datachannel"
	"github.com/teslashibe/go-coach/pkg/inference"
	"github.com/teslashibe/go-coach/pkg/relay"
	"github.com/teslashibe/go-coach/pkg/room"
	"github.com/teslashibe/go-coach/pkg/stt"
	"github.com/teslashibe/go-coach/pkg/workout"
)

// Session is one live coaching conversation.
type Session struct {
	id     string
	agent  *Agent
	room   room.Room
	logger *slog.Logger

	history     *chat.Context
	publisher   *datachannel.Publisher
	transcripts *relay.TranscriptStream
	generation  *relay.Generation
	latency     *LatencyCollector

	turns chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	errOnce sync.Once
	err     error
}

func newSession(ctx context.Context, cancel context.CancelFunc, a *Agent, id string, rm room.Room, sink datachannel.Sink, src stt.Stream, logger *slog.Logger) *Session {
	s := &Session{
		id:        id,
		agent:     a,
		room:      rm,
		logger:    logger,
		history:   chat.NewContext(a.cfg.Instructions),
		publisher: datachannel.NewPublisher(sink, logger.With("component", "datachannel")),
		latency:   NewLatencyCollector(),
		turns:     make(chan string, a.cfg.PendingTurns),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	relayLogger := logger.With("component", "relay")
	s.transcripts = relay.Transcripts(ctx, src, s.publisher, relayLogger)

	var metrics workout.Source
	if a.metrics != nil {
		metrics = &timedSource{src: a.metrics, latency: s.latency}
	}
	s.generation = relay.NewGeneration(a.engines.Generator, metrics, s.publisher, relayLogger)

	s.latency.OnTurn(func(m TurnMetrics) {
		s.logger.Info("turn complete", m.LogAttrs()...)
	})
	return s
}

func (s *Session) start() {
	s.wg.Add(3)
	go s.watch()
	go s.listen()
	go s.converse()

	go func() {
		s.wg.Wait()
		if err := s.room.Close(); err != nil {
			s.logger.Debug("room close", "error", err)
		}
		close(s.done)
		s.logger.Info("session ended", "error", s.err)
	}()
}

// watch ends the session when the room goes away and unblocks the
// recognizer once the session is over.
func (s *Session) watch() {
	defer s.wg.Done()
	select {
	case <-s.room.Done():
		s.logger.Info("room closed")
	case <-s.ctx.Done():
	}
	s.cancel()
	s.transcripts.Close()
}

// listen collects final segments into utterances and queues them.
func (s *Session) listen() {
	defer s.wg.Done()
	defer close(s.turns)

	var pending []string
	flush := func() bool {
		text := strings.TrimSpace(strings.Join(pending, " "))
		pending = pending[:0]
		if text == "" {
			return true
		}
		select {
		case s.turns <- text:
			return true
		case <-s.ctx.Done():
			return false
		}
	}

	for {
		ev, err := s.transcripts.Recv()
		if errors.Is(err, io.EOF) {
			flush()
			return
		}
		if err != nil {
			if s.ctx.Err() == nil {
				s.fail(err)
			}
			return
		}

		switch ev.Type {
		case stt.EventFinal:
			if text := strings.TrimSpace(ev.Text); text != "" {
				pending = append(pending, text)
			}
			if ev.SpeechFinal && !flush() {
				return
			}
		case stt.EventUtteranceEnd:
			if !flush() {
				return
			}
		}
	}
}

// converse runs turns one at a time, in arrival order.
func (s *Session) converse() {
	defer s.wg.Done()
	// a finished recognizer ends the session once queued turns are done
	defer s.cancel()

	for {
		select {
		case <-s.ctx.Done():
			return
		case text, ok := <-s.turns:
			if !ok {
				return
			}
			if err := s.turn(s.ctx, text); err != nil {
				if s.ctx.Err() == nil {
					s.fail(err)
				}
				return
			}
		}
	}
}

// turn answers one utterance. Generator errors are returned unchanged.
func (s *Session) turn(ctx context.Context, text string) error {
	s.latency.MarkTurnStart()
	s.logger.Debug("user turn", "text", text)
	s.history.Append(inference.NewUserMessage(text))

	stream, err := s.generation.Stream(ctx, s.history, s.request())
	if err != nil {
		return err
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if chunk == nil {
			continue
		}
		s.latency.MarkFragment()
		reply.WriteString(chunk.Delta)
	}

	answer := strings.TrimSpace(reply.String())
	s.latency.MarkGenerated(len(answer))
	if answer != "" {
		s.history.Append(inference.NewAssistantMessage(answer))
		s.speak(ctx, answer)
	}

	s.latency.MarkDone()
	return nil
}

// speak synthesizes text into the room. Failures are logged; the
// conversation carries on without audio for this turn.
func (s *Session) speak(ctx context.Context, text string) {
	synth := s.agent.engines.Synthesizer
	if synth == nil {
		return
	}

	audio, err := synth.Stream(ctx, text)
	if err != nil {
		s.logger.Warn("synthesis failed", "error", err)
		return
	}
	defer audio.Close()
	s.latency.MarkFirstAudio()

	if err := s.room.PlayAudio(ctx, audio); err != nil && ctx.Err() == nil {
		s.logger.Warn("playback failed", "error", err)
	}
}

func (s *Session) request() inference.ChatRequest {
	return inference.ChatRequest{
		Model:       s.agent.cfg.LLMModel,
		MaxTokens:   s.agent.cfg.MaxTokens,
		Temperature: s.agent.cfg.Temperature,
	}
}

func (s *Session) fail(err error) {
	s.errOnce.Do(func() {
		s.err = err
		s.logger.Error("session failed", "error", err)
	})
	s.cancel()
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Done is closed when the session has fully stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session ends. It returns the recognizer or
// generator error that ended it, or nil when it was stopped, the room
// closed, or recognition finished.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Stop ends the session and waits for it.
func (s *Session) Stop() error {
	s.cancel()
	return s.Wait()
}

// History returns the conversation so far.
func (s *Session) History() []inference.Message {
	return s.history.Messages()
}

// Turns returns timing for completed turns.
func (s *Session) Turns() []TurnMetrics {
	return s.latency.History()
}

// PublishStats returns side-channel counters.
func (s *Session) PublishStats() datachannel.Stats {
	return s.publisher.Stats()
}

// timedSource records fetch latency for the current turn.
type timedSource struct {
	src     workout.Source
	latency *LatencyCollector
}

func (t *timedSource) Fetch(ctx context.Context) (workout.Snapshot, bool) {
	snap, ok := t.src.Fetch(ctx)
	t.latency.MarkFetched(ok)
	return snap, ok
}
