package relay

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/datachannel"
	"github.com/teslashibe/go-coach/pkg/protocol"
	"github.com/teslashibe/go-coach/pkg/stt"
)

func newPublisher(rec *datachannel.Recorder) *datachannel.Publisher {
	return datachannel.NewPublisher(rec, log.Discard())
}

func drainEvents(t *testing.T, s stt.Stream) ([]*stt.Event, error) {
	t.Helper()
	var out []*stt.Event
	for {
		ev, err := s.Recv()
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, ev)
	}
}

func TestTranscriptPublishesText(t *testing.T) {
	ev := stt.NewFinal("ten more reps")
	before := *ev

	rec := datachannel.NewRecorder()
	s := Transcripts(context.Background(), stt.NewSliceStream([]*stt.Event{ev}, nil), newPublisher(rec), log.Discard())

	got, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv() error: %v", err)
	}
	if got != ev {
		t.Error("relay must return the same event object")
	}
	if got.Text != before.Text || got.Type != before.Type || got.SpeechFinal != before.SpeechFinal {
		t.Errorf("event mutated: %+v", got)
	}

	msgs := rec.Messages()
	if len(msgs) != 1 || string(msgs[0]) != `{"transcript":"ten more reps"}` {
		t.Errorf("published %q", msgs)
	}
}

func TestTranscriptSkipsEmptyText(t *testing.T) {
	events := []*stt.Event{
		{Type: stt.EventSpeechStarted},
		stt.NewInterim("ten"),
		{Type: stt.EventFinal, Text: ""},
		stt.NewFinal("ten more"),
		{Type: stt.EventUtteranceEnd},
	}

	rec := datachannel.NewRecorder()
	s := Transcripts(context.Background(), stt.NewSliceStream(events, nil), newPublisher(rec), log.Discard())

	got, err := drainEvents(t, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(events) {
		t.Fatalf("yielded %d events, want %d", len(got), len(events))
	}
	for i := range events {
		if got[i] != events[i] {
			t.Errorf("event %d differs from source", i)
		}
	}

	var texts []string
	for _, m := range rec.Decoded() {
		text, _ := m.Transcript()
		texts = append(texts, text)
	}
	if len(texts) != 2 || texts[0] != "ten" || texts[1] != "ten more" {
		t.Errorf("published transcripts = %v", texts)
	}
}

func TestTranscriptPublishFailureDoesNotBlock(t *testing.T) {
	tests := []struct {
		name string
		pub  Publisher
	}{
		{"channel closed", newPublisher(&datachannel.Recorder{Err: errors.New("channel closed")})},
		{"sink panics", newPublisher(&datachannel.Recorder{Panic: "boom"})},
		{"publisher panics", panicPublisher{}},
		{"no publisher", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []*stt.Event{stt.NewInterim("a"), stt.NewFinal("a b")}
			s := Transcripts(context.Background(), stt.NewSliceStream(events, nil), tt.pub, log.Discard())

			got, err := drainEvents(t, s)
			if err != nil {
				t.Fatalf("relay surfaced an error: %v", err)
			}
			if len(got) != 2 || got[0] != events[0] || got[1] != events[1] {
				t.Errorf("events not forwarded intact: %v", got)
			}
		})
	}
}

func TestTranscriptPropagatesError(t *testing.T) {
	boom := errors.New("recognizer disconnected")
	rec := datachannel.NewRecorder()
	s := Transcripts(context.Background(),
		stt.NewSliceStream([]*stt.Event{stt.NewFinal("one")}, boom),
		newPublisher(rec), log.Discard())

	if _, err := s.Recv(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Recv(); err != boom {
		t.Errorf("Recv() = %v, want the recognizer's error unchanged", err)
	}
	if len(rec.Messages()) != 1 {
		t.Errorf("published %d messages, want 1", len(rec.Messages()))
	}
}

func TestTranscriptClose(t *testing.T) {
	src := stt.NewSliceStream(nil, nil)
	s := Transcripts(context.Background(), src, nil, log.Discard())
	s.Close()
	if !src.Closed() {
		t.Error("Close() should close the wrapped stream")
	}
}

type panicPublisher struct{}

func (panicPublisher) Publish(context.Context, *protocol.Message) error {
	panic("publisher exploded")
}
