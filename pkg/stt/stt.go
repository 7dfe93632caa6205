// Package stt turns a live audio feed into a stream of recognition events.
package stt

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// EventType classifies a recognition event.
type EventType string

const (
	EventInterim       EventType = "interim"        // hypothesis that may still change
	EventFinal         EventType = "final"          // settled text for a segment
	EventSpeechStarted EventType = "speech_started" // voice activity began
	EventUtteranceEnd  EventType = "utterance_end"  // silence after speech
)

var (
	// ErrNoAPIKey is returned when the recognizer needs credentials.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("stt: stream closed")
)

// Event is one recognition result.
type Event struct {
	Type EventType `json:"type"`

	// Text is the recognized text. It may be empty.
	Text string `json:"text,omitempty"`

	Confidence float64 `json:"confidence,omitempty"`

	// SpeechFinal marks the last final segment of an utterance.
	SpeechFinal bool `json:"speech_final,omitempty"`

	Start    time.Duration `json:"start,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`

	// Raw is the provider message the event came from, when there is one.
	Raw json.RawMessage `json:"-"`
}

// IsFinal reports whether the event carries settled text.
func (e *Event) IsFinal() bool {
	return e.Type == EventFinal
}

// Stream is a pull-based recognition stream.
type Stream interface {
	// Recv returns the next event, or io.EOF once recognition has ended.
	Recv() (*Event, error)

	// Close stops recognition and releases resources. Safe to call twice.
	Close() error
}

// Recognizer starts recognition over an audio feed. The feed carries
// encoded audio frames; closing it ends the stream.
type Recognizer interface {
	Stream(ctx context.Context, audio <-chan []byte) (Stream, error)
}

// NewFinal builds the final event that ends an utterance.
func NewFinal(text string) *Event {
	return &Event{Type: EventFinal, Text: text, SpeechFinal: true, Confidence: 1}
}

// NewInterim builds an interim hypothesis.
func NewInterim(text string) *Event {
	return &Event{Type: EventInterim, Text: text}
}
