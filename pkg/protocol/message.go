// Package protocol defines the JSON messages the coach publishes on the
// session side channel, plus the envelope used to mirror them to debug
// observers.
//
// Every side-channel message is a JSON object with exactly one key:
//
//	{"transcript": "<recognized text>"}
//	{"debug_metrics": <metrics snapshot object>}
//	{"coach_chunk": <generation fragment>}
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies a side-channel message by its single top-level key.
type Kind string

const (
	KindTranscript   Kind = "transcript"    // recognized user speech
	KindDebugMetrics Kind = "debug_metrics" // snapshot attached to a turn
	KindCoachChunk   Kind = "coach_chunk"   // one generation fragment
)

var knownKinds = map[Kind]bool{
	KindTranscript:   true,
	KindDebugMetrics: true,
	KindCoachChunk:   true,
}

var (
	// ErrUnknownKind is returned when a message carries no recognised key.
	ErrUnknownKind = errors.New("protocol: unknown message kind")

	// ErrAmbiguous is returned when a message carries more than one known key.
	ErrAmbiguous = errors.New("protocol: message has more than one kind")

	// ErrNotObject is returned when a debug_metrics payload is not a JSON object.
	ErrNotObject = errors.New("protocol: payload is not a JSON object")
)

// Message is a single side-channel message.
type Message struct {
	Kind    Kind
	Payload json.RawMessage
}

// NewMessage marshals payload under the given kind.
func NewMessage(kind Kind, payload interface{}) (*Message, error) {
	if !knownKinds[kind] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return &Message{Kind: kind, Payload: raw}, nil
}

// NewTranscript builds {"transcript": text}.
func NewTranscript(text string) (*Message, error) {
	return NewMessage(KindTranscript, text)
}

// NewCoachChunk builds {"coach_chunk": fragment}.
func NewCoachChunk(fragment interface{}) (*Message, error) {
	return NewMessage(KindCoachChunk, fragment)
}

// NewDebugMetrics builds {"debug_metrics": snapshot}. The snapshot bytes
// are embedded as-is so observers see exactly what the metrics service sent.
func NewDebugMetrics(snapshot json.RawMessage) (*Message, error) {
	trimmed := bytes.TrimSpace(snapshot)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, ErrNotObject
	}
	return &Message{Kind: KindDebugMetrics, Payload: trimmed}, nil
}

// Bytes returns the wire encoding. Payload bytes are written verbatim.
func (m *Message) Bytes() ([]byte, error) {
	if !knownKinds[m.Kind] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	if !json.Valid(m.Payload) {
		return nil, fmt.Errorf("protocol: invalid %s payload", m.Kind)
	}

	key, _ := json.Marshal(string(m.Kind))

	var buf bytes.Buffer
	buf.Grow(len(key) + len(m.Payload) + 3)
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(m.Payload)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseData unmarshals the payload into v.
func (m *Message) ParseData(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Transcript returns the text of a transcript message.
func (m *Message) Transcript() (string, error) {
	if m.Kind != KindTranscript {
		return "", fmt.Errorf("protocol: %s is not a transcript", m.Kind)
	}
	var text string
	err := m.ParseData(&text)
	return text, err
}

// ParseMessage decodes a side-channel message. Unknown keys are ignored
// as long as exactly one known key is present.
func ParseMessage(data []byte) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	var msg *Message
	for k, v := range fields {
		kind := Kind(k)
		if !knownKinds[kind] {
			continue
		}
		if msg != nil {
			return nil, ErrAmbiguous
		}
		msg = &Message{Kind: kind, Payload: v}
	}
	if msg == nil {
		return nil, ErrUnknownKind
	}
	return msg, nil
}
