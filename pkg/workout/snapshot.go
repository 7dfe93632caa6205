// Package workout reads exercise metrics from the local metrics service.
//
// The service answers GET requests with the latest snapshot as a JSON
// object, for example {"reps": 12, "sets": 2}. Its schema is owned by the
// service; the coach forwards snapshots verbatim and never interprets them.
package workout

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	// ErrEmptyBody is returned when the service answers with no content.
	ErrEmptyBody = errors.New("workout: empty metrics body")

	// ErrMalformed is returned when the body is not valid JSON.
	ErrMalformed = errors.New("workout: malformed metrics body")

	// ErrNotObject is returned when the body is valid JSON but not an object.
	ErrNotObject = errors.New("workout: metrics body is not a JSON object")
)

// Snapshot is one metrics reading: an opaque JSON object kept byte for byte.
type Snapshot struct {
	raw json.RawMessage
}

// ParseSnapshot validates body as a JSON object. Surrounding whitespace is
// trimmed; everything else is kept exactly as received.
func ParseSnapshot(body []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Snapshot{}, ErrEmptyBody
	}
	if !json.Valid(trimmed) {
		return Snapshot{}, ErrMalformed
	}
	if trimmed[0] != '{' {
		return Snapshot{}, ErrNotObject
	}

	raw := make(json.RawMessage, len(trimmed))
	copy(raw, trimmed)
	return Snapshot{raw: raw}, nil
}

// Raw returns the snapshot bytes.
func (s Snapshot) Raw() json.RawMessage {
	return s.raw
}

// String returns the snapshot text as received.
func (s Snapshot) String() string {
	return string(s.raw)
}

// IsZero reports whether s holds no reading.
func (s Snapshot) IsZero() bool {
	return len(s.raw) == 0
}

// Decode unmarshals the snapshot into v, for callers that do know the schema.
func (s Snapshot) Decode(v any) error {
	if s.IsZero() {
		return ErrEmptyBody
	}
	return json.Unmarshal(s.raw, v)
}

// MarshalJSON embeds the snapshot unchanged.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	return s.raw, nil
}
