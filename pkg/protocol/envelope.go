package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope tags a side-channel message with its session for the debug
// websocket stream, where several sessions share one feed.
type Envelope struct {
	Session   string          `json:"session"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope wraps already-encoded message bytes.
func NewEnvelope(session string, data []byte) *Envelope {
	return &Envelope{
		Session:   session,
		Timestamp: time.Now().UnixMilli(),
		Data:      json.RawMessage(data),
	}
}

// Bytes returns the JSON-encoded envelope.
func (e *Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

// Message decodes the wrapped side-channel message.
func (e *Envelope) Message() (*Message, error) {
	return ParseMessage(e.Data)
}

// ParseEnvelope parses a JSON envelope from bytes.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	return &env, nil
}
