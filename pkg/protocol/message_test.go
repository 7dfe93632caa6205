package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTranscriptMessage(t *testing.T) {
	msg, err := NewTranscript("how many reps left")
	if err != nil {
		t.Fatalf("NewTranscript() error: %v", err)
	}

	data, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if string(data) != `{"transcript":"how many reps left"}` {
		t.Errorf("Bytes() = %s", data)
	}

	parsed, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage() error: %v", err)
	}
	text, err := parsed.Transcript()
	if err != nil || text != "how many reps left" {
		t.Errorf("Transcript() = %q, %v", text, err)
	}
}

func TestDebugMetricsKeepsSnapshotBytes(t *testing.T) {
	snapshot := json.RawMessage(`  {"reps": 12, "sets": 2}` + "\n")

	msg, err := NewDebugMetrics(snapshot)
	if err != nil {
		t.Fatalf("NewDebugMetrics() error: %v", err)
	}
	data, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}

	want := `{"debug_metrics":{"reps": 12, "sets": 2}}`
	if string(data) != want {
		t.Errorf("Bytes() = %s, want %s", data, want)
	}
}

func TestDebugMetricsRejectsNonObject(t *testing.T) {
	for _, in := range []string{``, `null`, `[1,2]`, `"x"`, `{"reps":`} {
		t.Run(in, func(t *testing.T) {
			if _, err := NewDebugMetrics(json.RawMessage(in)); !errors.Is(err, ErrNotObject) {
				t.Errorf("NewDebugMetrics(%q) error = %v, want ErrNotObject", in, err)
			}
		})
	}
}

func TestCoachChunkMessage(t *testing.T) {
	type fragment struct {
		Delta string `json:"delta"`
	}

	msg, err := NewCoachChunk(fragment{Delta: "Nice"})
	if err != nil {
		t.Fatalf("NewCoachChunk() error: %v", err)
	}
	data, _ := msg.Bytes()
	if string(data) != `{"coach_chunk":{"delta":"Nice"}}` {
		t.Errorf("Bytes() = %s", data)
	}

	parsed, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage() error: %v", err)
	}
	var got fragment
	if err := parsed.ParseData(&got); err != nil || got.Delta != "Nice" {
		t.Errorf("ParseData() = %+v, %v", got, err)
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"unknown key", `{"hello":"x"}`, ErrUnknownKind},
		{"empty object", `{}`, ErrUnknownKind},
		{"two kinds", `{"transcript":"a","coach_chunk":"b"}`, ErrAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMessage([]byte(tt.in)); !errors.Is(err, tt.want) {
				t.Errorf("ParseMessage() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Error("ParseMessage() should fail on invalid JSON")
	}
}

func TestParseMessageIgnoresExtraKeys(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"transcript":"go","v":1}`))
	if err != nil {
		t.Fatalf("ParseMessage() error: %v", err)
	}
	if msg.Kind != KindTranscript {
		t.Errorf("Kind = %s, want transcript", msg.Kind)
	}
}

func TestNewMessageUnknownKind(t *testing.T) {
	if _, err := NewMessage("speak", "x"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("NewMessage() error = %v, want ErrUnknownKind", err)
	}
	bad := &Message{Kind: "speak", Payload: json.RawMessage(`1`)}
	if _, err := bad.Bytes(); err == nil {
		t.Error("Bytes() should reject an unknown kind")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	msg, _ := NewTranscript("ready")
	data, _ := msg.Bytes()

	env := NewEnvelope("sess-1", data)
	if env.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}

	raw, err := env.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}

	parsed, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope() error: %v", err)
	}
	if parsed.Session != "sess-1" {
		t.Errorf("Session = %q", parsed.Session)
	}
	inner, err := parsed.Message()
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}
	if text, _ := inner.Transcript(); text != "ready" {
		t.Errorf("Transcript = %q", text)
	}
}
