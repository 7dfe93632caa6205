package agent

import (
	"sync"
	"time"
)

// TurnMetrics is the timing of one coaching turn. Latencies are measured
// from the moment the utterance was handed to the turn loop.
type TurnMetrics struct {
	Start          time.Time
	FetchDone      time.Time
	FirstFragment  time.Time
	GenerationDone time.Time
	FirstAudio     time.Time
	Done           time.Time

	Fragments   int
	HadSnapshot bool
	ReplyLength int
}

func since(start, t time.Time) time.Duration {
	if start.IsZero() || t.IsZero() {
		return 0
	}
	return t.Sub(start)
}

// FetchLatency is the time spent fetching metrics.
func (m TurnMetrics) FetchLatency() time.Duration { return since(m.Start, m.FetchDone) }

// FirstFragmentLatency is the time to the first generated fragment.
func (m TurnMetrics) FirstFragmentLatency() time.Duration { return since(m.Start, m.FirstFragment) }

// FirstAudioLatency is the time until synthesized audio was ready.
func (m TurnMetrics) FirstAudioLatency() time.Duration { return since(m.Start, m.FirstAudio) }

// Total is the whole turn, playback included.
func (m TurnMetrics) Total() time.Duration { return since(m.Start, m.Done) }

// LogAttrs returns the metrics as slog key/value pairs.
func (m TurnMetrics) LogAttrs() []any {
	return []any{
		"fetch_ms", m.FetchLatency().Milliseconds(),
		"first_fragment_ms", m.FirstFragmentLatency().Milliseconds(),
		"first_audio_ms", m.FirstAudioLatency().Milliseconds(),
		"total_ms", m.Total().Milliseconds(),
		"fragments", m.Fragments,
		"metrics", m.HadSnapshot,
	}
}

const latencyHistory = 100

// LatencyCollector collects turn metrics. It is goroutine-safe.
type LatencyCollector struct {
	mu      sync.Mutex
	current TurnMetrics
	history []TurnMetrics

	onTurn func(TurnMetrics)
}

// NewLatencyCollector creates an empty collector.
func NewLatencyCollector() *LatencyCollector {
	return &LatencyCollector{history: make([]TurnMetrics, 0, latencyHistory)}
}

// OnTurn sets a callback fired with each completed turn.
func (c *LatencyCollector) OnTurn(fn func(TurnMetrics)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTurn = fn
}

// MarkTurnStart resets the current turn.
func (c *LatencyCollector) MarkTurnStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = TurnMetrics{Start: time.Now()}
}

// MarkFetched records the end of the metrics fetch.
func (c *LatencyCollector) MarkFetched(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.FetchDone = time.Now()
	c.current.HadSnapshot = ok
}

// MarkFragment counts a fragment, noting the time of the first.
func (c *LatencyCollector) MarkFragment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.FirstFragment.IsZero() {
		c.current.FirstFragment = time.Now()
	}
	c.current.Fragments++
}

// MarkGenerated records the end of generation.
func (c *LatencyCollector) MarkGenerated(replyLength int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.GenerationDone = time.Now()
	c.current.ReplyLength = replyLength
}

// MarkFirstAudio records when synthesis produced a stream.
func (c *LatencyCollector) MarkFirstAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.FirstAudio.IsZero() {
		c.current.FirstAudio = time.Now()
	}
}

// MarkDone archives the current turn and returns it.
func (c *LatencyCollector) MarkDone() TurnMetrics {
	c.mu.Lock()
	c.current.Done = time.Now()
	m := c.current
	c.history = append(c.history, m)
	if len(c.history) > latencyHistory {
		c.history = c.history[1:]
	}
	fn := c.onTurn
	c.mu.Unlock()

	if fn != nil {
		fn(m)
	}
	return m
}

// History returns the archived turns, oldest first.
func (c *LatencyCollector) History() []TurnMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TurnMetrics, len(c.history))
	copy(out, c.history)
	return out
}

// AverageTotal returns the mean turn time over the history.
func (c *LatencyCollector) AverageTotal() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return 0
	}
	var sum time.Duration
	for _, m := range c.history {
		sum += m.Total()
	}
	return sum / time.Duration(len(c.history))
}
