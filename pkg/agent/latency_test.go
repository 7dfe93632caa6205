package agent

import (
	"testing"
	"time"
)

func TestLatencyCollector(t *testing.T) {
	c := NewLatencyCollector()

	var reported []TurnMetrics
	c.OnTurn(func(m TurnMetrics) { reported = append(reported, m) })

	c.MarkTurnStart()
	time.Sleep(5 * time.Millisecond)
	c.MarkFetched(true)
	c.MarkFragment()
	c.MarkFragment()
	c.MarkGenerated(12)
	c.MarkFirstAudio()
	m := c.MarkDone()

	if m.Fragments != 2 || !m.HadSnapshot || m.ReplyLength != 12 {
		t.Errorf("metrics = %+v", m)
	}
	if m.FetchLatency() < 5*time.Millisecond {
		t.Errorf("FetchLatency() = %v", m.FetchLatency())
	}
	if m.FirstFragmentLatency() < m.FetchLatency() {
		t.Error("first fragment should come after the fetch")
	}
	if m.Total() < m.FirstAudioLatency() {
		t.Error("total should cover first audio")
	}
	if len(reported) != 1 {
		t.Errorf("OnTurn fired %d times", len(reported))
	}
	if c.AverageTotal() != m.Total() {
		t.Errorf("AverageTotal() = %v, want %v", c.AverageTotal(), m.Total())
	}
}

func TestTurnMetricsUnset(t *testing.T) {
	var m TurnMetrics
	if m.FetchLatency() != 0 || m.Total() != 0 {
		t.Error("unset marks should report zero")
	}
	if attrs := m.LogAttrs(); len(attrs)%2 != 0 {
		t.Errorf("LogAttrs() has odd length %d", len(attrs))
	}
}

func TestLatencyHistoryBounded(t *testing.T) {
	c := NewLatencyCollector()
	for i := 0; i < latencyHistory+10; i++ {
		c.MarkTurnStart()
		c.MarkDone()
	}
	if n := len(c.History()); n != latencyHistory {
		t.Errorf("History() = %d entries, want %d", n, latencyHistory)
	}
}
