package room

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
)

// oggFixture encodes n fake 20ms Opus packets as an Ogg stream.
func oggFixture(t *testing.T, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := oggwriter.NewWith(&buf, opusClockRate, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		err := w.WriteRTP(&rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				SequenceNumber: uint16(i),
				Timestamp:      uint32(1000 + i*960),
			},
			Payload: []byte{0xfc, byte(i)},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

type sampleSink struct {
	mu      sync.Mutex
	samples []media.Sample
}

func (s *sampleSink) write(sample media.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *sampleSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func TestPlayOgg(t *testing.T) {
	sink := &sampleSink{}
	start := time.Now()

	err := playOgg(context.Background(), bytes.NewReader(oggFixture(t, 5)), sink.write, nil)
	if err != nil {
		t.Fatalf("playOgg() error: %v", err)
	}

	if sink.count() != 5 {
		t.Fatalf("wrote %d samples, want 5", sink.count())
	}
	for i, s := range sink.samples[1:] {
		if s.Duration != 20*time.Millisecond {
			t.Errorf("sample %d duration = %v, want 20ms", i+1, s.Duration)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("playback took %v, should be paced in real time", elapsed)
	}
}

func TestPlayOggCancel(t *testing.T) {
	sink := &sampleSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := playOgg(ctx, bytes.NewReader(oggFixture(t, 100)), sink.write, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("playOgg() = %v, want DeadlineExceeded", err)
	}
	if n := sink.count(); n == 0 || n >= 100 {
		t.Errorf("wrote %d samples, want a partial reply", n)
	}
}

func TestPlayOggStopsOnDone(t *testing.T) {
	done := make(chan struct{})
	close(done)

	err := playOgg(context.Background(), bytes.NewReader(oggFixture(t, 10)), (&sampleSink{}).write, done)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("playOgg() = %v, want ErrClosed", err)
	}
}

func TestPlayOggWriteError(t *testing.T) {
	boom := errors.New("track gone")
	err := playOgg(context.Background(), bytes.NewReader(oggFixture(t, 3)),
		func(media.Sample) error { return boom }, nil)
	if !errors.Is(err, boom) {
		t.Errorf("playOgg() = %v, want %v", err, boom)
	}
}

func TestPlayOggBadHeader(t *testing.T) {
	err := playOgg(context.Background(), bytes.NewReader([]byte("ID3 mp3 data")), (&sampleSink{}).write, nil)
	if err == nil {
		t.Error("playOgg() should reject non-Ogg input")
	}
}
