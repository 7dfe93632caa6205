package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
)

const opusClockRate = 48000

// PlayAudio implements Room. Pages are written at real-time pace using
// the granule positions in the stream. Calls are serialized so replies
// never interleave.
func (p *Peer) PlayAudio(ctx context.Context, ogg io.Reader) error {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	return playOgg(ctx, ogg, p.out.WriteSample, p.done)
}

// playOgg feeds each Ogg page to write as one sample.
func playOgg(ctx context.Context, r io.Reader, write func(media.Sample) error, done <-chan struct{}) error {
	reader, _, err := oggreader.NewWith(r)
	if err != nil {
		return fmt.Errorf("room: read ogg header: %w", err)
	}

	var lastGranule uint64
	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return ErrClosed
		default:
		}

		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("room: read ogg page: %w", err)
		}

		if header.GranulePosition <= lastGranule {
			// tags page, or a new logical stream
			lastGranule = header.GranulePosition
			continue
		}
		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(samples) * time.Second / opusClockRate

		if err := write(media.Sample{Data: page, Duration: duration}); err != nil {
			return fmt.Errorf("room: write sample: %w", err)
		}

		next = next.Add(duration)
		wait := time.NewTimer(time.Until(next))
		select {
		case <-wait.C:
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-done:
			wait.Stop()
			return ErrClosed
		}
	}
}
