// Package room is the media transport of a coaching session: a WebRTC
// peer carrying the user's microphone in, the coach's voice out, and a
// data channel for side-channel messages.
package room

import (
	"context"
	"errors"
	"io"
)

// DataChannelLabel is the label clients use for the side channel.
const DataChannelLabel = "coach"

var (
	// ErrChannelClosed is returned when publishing while the data channel
	// is missing or not open.
	ErrChannelClosed = errors.New("room: data channel not open")

	// ErrClosed is returned by operations on a closed room.
	ErrClosed = errors.New("room: closed")
)

// Room is what a session needs from its transport.
type Room interface {
	// Audio yields the inbound microphone as an Ogg/Opus byte stream,
	// split into chunks. It is closed when the room closes.
	Audio() <-chan []byte

	// PublishData sends one side-channel message. Delivery is attempted
	// once.
	PublishData(ctx context.Context, data []byte) error

	// PlayAudio streams an Ogg/Opus reader to the outbound track,
	// returning when the reader is drained or ctx ends.
	PlayAudio(ctx context.Context, ogg io.Reader) error

	// Done is closed once the room is gone.
	Done() <-chan struct{}

	Close() error
}
