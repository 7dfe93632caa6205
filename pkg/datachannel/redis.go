package datachannel

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ChannelName returns the pub/sub channel that mirrors a session's
// side channel.
func ChannelName(sessionID string) string {
	return fmt.Sprintf("coach:%s:data", sessionID)
}

// RedisSink mirrors messages onto a Redis pub/sub channel so other
// processes can follow a session without joining the room.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink creates a sink publishing to channel.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Send implements Sink.
func (r *RedisSink) Send(ctx context.Context, data []byte) error {
	if r.client == nil {
		return ErrNoSink
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Channel returns the pub/sub channel name.
func (r *RedisSink) Channel() string {
	return r.channel
}
