package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Deliverer hands a broadcast frame to the sessions connected locally.
type Deliverer interface {
	Deliver(key RoomKey, frame []byte)
}

// Fanout carries a broadcast frame to every instance that may hold members
// of the room.
type Fanout interface {
	Publish(ctx context.Context, key RoomKey, frame []byte) error
}

// LocalFanout delivers in process. It is enough for a single instance.
type LocalFanout struct {
	d Deliverer
}

func NewLocalFanout(d Deliverer) *LocalFanout {
	return &LocalFanout{d: d}
}

func (f *LocalFanout) Publish(_ context.Context, key RoomKey, frame []byte) error {
	f.d.Deliver(key, frame)
	return nil
}

const roomChannelPrefix = "chat:room:"

// RedisFanout publishes frames on a per-room Redis channel. Every instance
// runs Run to receive them and deliver to its own sessions, including the
// publishing instance.
type RedisFanout struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisFanout(client *redis.Client, log zerolog.Logger) *RedisFanout {
	return &RedisFanout{
		client: client,
		log:    log.With().Str("component", "chat_fanout").Logger(),
	}
}

func (f *RedisFanout) Publish(ctx context.Context, key RoomKey, frame []byte) error {
	if err := f.client.Publish(ctx, roomChannelPrefix+string(key), frame).Err(); err != nil {
		return fmt.Errorf("publish to room %s: %w", key, err)
	}
	return nil
}

// Run subscribes to every room channel and delivers incoming frames to d
// until ctx is cancelled. ready, when non-nil, is closed once the
// subscription is confirmed.
func (f *RedisFanout) Run(ctx context.Context, d Deliverer, ready chan<- struct{}) error {
	pubsub := f.client.PSubscribe(ctx, roomChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to room channels: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	f.log.Info().Msg("chat fanout subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("room subscription closed")
			}
			key, found := strings.CutPrefix(msg.Channel, roomChannelPrefix)
			if !found {
				f.log.Warn().Str("channel", msg.Channel).Msg("unexpected channel on room subscription")
				continue
			}
			d.Deliver(RoomKey(key), []byte(msg.Payload))
		}
	}
}
