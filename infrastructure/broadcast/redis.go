package broadcast

import (
	"chat-realtime/domain/event"
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes packets on one Redis pub/sub channel.
type RedisBroadcaster struct {
	log     *slog.Logger
	client  *redis.Client
	channel string
}

func NewRedisBroadcaster(log *slog.Logger, client *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{log: log, client: client, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, p event.Packet) error {
	data, err := event.EncodePacket(p)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBroadcaster) Listen(ctx context.Context, handler func(context.Context, event.Packet)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so a refused subscribe surfaces here.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.Info("Subscribed to broadcast channel", "channel", b.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis channel %s closed", b.channel)
			}
			dispatch(ctx, b.log, []byte(msg.Payload), handler)
		}
	}
}
