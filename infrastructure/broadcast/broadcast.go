// Package broadcast holds the shared layer implementations that carry fanout
// packets between server processes.
package broadcast

import (
	"chat-realtime/domain/event"
	"context"
	"log/slog"
)

// Driver names accepted by BROADCAST_DRIVER.
const (
	DriverLocal = "local"
	DriverNats  = "nats"
	DriverRedis = "redis"
)

// dispatch decodes a raw payload and hands it to handler. Undecodable
// payloads are logged and dropped, they never stop a listener.
func dispatch(ctx context.Context, log *slog.Logger, data []byte, handler func(context.Context, event.Packet)) bool {
	p, err := event.DecodePacket(data)
	if err != nil {
		log.Warn("Invalid broadcast packet", "error", err, "size", len(data))
		return false
	}
	handler(ctx, p)
	return true
}
