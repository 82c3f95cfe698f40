package broadcast

import (
	"chat-realtime/domain/event"
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NatsBroadcaster publishes packets on one core NATS subject. Every process
// subscribes without a queue group, so each one sees every packet.
type NatsBroadcaster struct {
	log     *slog.Logger
	nc      *nats.Conn
	subject string
}

func NewNatsBroadcaster(log *slog.Logger, nc *nats.Conn, subject string) *NatsBroadcaster {
	return &NatsBroadcaster{log: log, nc: nc, subject: subject}
}

// ConnectNats dials the server and keeps reconnecting forever.
func ConnectNats(log *slog.Logger, url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
}

func (b *NatsBroadcaster) Publish(_ context.Context, p event.Packet) error {
	data, err := event.EncodePacket(p)
	if err != nil {
		return err
	}
	return b.nc.Publish(b.subject, data)
}

func (b *NatsBroadcaster) Listen(ctx context.Context, handler func(context.Context, event.Packet)) error {
	msgCh := make(chan *nats.Msg, 1024)
	sub, err := b.nc.ChanSubscribe(b.subject, msgCh)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			b.log.Debug("NATS unsubscribe failed", "subject", b.subject, "error", err)
		}
	}()
	b.log.Info("Subscribed to broadcast subject", "subject", b.subject)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgCh:
			dispatch(ctx, b.log, msg.Data, handler)
		}
	}
}
