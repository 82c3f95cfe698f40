package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"context"
	"fmt"
	"log/slog"
)

// Bus is the event fanout bus. Publishing always delivers to the local hub
// first, then hands the packet to the shared broadcaster so peer processes
// deliver to their own connections. A nil broadcaster collapses the bus to
// local-only delivery.
//
// Delivery is best-effort and at-most-once per connection: no acknowledgment,
// no replay for connections that were not subscribed at publish time.
type Bus struct {
	log         *slog.Logger
	node        string
	hub         *Hub
	broadcaster contract.IBroadcaster
	onDegraded  func()
}

func NewBus(log *slog.Logger, node string, hub *Hub, broadcaster contract.IBroadcaster) *Bus {
	return &Bus{log: log, node: node, hub: hub, broadcaster: broadcaster, onDegraded: func() {}}
}

// OnDegraded installs a callback fired when the broadcaster refuses a packet.
func (b *Bus) OnDegraded(fn func()) { b.onDegraded = fn }

func (b *Bus) Node() string { return b.node }

func (b *Bus) Attach(connID domain.ConnectionID, userID domain.UserID, sink contract.ConnectionSink) {
	b.hub.Attach(connID, userID, sink)
}

func (b *Bus) Subscribe(connID domain.ConnectionID, target domain.Target) bool {
	return b.hub.Subscribe(connID, target)
}

func (b *Bus) Detach(connID domain.ConnectionID) (domain.UserID, bool) {
	return b.hub.Detach(connID)
}

// Publish never fails the caller: encoding problems and transport outages are
// logged. Zero subscribers is not an error.
func (b *Bus) Publish(ctx context.Context, target domain.Target, e event.DomainEvent, exclude domain.UserID) {
	frame, err := event.NewFrame(e)
	if err != nil {
		b.log.Error("Failed to encode event", "event", e.EventName(), "target", target, "error", err)
		return
	}

	delivered := b.hub.Deliver(ctx, target, exclude, frame)
	b.log.Debug("Published locally", "event", frame.Event, "target", target, "delivered", delivered)

	if b.broadcaster == nil {
		return
	}
	packet := event.Packet{Origin: b.node, Target: target, Exclude: exclude, Frame: frame}
	if err := b.broadcaster.Publish(ctx, packet); err != nil {
		b.onDegraded()
		b.log.Warn("Broadcast failed",
			"event", frame.Event,
			"target", target,
			"error", fmt.Errorf("%w: %v", errors.ErrPublishDegraded, err))
	}
}

// Receive delivers a packet coming from the broadcaster. Packets published by
// this node were already delivered locally and are skipped.
func (b *Bus) Receive(ctx context.Context, p event.Packet) {
	if p.Origin == b.node {
		return
	}
	delivered := b.hub.Deliver(ctx, p.Target, p.Exclude, p.Frame)
	b.log.Debug("Delivered remote packet", "origin", p.Origin, "event", p.Frame.Event, "target", p.Target, "delivered", delivered)
}
