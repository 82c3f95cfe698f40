package workers

import (
	"chat-realtime/contract"
	"chat-realtime/domain/event"
	"context"
	"log/slog"
)

// BroadcastListener feeds packets published by peer processes back into the
// local fanout bus. A broken subscription returns an error so the supervisor
// restarts the listener.
type BroadcastListener struct {
	log         *slog.Logger
	broadcaster contract.IBroadcaster
	receive     func(ctx context.Context, p event.Packet)
}

func NewBroadcastListener(log *slog.Logger, broadcaster contract.IBroadcaster, bus contract.IFanoutBus) *BroadcastListener {
	return &BroadcastListener{log: log, broadcaster: broadcaster, receive: bus.Receive}
}

func (w *BroadcastListener) Run(ctx context.Context) error {
	w.log.Info("Listening to peer broadcasts")
	if err := w.broadcaster.Listen(ctx, w.receive); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
