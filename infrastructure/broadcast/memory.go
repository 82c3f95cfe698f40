package broadcast

import (
	"chat-realtime/domain/event"
	"context"
	"log/slog"
	"sync"
)

// MemoryBroadcaster links several buses living in the same process, each
// listener sees every packet. Packets still go through the wire encoding.
type MemoryBroadcaster struct {
	log       *slog.Logger
	mu        sync.RWMutex
	listeners map[int]chan []byte
	next      int
}

func NewMemoryBroadcaster(log *slog.Logger) *MemoryBroadcaster {
	return &MemoryBroadcaster{log: log, listeners: make(map[int]chan []byte)}
}

func (b *MemoryBroadcaster) Publish(_ context.Context, p event.Packet) error {
	data, err := event.EncodePacket(p)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.listeners {
		select {
		case ch <- data:
		default:
			b.log.Warn("Memory broadcast listener is full", "listener", id)
		}
	}
	return nil
}

func (b *MemoryBroadcaster) Listen(ctx context.Context, handler func(context.Context, event.Packet)) error {
	ch := make(chan []byte, 1024)
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-ch:
			dispatch(ctx, b.log, data, handler)
		}
	}
}

// Listeners is the number of active Listen calls.
func (b *MemoryBroadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
