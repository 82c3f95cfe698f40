package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

type connection struct {
	userID    domain.UserID
	sink      contract.ConnectionSink
	targets   Set[domain.Target]
	createdAt time.Time
}

// Hub owns the connections living in this process and their subscriptions.
// It only knows about local connections, remote ones are reached through the
// broadcaster.
type Hub struct {
	mu          sync.RWMutex
	log         *slog.Logger
	connections map[domain.ConnectionID]*connection
	targets     map[domain.Target]Set[domain.ConnectionID]
	onDelivered func(n int)
	onDropped   func()
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:         log,
		connections: make(map[domain.ConnectionID]*connection),
		targets:     make(map[domain.Target]Set[domain.ConnectionID]),
		onDelivered: func(int) {},
		onDropped:   func() {},
	}
}

// Attach registers a connection and subscribes it to its owner's personal target.
func (h *Hub) Attach(connID domain.ConnectionID, userID domain.UserID, sink contract.ConnectionSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[connID] = &connection{
		userID:    userID,
		sink:      sink,
		targets:   make(Set[domain.Target]),
		createdAt: time.Now(),
	}
	h.subscribeLocked(connID, domain.UserTarget(userID))
}

// Subscribe returns false when the connection is unknown.
func (h *Hub) Subscribe(connID domain.ConnectionID, target domain.Target) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribeLocked(connID, target)
}

func (h *Hub) subscribeLocked(connID domain.ConnectionID, target domain.Target) bool {
	conn, ok := h.connections[connID]
	if !ok {
		return false
	}
	conn.targets[target] = struct{}{}
	if _, ok := h.targets[target]; !ok {
		h.targets[target] = make(Set[domain.ConnectionID])
	}
	h.targets[target][connID] = struct{}{}
	return true
}

// Detach removes the connection and every subscription it holds, then closes
// its sink. The second call for the same connection reports false.
func (h *Hub) Detach(connID domain.ConnectionID) (domain.UserID, bool) {
	h.mu.Lock()
	conn, ok := h.connections[connID]
	if !ok {
		h.mu.Unlock()
		return "", false
	}
	delete(h.connections, connID)
	for target := range conn.targets {
		if members, ok := h.targets[target]; ok {
			delete(members, connID)
			// If no one is left on the target, remove the entry entirely
			if len(members) == 0 {
				delete(h.targets, target)
			}
		}
	}
	h.mu.Unlock()

	conn.sink.Close()
	return conn.userID, true
}

func (h *Hub) Owner(connID domain.ConnectionID) (domain.UserID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.connections[connID]
	if !ok {
		return "", false
	}
	return conn.userID, true
}

func (h *Hub) IsSubscribed(connID domain.ConnectionID, target domain.Target) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.connections[connID]
	if !ok {
		return false
	}
	_, ok = conn.targets[target]
	return ok
}

// Deliver pushes a frame to every local connection subscribed to target,
// skipping the connections owned by exclude. Sinks are collected under the read
// lock and consumed outside of it. It returns the number of accepted frames.
func (h *Hub) Deliver(ctx context.Context, target domain.Target, exclude domain.UserID, f event.Frame) int {
	h.mu.RLock()
	sinks := make([]contract.ConnectionSink, 0, len(h.targets[target]))
	for connID := range h.targets[target] {
		conn := h.connections[connID]
		if exclude != "" && conn.userID == exclude {
			continue
		}
		sinks = append(sinks, conn.sink)
	}
	onDelivered, onDropped := h.onDelivered, h.onDropped
	h.mu.RUnlock()

	delivered := 0
	for _, s := range sinks {
		err := s.Consume(ctx, f)
		switch {
		case err == nil:
			delivered++
		case stderrors.Is(err, errors.ErrDeliveryDropped):
			onDropped()
		case stderrors.Is(err, errors.ErrConnectionClosed):
			// Detached while delivering.
		default:
			h.log.Warn("Sink refused frame", "target", target, "event", f.Event, "error", err)
		}
	}
	onDelivered(delivered)
	return delivered
}

// Connections is a snapshot of the local connection ids.
func (h *Hub) Connections() []domain.ConnectionID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Keys(h.connections)
}

type HubStats struct {
	Connections int
	Targets     int
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{Connections: len(h.connections), Targets: len(h.targets)}
}

// Observe installs delivery callbacks, typically monitoring counters.
func (h *Hub) Observe(onDelivered func(n int), onDropped func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDelivered = onDelivered
	h.onDropped = onDropped
}
