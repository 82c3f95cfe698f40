package sink

import (
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// OverflowPolicy decides what happens when a connection's outbound queue is full.
type OverflowPolicy string

const (
	// DropOldest evicts the oldest queued frame to make room for the new one.
	DropOldest OverflowPolicy = "drop-oldest"
	// Disconnect closes the sink, the transport then tears the connection down.
	Disconnect OverflowPolicy = "disconnect"
)

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(s); p {
	case DropOldest, Disconnect:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown overflow policy %q", errors.ErrInvalidConfig, s)
	}
}

// ConnectionSink is the bounded outbound queue of one live connection.
// Consume is called by the fanout bus and never blocks. The transport's write
// loop drains Out until Done is closed.
//
// The queue channel is never closed: closing happens on done, and the closed
// flag is checked under the same mutex as every send, so no frame is queued
// after Close returns.
type ConnectionSink struct {
	log     *slog.Logger
	policy  OverflowPolicy
	mu      sync.Mutex
	closed  bool
	out     chan event.Frame
	done    chan struct{}
	dropped uint64
}

func NewConnectionSink(log *slog.Logger, bufferSize int, policy OverflowPolicy) *ConnectionSink {
	return &ConnectionSink{
		log:    log,
		policy: policy,
		out:    make(chan event.Frame, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *ConnectionSink) Consume(_ context.Context, f event.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrConnectionClosed
	}

	select {
	case s.out <- f:
		return nil
	default:
	}

	s.dropped++
	switch s.policy {
	case Disconnect:
		s.log.Warn("Outbound queue full, disconnecting", "event", f.Event, "capacity", cap(s.out))
		s.closeLocked()
	default:
		// Single writer under the lock: after one eviction there is room.
		select {
		case <-s.out:
		default:
		}
		select {
		case s.out <- f:
		default:
		}
		s.log.Debug("Outbound queue full, oldest frame dropped", "event", f.Event, "dropped", s.dropped)
	}
	return errors.ErrDeliveryDropped
}

// Out is drained by the transport's write loop.
func (s *ConnectionSink) Out() <-chan event.Frame { return s.out }

// Done is closed once the sink is closed.
func (s *ConnectionSink) Done() <-chan struct{} { return s.done }

// Close is idempotent.
func (s *ConnectionSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *ConnectionSink) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *ConnectionSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
