//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives frames for one live connection. Consume must never block.
type EventSink interface {
	Consume(ctx context.Context, f event.Frame) error
}

// ConnectionSink is an EventSink whose lifetime is owned by the hub.
// After Close, Consume rejects every frame.
type ConnectionSink interface {
	EventSink
	Close()
}

type ITokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

// IMembershipStore is the read side of chat membership.
type IMembershipStore interface {
	ChatsOf(ctx context.Context, userID domain.UserID) ([]domain.ChatID, error)
	MembersOf(ctx context.Context, chatID domain.ChatID) ([]domain.UserID, error)
}

// IPresenceStore persists the last presence transition of each user.
type IPresenceStore interface {
	SaveLastSeen(ctx context.Context, userID domain.UserID, status domain.Status, at time.Time) error
	LastSeen(ctx context.Context, userID domain.UserID) (domain.LastSeen, bool, error)
}

// IBroadcaster is the shared layer between server processes.
// Listen blocks, handing every received packet to handler, until ctx is done.
type IBroadcaster interface {
	Publish(ctx context.Context, p event.Packet) error
	Listen(ctx context.Context, handler func(ctx context.Context, p event.Packet)) error
}

type IFanoutBus interface {
	Attach(connID domain.ConnectionID, userID domain.UserID, sink ConnectionSink)
	Subscribe(connID domain.ConnectionID, target domain.Target) bool
	Detach(connID domain.ConnectionID) (domain.UserID, bool)
	Publish(ctx context.Context, target domain.Target, e event.DomainEvent, exclude domain.UserID)
	Receive(ctx context.Context, p event.Packet)
}

type IGateway interface {
	HandleConnect(ctx context.Context, token string, sink ConnectionSink) (domain.ConnectionID, error)
	HandleDisconnect(ctx context.Context, connID domain.ConnectionID)
	HandleSignal(ctx context.Context, connID domain.ConnectionID, signal event.Signal) error
	IsOnline(userID domain.UserID) bool
	Lookup(ctx context.Context, viewer, userID domain.UserID) (domain.PresenceRecord, error)
}
