// Package runtime binds live connections to chat membership and fans events
// out to them. It orchestrates the realtime subsystem without owning any
// transport or storage.
package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Gateway is the entry point of the transport layer: connect, disconnect,
// inbound signals. Transitions of one user and the presence broadcast they
// trigger run under that user's lock, so presence events of a user are
// emitted in the order its connections came and went.
type Gateway struct {
	log      *slog.Logger
	verifier contract.ITokenVerifier
	store    contract.IMembershipStore
	registry *Registry
	bus      contract.IFanoutBus
	hub      *Hub
	presence *PresenceBroadcaster
	typing   *TypingCoordinator
	lastSeen contract.IPresenceStore
	users    *keyedMutex
	onReject func(err error)
}

func NewGateway(log *slog.Logger, verifier contract.ITokenVerifier, store contract.IMembershipStore,
	registry *Registry, hub *Hub, bus contract.IFanoutBus,
	presence *PresenceBroadcaster, typing *TypingCoordinator, lastSeen contract.IPresenceStore) *Gateway {
	return &Gateway{
		log:      log,
		verifier: verifier,
		store:    store,
		registry: registry,
		hub:      hub,
		bus:      bus,
		presence: presence,
		typing:   typing,
		lastSeen: lastSeen,
		users:    newKeyedMutex(),
		onReject: func(error) {},
	}
}

// OnReject installs a callback fired for every rejected connection.
func (g *Gateway) OnReject(fn func(err error)) { g.onReject = fn }

// HandleConnect authenticates the token, loads the user's chats and only then
// attaches the connection, so a rejected connection leaves nothing behind.
func (g *Gateway) HandleConnect(ctx context.Context, token string, sink contract.ConnectionSink) (domain.ConnectionID, error) {
	userID, err := g.verifier.Verify(token)
	if err != nil {
		g.log.Warn("Connection rejected", "reason", "unauthorized", "error", err)
		g.onReject(err)
		return "", err
	}

	chats, err := g.store.ChatsOf(ctx, userID)
	if err != nil {
		err = fmt.Errorf("%w: %v", errors.ErrMembershipLoad, err)
		g.log.Error("Connection rejected", "reason", "membership", "user_id", userID, "error", err)
		g.onReject(err)
		return "", err
	}

	connID := domain.ConnectionID(uuid.NewString())
	unlock := g.users.Lock(string(userID))
	defer unlock()

	g.bus.Attach(connID, userID, sink)
	for _, chatID := range chats {
		g.bus.Subscribe(connID, domain.RoomTarget(chatID))
	}
	transition := g.registry.Register(userID, connID)

	// The new connection learns its own status first.
	if frame, err := event.NewFrame(event.Presence{UserID: userID, Status: domain.StatusOnline, Timestamp: time.Now().UTC()}); err == nil {
		_ = sink.Consume(ctx, frame)
	}

	if transition == domain.FirstConnection {
		g.recordLastSeen(ctx, userID, domain.StatusOnline)
		_ = g.presence.Online(ctx, userID)
	}
	g.log.Info("User connected",
		"user_id", userID,
		"connection_id", connID,
		"chats", len(chats),
		"transition", transition)
	return connID, nil
}

// HandleDisconnect is safe to call several times for the same connection,
// only the first call has an effect.
func (g *Gateway) HandleDisconnect(ctx context.Context, connID domain.ConnectionID) {
	userID, ok := g.bus.Detach(connID)
	if !ok {
		g.log.Debug("Duplicate disconnect ignored", "connection_id", connID)
		return
	}

	unlock := g.users.Lock(string(userID))
	defer unlock()

	transition := g.registry.Unregister(userID, connID)
	g.log.Info("User disconnected", "user_id", userID, "connection_id", connID, "transition", transition)
	if transition != domain.LastConnection {
		return
	}
	g.typing.StopUser(ctx, userID)
	g.recordLastSeen(ctx, userID, domain.StatusOffline)
	_ = g.presence.Offline(ctx, userID)
}

// recordLastSeen never fails the transition it belongs to.
func (g *Gateway) recordLastSeen(ctx context.Context, userID domain.UserID, status domain.Status) {
	if err := g.lastSeen.SaveLastSeen(ctx, userID, status, time.Now().UTC()); err != nil {
		g.log.Warn("Failed to persist last seen", "user_id", userID, "status", status, "error", err)
	}
}

// HandleSignal applies an inbound typing signal. Signals for chats the
// connection is not subscribed to are refused.
func (g *Gateway) HandleSignal(ctx context.Context, connID domain.ConnectionID, signal event.Signal) error {
	signal, err := signal.Normalize()
	if err != nil {
		return err
	}
	userID, ok := g.hub.Owner(connID)
	if !ok {
		return errors.ErrUnknownConnection
	}
	chatID := signal.Data.ChatID
	if !g.hub.IsSubscribed(connID, domain.RoomTarget(chatID)) {
		return fmt.Errorf("%w: %s", errors.ErrNotMember, chatID)
	}

	switch signal.Event {
	case event.SignalTypingStart:
		g.typing.Start(ctx, chatID, userID)
	case event.SignalTypingStop:
		g.typing.Stop(ctx, chatID, userID)
	}
	return nil
}

func (g *Gateway) IsOnline(userID domain.UserID) bool {
	return g.registry.IsOnline(userID)
}

// Lookup reports the presence of userID to viewer. A user may look itself up,
// anyone else must share at least one chat with it.
func (g *Gateway) Lookup(ctx context.Context, viewer, userID domain.UserID) (domain.PresenceRecord, error) {
	if viewer != userID {
		audience, err := g.presence.Audience(ctx, userID)
		if err != nil {
			return domain.PresenceRecord{}, err
		}
		if _, found := slices.BinarySearch(audience, viewer); !found {
			return domain.PresenceRecord{}, fmt.Errorf("%w: %s", errors.ErrNoSharedChat, userID)
		}
	}

	record := domain.PresenceRecord{UserID: userID, Online: g.registry.IsOnline(userID)}
	seen, ok, err := g.lastSeen.LastSeen(ctx, userID)
	switch {
	case err != nil:
		g.log.Warn("Last seen unavailable", "user_id", userID, "error", err)
	case ok:
		record.LastSeen = &seen.At
	}
	return record, nil
}

// Shutdown disconnects every local connection. Users whose last connection
// lived here are announced offline.
func (g *Gateway) Shutdown(ctx context.Context) {
	connections := g.hub.Connections()
	g.log.Info("Disconnecting local connections", "count", len(connections))
	for _, connID := range connections {
		if ctx.Err() != nil {
			g.log.Warn("Shutdown interrupted", "remaining", len(g.hub.Connections()))
			return
		}
		g.HandleDisconnect(ctx, connID)
	}
}
