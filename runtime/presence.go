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
)

// PresenceBroadcaster emits online/offline events to the users sharing at
// least one chat with the user whose presence changed. Each audience member is
// reached through its personal target, never through the room, so presence is
// not leaked beyond shared-chat members and a member of several shared chats
// receives a single event.
type PresenceBroadcaster struct {
	log   *slog.Logger
	store contract.IMembershipStore
	bus   contract.IFanoutBus
	now   func() time.Time
}

func NewPresenceBroadcaster(log *slog.Logger, store contract.IMembershipStore, bus contract.IFanoutBus) *PresenceBroadcaster {
	return &PresenceBroadcaster{log: log, store: store, bus: bus, now: func() time.Time { return time.Now().UTC() }}
}

func (p *PresenceBroadcaster) Online(ctx context.Context, userID domain.UserID) error {
	return p.broadcast(ctx, userID, domain.StatusOnline)
}

func (p *PresenceBroadcaster) Offline(ctx context.Context, userID domain.UserID) error {
	return p.broadcast(ctx, userID, domain.StatusOffline)
}

func (p *PresenceBroadcaster) broadcast(ctx context.Context, userID domain.UserID, status domain.Status) error {
	audience, err := p.Audience(ctx, userID)
	if err != nil {
		p.log.Error("Presence audience unavailable", "user_id", userID, "status", status, "error", err)
		return err
	}
	if len(audience) == 0 {
		p.log.Debug("Empty presence audience", "user_id", userID, "status", status)
		return nil
	}

	evt := event.Presence{UserID: userID, Status: status, Timestamp: p.now()}
	for _, member := range audience {
		p.bus.Publish(ctx, domain.UserTarget(member), evt, "")
	}
	p.log.Info("Presence broadcast", "user_id", userID, "status", status, "audience", len(audience))
	return nil
}

// Audience re-reads the user's chats (never a connect-time snapshot) and
// returns the deduplicated set of other members, sorted.
func (p *PresenceBroadcaster) Audience(ctx context.Context, userID domain.UserID) ([]domain.UserID, error) {
	chats, err := p.store.ChatsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: chats of %s: %v", errors.ErrMembershipLoad, userID, err)
	}

	audience := make(Set[domain.UserID])
	for _, chatID := range chats {
		members, err := p.store.MembersOf(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("%w: members of %s: %v", errors.ErrMembershipLoad, chatID, err)
		}
		for _, member := range members {
			if member != userID {
				audience[member] = struct{}{}
			}
		}
	}

	result := make([]domain.UserID, 0, len(audience))
	for member := range audience {
		result = append(result, member)
	}
	slices.Sort(result)
	return result, nil
}
