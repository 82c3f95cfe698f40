//go:generate go run go.uber.org/mock/mockgen -source=realtime_service.go -destination=../mocks/mock_realtime_service.go -package=mocks
package services

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"log/slog"
)

// IRealtimeService is what the request layer calls once a write has committed.
type IRealtimeService interface {
	OnMessageCreated(ctx context.Context, evt event.MessageCreated) error
	OnMessageEdited(ctx context.Context, evt event.MessageEditedEvent) error
	OnMessageDeleted(ctx context.Context, evt event.MessageDeletedEvent) error
	IsOnline(userID domain.UserID) bool
	Presence(ctx context.Context, viewer, userID domain.UserID) (domain.PresenceRecord, error)
}

type RealtimeService struct {
	log     *slog.Logger
	bus     contract.IFanoutBus
	gateway contract.IGateway
}

func NewRealtimeService(log *slog.Logger, bus contract.IFanoutBus, gateway contract.IGateway) *RealtimeService {
	return &RealtimeService{log: log, bus: bus, gateway: gateway}
}

func (s *RealtimeService) OnMessageCreated(ctx context.Context, evt event.MessageCreated) error {
	return s.publish(ctx, evt.ChatID, evt)
}

func (s *RealtimeService) OnMessageEdited(ctx context.Context, evt event.MessageEditedEvent) error {
	return s.publish(ctx, evt.ChatID, evt)
}

func (s *RealtimeService) OnMessageDeleted(ctx context.Context, evt event.MessageDeletedEvent) error {
	return s.publish(ctx, evt.ChatID, evt)
}

// IsOnline only knows about connections of this process.
func (s *RealtimeService) IsOnline(userID domain.UserID) bool {
	return s.gateway.IsOnline(userID)
}

// Presence answers only for the viewer itself or members of a shared chat,
// see errors.ErrNoSharedChat.
func (s *RealtimeService) Presence(ctx context.Context, viewer, userID domain.UserID) (domain.PresenceRecord, error) {
	return s.gateway.Lookup(ctx, viewer, userID)
}

// publish sends the event to the chat room, the sender's own connections included.
func (s *RealtimeService) publish(ctx context.Context, chatID domain.ChatID, evt event.DomainEvent) error {
	if err := event.Validate(evt); err != nil {
		return err
	}
	s.bus.Publish(ctx, domain.RoomTarget(chatID), evt, "")
	s.log.Debug("Domain event published", "event", evt.EventName(), "chat_id", chatID)
	return nil
}
