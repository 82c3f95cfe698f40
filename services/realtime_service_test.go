package services

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRealtimeService_PublishesToChatRoom(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	bus := mocks.NewMockIFanoutBus(ctrl)
	gateway := mocks.NewMockIGateway(ctrl)
	svc := NewRealtimeService(logs.GetLoggerFromLevel(slog.LevelDebug), bus, gateway)
	ctx := context.Background()

	t.Run("message created", func(t *testing.T) {
		req := require.New(t)
		evt := event.MessageCreated{MessageID: "m1", ChatID: "chat-1", SenderID: "alice", Content: "hi", Timestamp: time.Now()}
		bus.EXPECT().Publish(gomock.Any(), domain.RoomTarget("chat-1"), evt, domain.UserID("")).Times(1)

		req.NoError(svc.OnMessageCreated(ctx, evt))
	})

	t.Run("message edited", func(t *testing.T) {
		req := require.New(t)
		evt := event.MessageEditedEvent{MessageID: "m1", ChatID: "chat-1", Content: "hello", EditedAt: time.Now()}
		bus.EXPECT().Publish(gomock.Any(), domain.RoomTarget("chat-1"), evt, domain.UserID("")).Times(1)

		req.NoError(svc.OnMessageEdited(ctx, evt))
	})

	t.Run("message deleted", func(t *testing.T) {
		req := require.New(t)
		evt := event.MessageDeletedEvent{MessageID: "m1", ChatID: "chat-2"}
		bus.EXPECT().Publish(gomock.Any(), domain.RoomTarget("chat-2"), evt, domain.UserID("")).Times(1)

		req.NoError(svc.OnMessageDeleted(ctx, evt))
	})

	t.Run("invalid event is never published", func(t *testing.T) {
		req := require.New(t)
		bus.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		req.Error(svc.OnMessageDeleted(ctx, event.MessageDeletedEvent{MessageID: "m1"}))
		req.Error(svc.OnMessageCreated(ctx, event.MessageCreated{ChatID: "chat-1"}))
	})
}

func TestRealtimeService_IsOnline(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := mocks.NewMockIGateway(ctrl)
	gateway.EXPECT().IsOnline(domain.UserID("alice")).Return(true)
	gateway.EXPECT().IsOnline(domain.UserID("bob")).Return(false)

	svc := NewRealtimeService(slog.Default(), mocks.NewMockIFanoutBus(ctrl), gateway)

	req.True(svc.IsOnline("alice"))
	req.False(svc.IsOnline("bob"))
}

func TestRealtimeService_PresenceDelegatesToGateway(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := mocks.NewMockIGateway(ctrl)
	seen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	gateway.EXPECT().Lookup(gomock.Any(), domain.UserID("bob"), domain.UserID("alice")).
		Return(domain.PresenceRecord{UserID: "alice", LastSeen: &seen}, nil)

	svc := NewRealtimeService(slog.Default(), mocks.NewMockIFanoutBus(ctrl), gateway)
	record, err := svc.Presence(context.Background(), "bob", "alice")

	req.NoError(err)
	req.Equal(&seen, record.LastSeen)
}
