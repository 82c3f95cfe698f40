package runtime

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"chat-realtime/mocks"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type gatewayFixture struct {
	gateway  *Gateway
	bus      *Bus
	hub      *Hub
	registry *Registry
	store    *memStore
	typing   *TypingCoordinator
	lastSeen *memLastSeen
}

// newGatewayFixture accepts any token "token-<user>".
func newGatewayFixture(t *testing.T, chats map[domain.ChatID][]domain.UserID) gatewayFixture {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockITokenVerifier(ctrl)
	verifier.EXPECT().
		Verify(gomock.Any()).
		DoAndReturn(func(token string) (domain.UserID, error) {
			var user string
			if _, err := fmt.Sscanf(token, "token-%s", &user); err != nil {
				return "", errors.ErrUnauthorized
			}
			return domain.UserID(user), nil
		}).
		AnyTimes()

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := newMemStore(chats)
	hub := NewHub(log)
	bus := NewBus(log, "node-a", hub, nil)
	registry := NewRegistry()
	presence := NewPresenceBroadcaster(log, store, bus)
	typing := NewTypingCoordinator(log, bus, time.Minute)
	lastSeen := newMemLastSeen()
	return gatewayFixture{
		gateway:  NewGateway(log, verifier, store, registry, hub, bus, presence, typing, lastSeen),
		bus:      bus,
		hub:      hub,
		registry: registry,
		store:    store,
		typing:   typing,
		lastSeen: lastSeen,
	}
}

func (f gatewayFixture) connect(t *testing.T, user domain.UserID) (domain.ConnectionID, *recordingSink) {
	sink := &recordingSink{}
	connID, err := f.gateway.HandleConnect(context.Background(), "token-"+string(user), sink)
	require.NoError(t, err)
	return connID, sink
}

func presenceOf(sink *recordingSink, user domain.UserID, status domain.Status) int {
	n := 0
	for _, p := range sink.presence() {
		if p.UserID == user && p.Status == status {
			n++
		}
	}
	return n
}

func TestGateway_PresenceAndMessageScenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newGatewayFixture(t, map[domain.ChatID][]domain.UserID{
		"r1": {"A", "B", "C"},
		"r2": {"D"},
	})

	// Given B, C and D already connected
	_, b := f.connect(t, "B")
	_, c := f.connect(t, "C")
	_, d := f.connect(t, "D")
	b.reset()
	c.reset()
	d.reset()

	// When A connects
	a1, self := f.connect(t, "A")

	// Then B and C each receive exactly one online event
	req.Equal(1, presenceOf(b, "A", domain.StatusOnline))
	req.Equal(1, presenceOf(c, "A", domain.StatusOnline))
	req.Empty(d.events())
	// And A learns its own status
	req.Equal(1, presenceOf(self, "A", domain.StatusOnline))

	// When a message is created in r1
	f.bus.Publish(ctx, domain.RoomTarget("r1"),
		event.MessageCreated{MessageID: "m1", ChatID: "r1", SenderID: "A", Content: "hello"}, "")
	req.Contains(b.events(), event.MessageNew)
	req.Contains(c.events(), event.MessageNew)
	req.Empty(d.events())

	// When A opens a second connection
	a2, _ := f.connect(t, "A")
	req.Equal(1, presenceOf(b, "A", domain.StatusOnline))

	// When the first one drops
	f.gateway.HandleDisconnect(ctx, a1)
	req.True(f.gateway.IsOnline("A"))
	req.Zero(presenceOf(b, "A", domain.StatusOffline))

	// When the second one drops
	f.gateway.HandleDisconnect(ctx, a2)
	req.False(f.gateway.IsOnline("A"))
	req.Equal(1, presenceOf(b, "A", domain.StatusOffline))
	req.Equal(1, presenceOf(c, "A", domain.StatusOffline))
	req.Empty(d.events())
}

func TestGateway_UnauthorizedLeavesNothingBehind(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t, nil)
	rejected := 0
	f.gateway.OnReject(func(error) { rejected++ })

	_, err := f.gateway.HandleConnect(context.Background(), "garbage", &recordingSink{})

	req.ErrorIs(err, errors.ErrUnauthorized)
	req.Equal(1, rejected)
	req.Equal(HubStats{}, f.hub.Stats())
	req.Empty(f.registry.OnlineUsers())
}

func TestGateway_MembershipFailureRejectsConnection(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t, map[domain.ChatID][]domain.UserID{"r1": {"A", "B"}})
	_, b := f.connect(t, "B")
	b.reset()
	f.store.fail(stderrors.New("store offline"))

	_, err := f.gateway.HandleConnect(context.Background(), "token-A", &recordingSink{})

	req.ErrorIs(err, errors.ErrMembershipLoad)
	req.False(f.gateway.IsOnline("A"))
	req.Equal(1, f.hub.Stats().Connections)
	req.Empty(b.events())
}

func TestGateway_DuplicateDisconnectEmitsOneOffline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newGatewayFixture(t, map[domain.ChatID][]domain.UserID{"r1": {"A", "B"}})
	_, b := f.connect(t, "B")
	a, sink := f.connect(t, "A")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.gateway.HandleDisconnect(ctx, a)
		}()
	}
	wg.Wait()

	req.Equal(1, presenceOf(b, "A", domain.StatusOffline))
	req.True(sink.isClosed())
}

func TestGateway_ConcurrentConnectionsAnnounceOnce(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newGatewayFixture(t, map[domain.ChatID][]domain.UserID{"r1": {"A", "B"}})
	_, b := f.connect(t, "B")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		conns []domain.ConnectionID
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			connID, _ := f.connect(t, "A")
			mu.Lock()
			conns = append(conns, connID)
			mu.Unlock()
		}()
	}
	wg.Wait()
	req.Equal(1, presenceOf(b, "A", domain.StatusOnline))

	for _, connID := range conns {
		wg.Add(1)
		go func(connID domain.ConnectionID) {
			defer wg.Done()
			f.gateway.HandleDisconnect(ctx, connID)
		}(connID)
	}
	wg.Wait()

	req.Equal(1, presenceOf(b, "A", domain.StatusOffline))
	// Then the last presence event B saw for A is offline
	var last event.Presence
	for _, p := range b.presence() {
		if p.UserID == "A" {
			last = p
		}
	}
	req.Equal(domain.StatusOffline, last.Status)
}

func TestGateway_HandleSignal(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newGatewayFixture(t, map[domain.ChatID][]domain.UserID{"r1": {"A", "B"}, "r2": {"B"}})
	a, _ := f.connect(t, "A")
	_, b := f.connect(t, "B")

	// Then typing is relayed to the room
	req.NoError(f.gateway.HandleSignal(ctx, a, event.Signal{Event: "typing-start", Data: event.SignalData{ChatID: "r1"}}))
	req.Equal([]event.Typing{{UserID: "A", ChatID: "r1", IsTyping: true}}, b.typing())

	// And refused for chats A does not belong to
	err := f.gateway.HandleSignal(ctx, a, event.Signal{Event: event.SignalTypingStart, Data: event.SignalData{ChatID: "r2"}})
	req.ErrorIs(err, errors.ErrNotMember)

	err = f.gateway.HandleSignal(ctx, "nope", event.Signal{Event: event.SignalTypingStart, Data: event.SignalData{ChatID: "r1"}})
	req.ErrorIs(err, errors.ErrUnknownConnection)

	err = f.gateway.HandleSignal(ctx, a, event.Signal{Event: "dance", Data: event.SignalData{ChatID: "r1"}})
	req.ErrorIs(err, errors.ErrUnknownSignal)

	// When A leaves while typing, B is told it stopped
	f.gateway.HandleDisconnect(ctx, a)
	typing := b.typing()
	req.Len(typing, 2)
	req.False(typing[1].IsTyping)
	req.False(f.typing.IsTyping("r1", "A"))
}

func TestGateway_ShutdownDisconnectsEveryone(t *testing.T) {
	req := require.New(t)
	f := newGatewayFixture(t, map[domain.ChatID][]domain.UserID{"r1": {"A", "B"}})
	_, a := f.connect(t, "A")
	_, b := f.connect(t, "B")

	f.gateway.Shutdown(context.Background())

	req.True(a.isClosed())
	req.True(b.isClosed())
	req.Empty(f.registry.OnlineUsers())
	req.Equal(HubStats{}, f.hub.Stats())
}

func TestGateway_PersistsLastSeenOnTransitions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newGatewayFixture(t, map[domain.ChatID][]domain.UserID{"r1": {"A", "B"}})

	// Given A opens two connections and closes both
	a1, _ := f.connect(t, "A")
	a2, _ := f.connect(t, "A")
	f.gateway.HandleDisconnect(ctx, a1)
	f.gateway.HandleDisconnect(ctx, a2)

	// Then only the first and the last transitions are written
	req.Equal([]domain.Status{domain.StatusOnline, domain.StatusOffline}, f.lastSeen.statuses())
	seen, ok, err := f.lastSeen.LastSeen(ctx, "A")
	req.NoError(err)
	req.True(ok)
	req.Equal(domain.StatusOffline, seen.Status)
}

func TestGateway_LastSeenFailureKeepsTransition(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newGatewayFixture(t, map[domain.ChatID][]domain.UserID{"r1": {"A", "B"}})
	_, b := f.connect(t, "B")
	f.lastSeen.fail(stderrors.New("disk full"))

	a, _ := f.connect(t, "A")
	f.gateway.HandleDisconnect(ctx, a)

	req.Equal(1, presenceOf(b, "A", domain.StatusOnline))
	req.Equal(1, presenceOf(b, "A", domain.StatusOffline))
}

func TestGateway_Lookup(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t, map[domain.ChatID][]domain.UserID{"r1": {"A", "B"}, "r2": {"C"}})
	f.connect(t, "A")

	t.Run("member of a shared chat", func(t *testing.T) {
		req := require.New(t)
		record, err := f.gateway.Lookup(ctx, "B", "A")
		req.NoError(err)
		req.Equal(domain.UserID("A"), record.UserID)
		req.True(record.Online)
		req.NotNil(record.LastSeen)
	})

	t.Run("user looking itself up", func(t *testing.T) {
		req := require.New(t)
		record, err := f.gateway.Lookup(ctx, "C", "C")
		req.NoError(err)
		req.False(record.Online)
		req.Nil(record.LastSeen)
	})

	t.Run("stranger is refused", func(t *testing.T) {
		req := require.New(t)
		_, err := f.gateway.Lookup(ctx, "C", "A")
		req.ErrorIs(err, errors.ErrNoSharedChat)
	})

	t.Run("membership failure", func(t *testing.T) {
		req := require.New(t)
		f.store.fail(stderrors.New("store offline"))
		defer f.store.fail(nil)
		_, err := f.gateway.Lookup(ctx, "B", "A")
		req.ErrorIs(err, errors.ErrMembershipLoad)
	})
}
