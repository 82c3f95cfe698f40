package broadcast

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestDispatch_DropsInvalidPayloads(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	calls := 0
	handler := func(context.Context, event.Packet) { calls++ }

	req.False(dispatch(context.Background(), log, []byte("not json"), handler))
	req.False(dispatch(context.Background(), log, []byte(`{"origin":"a"}`), handler))
	req.True(dispatch(context.Background(), log,
		[]byte(`{"origin":"a","target":"room:1","frame":{"event":"message:new","data":{}}}`), handler))
	req.Equal(1, calls)
}

func TestMemoryBroadcaster_EveryListenerReceives(t *testing.T) {
	req := require.New(t)
	b := NewMemoryBroadcaster(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []string
	)
	for _, name := range []string{"node-a", "node-b"} {
		go func(name string) {
			_ = b.Listen(ctx, func(_ context.Context, p event.Packet) {
				mu.Lock()
				defer mu.Unlock()
				received = append(received, name+"/"+string(p.Target))
			})
		}(name)
	}
	req.Eventually(func() bool { return b.Listeners() == 2 }, time.Second, 5*time.Millisecond)

	// When a packet is published
	req.NoError(b.Publish(ctx, event.Packet{
		Origin: "node-a",
		Target: domain.UserTarget("bob"),
		Frame:  event.Frame{Event: event.UserOnline, Data: []byte(`{"userId":"alice"}`)},
	}))

	// Then both listeners see it
	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	req.ElementsMatch([]string{"node-a/user:bob", "node-b/user:bob"}, received)
	mu.Unlock()

	// When the context ends, listeners are removed
	cancel()
	req.Eventually(func() bool { return b.Listeners() == 0 }, time.Second, 5*time.Millisecond)
}
