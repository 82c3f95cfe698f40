package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTypingTimeout is how long a typing indicator survives without a new signal.
const DefaultTypingTimeout = 3 * time.Second

type typingKey struct {
	chatID domain.ChatID
	userID domain.UserID
}

func (k typingKey) String() string { return string(k.chatID) + "\x00" + string(k.userID) }

type typingState struct {
	timer      *time.Timer
	generation uint64
}

// TypingCoordinator tracks who is typing where. Each (chat, user) pair has at
// most one pending auto-stop: a new start signal replaces the previous timer
// and bumps the generation, so a stale timer that already fired finds a newer
// generation and does nothing.
//
// Transitions for one pair are serialized by a keyed mutex held across the
// publish, so false can never overtake the true it follows.
type TypingCoordinator struct {
	log        *slog.Logger
	bus        contract.IFanoutBus
	timeout    time.Duration
	keys       *keyedMutex
	mu         sync.Mutex
	states     map[typingKey]*typingState
	generation uint64
}

func NewTypingCoordinator(log *slog.Logger, bus contract.IFanoutBus, timeout time.Duration) *TypingCoordinator {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingCoordinator{
		log:     log,
		bus:     bus,
		timeout: timeout,
		keys:    newKeyedMutex(),
		states:  make(map[typingKey]*typingState),
	}
}

// Start records a typing signal. Only the NotTyping -> Typing transition is
// published, later signals just push the deadline back.
func (t *TypingCoordinator) Start(ctx context.Context, chatID domain.ChatID, userID domain.UserID) {
	key := typingKey{chatID: chatID, userID: userID}
	unlock := t.keys.Lock(key.String())
	defer unlock()

	t.mu.Lock()
	state, typing := t.states[key]
	if typing {
		state.timer.Stop()
	} else {
		state = &typingState{}
		t.states[key] = state
	}
	t.generation++
	generation := t.generation
	state.generation = generation
	state.timer = time.AfterFunc(t.timeout, func() { t.expire(key, generation) })
	t.mu.Unlock()

	if !typing {
		t.publish(ctx, key, true)
	}
}

// Stop ends typing immediately and cancels the pending auto-stop.
// Stopping a pair that is not typing is a no-op.
func (t *TypingCoordinator) Stop(ctx context.Context, chatID domain.ChatID, userID domain.UserID) {
	key := typingKey{chatID: chatID, userID: userID}
	unlock := t.keys.Lock(key.String())
	defer unlock()

	if t.remove(key, 0) {
		t.publish(ctx, key, false)
	}
}

// StopUser ends every typing state held by userID, used when its last connection closes.
func (t *TypingCoordinator) StopUser(ctx context.Context, userID domain.UserID) {
	t.mu.Lock()
	var chats []domain.ChatID
	for key := range t.states {
		if key.userID == userID {
			chats = append(chats, key.chatID)
		}
	}
	t.mu.Unlock()

	for _, chatID := range chats {
		t.Stop(ctx, chatID, userID)
	}
}

func (t *TypingCoordinator) IsTyping(chatID domain.ChatID, userID domain.UserID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.states[typingKey{chatID: chatID, userID: userID}]
	return ok
}

func (t *TypingCoordinator) expire(key typingKey, generation uint64) {
	unlock := t.keys.Lock(key.String())
	defer unlock()

	if t.remove(key, generation) {
		t.log.Debug("Typing expired", "chat_id", key.chatID, "user_id", key.userID)
		t.publish(context.Background(), key, false)
	}
}

// remove deletes the state of key. A non-zero generation must match the
// current one, which filters out stale timers.
func (t *TypingCoordinator) remove(key typingKey, generation uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[key]
	if !ok {
		return false
	}
	if generation != 0 && state.generation != generation {
		return false
	}
	state.timer.Stop()
	delete(t.states, key)
	return true
}

func (t *TypingCoordinator) publish(ctx context.Context, key typingKey, isTyping bool) {
	t.bus.Publish(ctx,
		domain.RoomTarget(key.chatID),
		event.Typing{UserID: key.userID, ChatID: key.chatID, IsTyping: isTyping},
		key.userID,
	)
}
