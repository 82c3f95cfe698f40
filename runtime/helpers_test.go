package runtime

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"context"
	"encoding/json"
	"sync"
	"time"
)

// recordingSink keeps every frame it accepts.
type recordingSink struct {
	mu     sync.Mutex
	frames []event.Frame
	closed bool
}

func (s *recordingSink) Consume(_ context.Context, f event.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrConnectionClosed
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *recordingSink) events() []event.Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]event.Name, 0, len(s.frames))
	for _, f := range s.frames {
		names = append(names, f.Event)
	}
	return names
}

func (s *recordingSink) presence() []event.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Presence
	for _, f := range s.frames {
		if f.Event != event.UserOnline && f.Event != event.UserOffline {
			continue
		}
		var p event.Presence
		if err := json.Unmarshal(f.Data, &p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func (s *recordingSink) typing() []event.Typing {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Typing
	for _, f := range s.frames {
		if f.Event != event.UserTyping {
			continue
		}
		var t event.Typing
		if err := json.Unmarshal(f.Data, &t); err == nil {
			out = append(out, t)
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

// memStore is a membership store backed by a chat -> members map.
type memStore struct {
	mu    sync.Mutex
	chats map[domain.ChatID][]domain.UserID
	err   error
}

func newMemStore(chats map[domain.ChatID][]domain.UserID) *memStore {
	return &memStore{chats: chats}
}

func (m *memStore) ChatsOf(_ context.Context, userID domain.UserID) ([]domain.ChatID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.ChatID
	for chatID, members := range m.chats {
		for _, member := range members {
			if member == userID {
				out = append(out, chatID)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) MembersOf(_ context.Context, chatID domain.ChatID) ([]domain.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.UserID(nil), m.chats[chatID]...), nil
}

func (m *memStore) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// memLastSeen records every persisted transition.
type memLastSeen struct {
	mu      sync.Mutex
	history []domain.LastSeen
	latest  map[domain.UserID]domain.LastSeen
	err     error
}

func newMemLastSeen() *memLastSeen {
	return &memLastSeen{latest: make(map[domain.UserID]domain.LastSeen)}
}

func (m *memLastSeen) SaveLastSeen(_ context.Context, userID domain.UserID, status domain.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	seen := domain.LastSeen{Status: status, At: at}
	m.history = append(m.history, seen)
	m.latest[userID] = seen
	return nil
}

func (m *memLastSeen) LastSeen(_ context.Context, userID domain.UserID) (domain.LastSeen, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.LastSeen{}, false, m.err
	}
	seen, ok := m.latest[userID]
	return seen, ok, nil
}

func (m *memLastSeen) statuses() []domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Status, 0, len(m.history))
	for _, seen := range m.history {
		out = append(out, seen.Status)
	}
	return out
}

func (m *memLastSeen) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
