package runtime

import (
	"chat-realtime/domain"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"
)

const registryShards = 32

type Set[T comparable] map[T]struct{}

type registryShard struct {
	mu    sync.Mutex
	users map[domain.UserID]Set[domain.ConnectionID]
}

// Registry maps a user to its set of live connections on this process.
// A user is present iff it has at least one connection. Users are spread over
// shards by hash, each shard has its own lock, so operations on one user are
// linearizable without a global lock.
type Registry struct {
	shards [registryShards]*registryShard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{users: make(map[domain.UserID]Set[domain.ConnectionID])}
	}
	return r
}

func (r *Registry) shard(userID domain.UserID) *registryShard {
	return r.shards[xxhash.Sum64String(string(userID))%registryShards]
}

// Register adds connID to the user's connections.
// FirstConnection is returned when the set was empty beforehand.
func (r *Registry) Register(userID domain.UserID, connID domain.ConnectionID) domain.Transition {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[userID]
	if !ok {
		conns = make(Set[domain.ConnectionID])
		s.users[userID] = conns
	}
	if _, exists := conns[connID]; exists {
		return domain.AdditionalConnection
	}
	conns[connID] = struct{}{}
	if len(conns) == 1 {
		return domain.FirstConnection
	}
	return domain.AdditionalConnection
}

// Unregister removes connID. LastConnection is returned when the resulting set
// is empty. Removing an unknown connection is a no-op reported as Untracked.
func (r *Registry) Unregister(userID domain.UserID, connID domain.ConnectionID) domain.Transition {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[userID]
	if !ok {
		return domain.Untracked
	}
	if _, exists := conns[connID]; !exists {
		return domain.Untracked
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.users, userID)
		return domain.LastConnection
	}
	return domain.StillConnected
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users[userID]) > 0
}

func (r *Registry) Connections(userID domain.UserID) []domain.ConnectionID {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Keys(s.users[userID])
}

// OnlineUsers is a point-in-time snapshot across shards.
func (r *Registry) OnlineUsers() []domain.UserID {
	var users []domain.UserID
	for _, s := range r.shards {
		s.mu.Lock()
		users = append(users, lo.Keys(s.users)...)
		s.mu.Unlock()
	}
	return users
}
