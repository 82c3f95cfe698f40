//go:generate go run go.uber.org/mock/mockgen -source=presence.go -destination=../mocks/mock_presence.go -package=mocks
package repositories

import (
	"chat-realtime/domain"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IPresenceRepository interface {
	SaveLastSeen(ctx context.Context, userID domain.UserID, status domain.Status, at time.Time) error
	LastSeen(ctx context.Context, userID domain.UserID) (domain.LastSeen, bool, error)
}

// PresenceRepository keeps the last presence transition of every user:
//
//	presence:{user_id} -> {"status": ..., "lastSeen": ...}
//
// It shares the membership database, the key family does not overlap.
type PresenceRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPresenceRepository(db *badger.DB, log *slog.Logger) PresenceRepository {
	return PresenceRepository{db: db, log: log}
}

func presenceKey(userID domain.UserID) []byte {
	return []byte("presence:" + string(userID))
}

// SaveLastSeen overwrites the previous transition of the user.
func (p PresenceRepository) SaveLastSeen(ctx context.Context, userID domain.UserID, status domain.Status, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validID(string(userID)); err != nil {
		return err
	}
	data, err := json.Marshal(domain.LastSeen{Status: status, At: at.UTC()})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(presenceKey(userID), data)
	})
}

// LastSeen reports false when the user never connected.
func (p PresenceRepository) LastSeen(ctx context.Context, userID domain.UserID) (domain.LastSeen, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.LastSeen{}, false, err
	}
	var seen domain.LastSeen
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(presenceKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &seen)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.LastSeen{}, false, nil
	}
	if err != nil {
		return domain.LastSeen{}, false, err
	}
	return seen, true, nil
}
