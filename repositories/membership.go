//go:generate go run go.uber.org/mock/mockgen -source=membership.go -destination=../mocks/mock_membership.go -package=mocks
package repositories

import (
	"chat-realtime/domain"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IMembershipRepository interface {
	AddMember(chatID domain.ChatID, userID domain.UserID) error
	RemoveMember(chatID domain.ChatID, userID domain.UserID) error
	ChatsOf(ctx context.Context, userID domain.UserID) ([]domain.ChatID, error)
	MembersOf(ctx context.Context, chatID domain.ChatID) ([]domain.UserID, error)
}

// MembershipRepository keeps chat membership in BadgerDB with a forward and a
// reverse index, both written in the same transaction:
//
//	chat:{chat_id}:member:{user_id} -> joined at (unix nano)
//	user:{user_id}:chat:{chat_id}   -> joined at (unix nano)
//
// Identifiers must not contain ':'.
type MembershipRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMembershipRepository(db *badger.DB, log *slog.Logger) MembershipRepository {
	return MembershipRepository{db: db, log: log}
}

func memberKey(chatID domain.ChatID, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("chat:%s:member:%s", chatID, userID))
}

func chatKey(userID domain.UserID, chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("user:%s:chat:%s", userID, chatID))
}

func validID(id string) error {
	if id == "" || strings.Contains(id, ":") {
		return fmt.Errorf("invalid identifier %q", id)
	}
	return nil
}

// AddMember is idempotent: re-adding a member refreshes its join time.
func (m MembershipRepository) AddMember(chatID domain.ChatID, userID domain.UserID) error {
	if err := validID(string(chatID)); err != nil {
		return err
	}
	if err := validID(string(userID)); err != nil {
		return err
	}
	joinedAt := make([]byte, 8)
	binary.BigEndian.PutUint64(joinedAt, uint64(time.Now().UnixNano()))
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(memberKey(chatID, userID), joinedAt); err != nil {
			return err
		}
		return txn.Set(chatKey(userID, chatID), joinedAt)
	})
}

func (m MembershipRepository) RemoveMember(chatID domain.ChatID, userID domain.UserID) error {
	if err := validID(string(chatID)); err != nil {
		return err
	}
	if err := validID(string(userID)); err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(memberKey(chatID, userID)); err != nil {
			return err
		}
		return txn.Delete(chatKey(userID, chatID))
	})
}

// ChatsOf lists the chats a user belongs to using a prefix scan on the reverse index.
func (m MembershipRepository) ChatsOf(ctx context.Context, userID domain.UserID) ([]domain.ChatID, error) {
	ids, err := m.scan(ctx, fmt.Sprintf("user:%s:chat:", userID))
	if err != nil {
		return nil, err
	}
	chats := make([]domain.ChatID, 0, len(ids))
	for _, id := range ids {
		chats = append(chats, domain.ChatID(id))
	}
	return chats, nil
}

// MembersOf lists the members of a chat using a prefix scan on the forward index.
func (m MembershipRepository) MembersOf(ctx context.Context, chatID domain.ChatID) ([]domain.UserID, error) {
	ids, err := m.scan(ctx, fmt.Sprintf("chat:%s:member:", chatID))
	if err != nil {
		return nil, err
	}
	members := make([]domain.UserID, 0, len(ids))
	for _, id := range ids {
		members = append(members, domain.UserID(id))
	}
	return members, nil
}

// scan returns the key suffixes found after prefix. Values are never read.
func (m MembershipRepository) scan(ctx context.Context, prefixStr string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Debug("Membership scan", "prefix", prefixStr, "found", len(ids))
	return ids, nil
}

// Entry is one membership row, used by the inspector tool.
type Entry struct {
	ChatID   domain.ChatID
	UserID   domain.UserID
	JoinedAt time.Time
}

// Entries lists every membership row of the forward index, optionally limited to one chat.
func (m MembershipRepository) Entries(chatID domain.ChatID) ([]Entry, error) {
	prefixStr := "chat:"
	if chatID != "" {
		prefixStr = fmt.Sprintf("chat:%s:member:", chatID)
	}
	var entries []Entry
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			parts := strings.Split(string(item.Key()), ":")
			if len(parts) != 4 {
				continue
			}
			entry := Entry{ChatID: domain.ChatID(parts[1]), UserID: domain.UserID(parts[3])}
			err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					entry.JoinedAt = time.Unix(0, int64(binary.BigEndian.Uint64(val))).UTC()
				}
				return nil
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}
