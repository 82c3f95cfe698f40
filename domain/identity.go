// Package domain contains the core identifiers of the realtime subsystem.
// No runtime, network, or storage logic should be added here.
package domain

import "strings"

type UserID string

type ChatID string

type ConnectionID string

// Target is a fanout scope. A room target reaches every connection subscribed
// to a chat, a personal target reaches every connection of a single user.
type Target string

const (
	roomPrefix = "room:"
	userPrefix = "user:"
)

func RoomTarget(chatID ChatID) Target {
	return Target(roomPrefix + string(chatID))
}

func UserTarget(userID UserID) Target {
	return Target(userPrefix + string(userID))
}

// ChatID returns the chat behind a room target.
func (t Target) ChatID() (ChatID, bool) {
	id, ok := strings.CutPrefix(string(t), roomPrefix)
	return ChatID(id), ok && id != ""
}

// UserID returns the user behind a personal target.
func (t Target) UserID() (UserID, bool) {
	id, ok := strings.CutPrefix(string(t), userPrefix)
	return UserID(id), ok && id != ""
}

func (t Target) String() string { return string(t) }
