package domain

import "time"

// LastSeen is the last presence transition persisted for a user.
type LastSeen struct {
	Status Status    `json:"status"`
	At     time.Time `json:"lastSeen"`
}

// PresenceRecord answers a presence lookup. LastSeen is nil for a user that
// never connected.
type PresenceRecord struct {
	UserID   UserID     `json:"userId"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}
