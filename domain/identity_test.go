package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTarget_RoundTrip(t *testing.T) {
	req := require.New(t)

	chatID, ok := RoomTarget("c1").ChatID()
	req.True(ok)
	req.Equal(ChatID("c1"), chatID)

	userID, ok := UserTarget("u1").UserID()
	req.True(ok)
	req.Equal(UserID("u1"), userID)

	// A personal target is never mistaken for a room
	_, ok = UserTarget("u1").ChatID()
	req.False(ok)

	_, ok = Target("room:").ChatID()
	req.False(ok)
}
