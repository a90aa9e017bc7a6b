package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomDeletedLogEventType(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, EventRoomDeleted, NewRoomDeletedLog("app", "a", ReasonLastMemberLeft, at).EventType)
	assert.Equal(t, EventRoomExpired, NewRoomDeletedLog("app", "a", ReasonStale, at).EventType)
	assert.Equal(t, EventOrphanReclaimed, NewRoomDeletedLog("app", "a", ReasonOrphaned, at).EventType)

	entry := NewMemberLeftLog("app", "a", "u1", true, time.Time{})
	assert.False(t, entry.Timestamp.IsZero())
	assert.Equal(t, true, entry.Metadata["room_deleted"])
	assert.NotEmpty(t, entry.ID)
}
