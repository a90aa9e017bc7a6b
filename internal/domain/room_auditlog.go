package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RoomEventType string

const (
	EventRoomCreated     RoomEventType = "room_created"
	EventRoomDeleted     RoomEventType = "room_deleted"
	EventRoomExpired     RoomEventType = "room_expired"
	EventOrphanReclaimed RoomEventType = "orphan_reclaimed"
	EventMemberJoined    RoomEventType = "member_joined"
	EventMemberLeft      RoomEventType = "member_left"
)

// Reasons attached to room deletions.
const (
	ReasonLastMemberLeft = "last_member_left"
	ReasonStale          = "stale"
	ReasonOrphaned       = "orphaned"
)

type RoomAuditLog struct {
	ID        string         `bson:"_id" json:"id"`
	Tenant    string         `bson:"tenant" json:"tenant"`
	RoomID    string         `bson:"room_id" json:"roomId"`
	EventType RoomEventType  `bson:"event_type" json:"eventType"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type RoomAuditRepository interface {
	Log(ctx context.Context, log *RoomAuditLog) error
	GetByRoomID(ctx context.Context, tenant, roomID string, limit int) ([]RoomAuditLog, error)
	GetByEventType(ctx context.Context, eventType RoomEventType, from, to time.Time) ([]RoomAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}

func newAuditLog(tenant, roomID string, eventType RoomEventType, at time.Time, metadata map[string]any) *RoomAuditLog {
	if at.IsZero() {
		at = time.Now()
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		Tenant:    tenant,
		RoomID:    roomID,
		EventType: eventType,
		Timestamp: at,
		Metadata:  metadata,
	}
}

func NewRoomCreatedLog(tenant, roomID string, at time.Time) *RoomAuditLog {
	return newAuditLog(tenant, roomID, EventRoomCreated, at, nil)
}

func NewRoomDeletedLog(tenant, roomID, reason string, at time.Time) *RoomAuditLog {
	eventType := EventRoomDeleted
	switch reason {
	case ReasonStale:
		eventType = EventRoomExpired
	case ReasonOrphaned:
		eventType = EventOrphanReclaimed
	}
	return newAuditLog(tenant, roomID, eventType, at, map[string]any{
		"reason": reason,
	})
}

func NewMemberJoinedLog(tenant, roomID, memberID string, at time.Time) *RoomAuditLog {
	return newAuditLog(tenant, roomID, EventMemberJoined, at, map[string]any{
		"member_id": memberID,
	})
}

func NewMemberLeftLog(tenant, roomID, memberID string, roomDeleted bool, at time.Time) *RoomAuditLog {
	return newAuditLog(tenant, roomID, EventMemberLeft, at, map[string]any{
		"member_id":    memberID,
		"room_deleted": roomDeleted,
	})
}
