package events

import (
	"context"

	"github.com/hilthontt/lobby/internal/domain"
)

// Publisher announces room lifecycle changes. Publishing is best effort:
// callers log failures and carry on.
type Publisher interface {
	RoomCreated(ctx context.Context, tenant string, room domain.Room) error
	RoomDeleted(ctx context.Context, tenant, roomID, reason string) error
	MemberJoined(ctx context.Context, tenant string, member domain.Member) error
	MemberLeft(ctx context.Context, tenant, roomID, memberID string, roomDeleted bool) error
	MessageSent(ctx context.Context, tenant string, message domain.Message) error
}

type nopPublisher struct{}

// NewNopPublisher returns a Publisher that drops every event.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) RoomCreated(context.Context, string, domain.Room) error         { return nil }
func (nopPublisher) RoomDeleted(context.Context, string, string, string) error      { return nil }
func (nopPublisher) MemberJoined(context.Context, string, domain.Member) error      { return nil }
func (nopPublisher) MemberLeft(context.Context, string, string, string, bool) error { return nil }
func (nopPublisher) MessageSent(context.Context, string, domain.Message) error      { return nil }
