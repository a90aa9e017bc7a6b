// Package activity keeps a room's lastActivity fresh so the janitor does not
// treat it as abandoned.
package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/persistence/store"
)

type Clock interface {
	// Touch sets the room's lastActivity to the store's time. A missing room
	// is reported as domain.ErrRoomNotFound and is not recreated.
	Touch(ctx context.Context, roomID string) error
}

type clock struct {
	store  store.Store
	tenant domain.TenantPath
}

func NewClock(s store.Store, tenant domain.TenantPath) Clock {
	return &clock{store: s, tenant: tenant}
}

// TouchOp is the update Touch performs, for callers batching it with other
// writes.
func TouchOp(room domain.RoomPath) store.Op {
	return store.UpdateOp(room.DocumentPath, store.Fields{
		domain.FieldLastActivity: store.ServerTimestamp,
	})
}

func (c *clock) Touch(ctx context.Context, roomID string) error {
	name, err := domain.ParseKey(roomID)
	if err != nil {
		return err
	}

	op := TouchOp(c.tenant.Room(name))
	err = c.store.Update(ctx, op.Path, op.Fields)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("touch %s: %w", name, domain.ErrRoomNotFound)
	}
	if err != nil {
		return fmt.Errorf("touch %s: %w", name, err)
	}
	return nil
}
