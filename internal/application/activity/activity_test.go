package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/persistence/store"
	"github.com/hilthontt/lobby/internal/persistence/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTouchRefreshesLastActivity(t *testing.T) {
	ctx := context.Background()
	clk := storetest.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s := store.NewMemory(clk.Now)
	tenant := domain.Tenant("app")
	room := tenant.Room("alpha")

	require.NoError(t, s.Put(ctx, room.DocumentPath, store.Fields{
		domain.FieldName:         "alpha",
		domain.FieldCreatedAt:    store.ServerTimestamp,
		domain.FieldLastActivity: store.ServerTimestamp,
	}))
	created := clk.Now()

	clk.Advance(5 * time.Minute)
	require.NoError(t, NewClock(s, tenant).Touch(ctx, "alpha"))

	doc, err := s.Get(ctx, room.DocumentPath)
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), doc.Time(domain.FieldLastActivity))
	assert.Equal(t, created, doc.Time(domain.FieldCreatedAt))
	assert.Equal(t, "alpha", doc.String(domain.FieldName))
}

func TestTouchMissingRoom(t *testing.T) {
	s := store.NewMemory(nil)

	err := NewClock(s, domain.Tenant("app")).Touch(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestTouchInvalidRoom(t *testing.T) {
	err := NewClock(store.NewMemory(nil), domain.Tenant("app")).Touch(context.Background(), "a/b")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTouchStoreUnavailable(t *testing.T) {
	s := storetest.NewFaulty(store.NewMemory(nil))
	s.SetFault(func(op, path string) error {
		return domain.Unavailable(op, errors.New("connection reset"))
	})

	err := NewClock(s, domain.Tenant("app")).Touch(context.Background(), "alpha")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
