package messages

import (
	"context"
	"testing"
	"time"

	"github.com/hilthontt/lobby/internal/application/activity"
	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/events"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/persistence/store"
	"github.com/hilthontt/lobby/internal/persistence/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (Service, *store.Memory, *storetest.Clock) {
	t.Helper()
	clk := storetest.NewClock(t0)
	s := store.NewMemory(clk.Now)
	tenant := domain.Tenant("app")

	require.NoError(t, s.Put(context.Background(), tenant.Room("alpha").DocumentPath, store.Fields{
		domain.FieldName:         "alpha",
		domain.FieldLastActivity: store.ServerTimestamp,
	}))

	svc := NewService(s, tenant, activity.NewClock(s, tenant), events.NewNopPublisher(), logging.NewNop())
	return svc, s, clk
}

func TestSendTouchesRoomAndStoresMessage(t *testing.T) {
	ctx := context.Background()
	svc, s, clk := newService(t)
	clk.Advance(3 * time.Minute)

	msg, err := svc.Send(ctx, "alpha", "u1", "ann", "  hello  ")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "u1", msg.SenderID)
	assert.Equal(t, "ann", msg.SenderName)
	assert.Equal(t, clk.Now(), msg.Timestamp)

	room, err := s.Get(ctx, domain.Tenant("app").Room("alpha").DocumentPath)
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), room.Time(domain.FieldLastActivity))
}

func TestSendToMissingRoom(t *testing.T) {
	svc, s, _ := newService(t)

	_, err := svc.Send(context.Background(), "ghost", "u1", "ann", "hello")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Equal(t, 1, s.Len())
}

func TestSendRejectsBlankText(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Send(context.Background(), "alpha", "u1", "ann", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWatchOrdersByTimestamp(t *testing.T) {
	ctx := context.Background()
	svc, _, clk := newService(t)

	_, err := svc.Send(ctx, "alpha", "u1", "ann", "first")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = svc.Send(ctx, "alpha", "u2", "bob", "second")
	require.NoError(t, err)

	sub, err := svc.Watch(ctx, "alpha")
	require.NoError(t, err)
	defer sub.Close()

	select {
	case msgs, ok := <-sub.C():
		require.True(t, ok)
		require.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Text)
		assert.Equal(t, "second", msgs[1].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}
}

func TestSortPutsUnstampedFirst(t *testing.T) {
	msgs := []domain.Message{
		{ID: "b", Timestamp: t0.Add(time.Second)},
		{ID: "a", Timestamp: t0},
		{ID: "pending"},
	}
	Sort(msgs)

	assert.Equal(t, []string{"pending", "a", "b"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}
