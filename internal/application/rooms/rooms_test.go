package rooms

import (
	"context"
	"testing"
	"time"

	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/events"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/persistence/store"
	"github.com/hilthontt/lobby/internal/persistence/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRegistry() (Registry, *store.Memory, *storetest.Clock) {
	clk := storetest.NewClock(t0)
	s := store.NewMemory(clk.Now)
	return NewRegistry(s, domain.Tenant("app"), events.NewNopPublisher(), logging.NewNop()), s, clk
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newRegistry()

	room, err := reg.CreateRoom(ctx, "  alpha ")
	require.NoError(t, err)
	assert.Equal(t, "alpha", room.Name)
	assert.Equal(t, t0, room.CreatedAt)
	assert.Equal(t, t0, room.LastActivity)

	got, err := reg.GetRoom(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, room, got)
}

func TestCreateRoomUpsertKeepsChildren(t *testing.T) {
	ctx := context.Background()
	reg, s, clk := newRegistry()
	path := domain.Tenant("app").Room("alpha")

	_, err := reg.CreateRoom(ctx, "alpha")
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, path.Member("u1"), store.Fields{domain.FieldNickname: "ann"}))

	clk.Advance(time.Minute)
	room, err := reg.CreateRoom(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), room.LastActivity)

	members, err := s.List(ctx, path.Members())
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestCreateRoomRejectsInvalidNames(t *testing.T) {
	reg, s, _ := newRegistry()

	for _, name := range []string{"", "  ", "a/b", ".", "..", string(make([]byte, 65))} {
		_, err := reg.CreateRoom(context.Background(), name)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "name %q", name)
	}
	assert.Equal(t, 0, s.Len())
}

func TestGetRoomNotFound(t *testing.T) {
	reg, _, _ := newRegistry()

	_, err := reg.GetRoom(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListRoomsStreamsChanges(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newRegistry()

	_, err := reg.CreateRoom(ctx, "alpha")
	require.NoError(t, err)

	sub, err := reg.ListRooms(ctx)
	require.NoError(t, err)
	defer sub.Close()

	next := func(cond func([]domain.Room) bool) []domain.Room {
		deadline := time.After(2 * time.Second)
		for {
			select {
			case rooms, ok := <-sub.C():
				require.True(t, ok)
				if cond(rooms) {
					return rooms
				}
			case <-deadline:
				t.Fatal("no matching room snapshot")
				return nil
			}
		}
	}

	first := next(func(r []domain.Room) bool { return len(r) == 1 })
	assert.Equal(t, "alpha", first[0].Name)

	_, err = reg.CreateRoom(ctx, "beta")
	require.NoError(t, err)
	both := next(func(r []domain.Room) bool { return len(r) == 2 })
	assert.Equal(t, "beta", both[1].Name)

	all, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
