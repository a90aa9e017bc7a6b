package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantPaths(t *testing.T) {
	tenant := Tenant("app-1")
	room := tenant.Room("alpha")

	assert.Equal(t, "artifacts/app-1/public/data/rooms", tenant.Rooms().String())
	assert.Equal(t, "artifacts/app-1/public/data/rooms/alpha", room.String())
	assert.Equal(t, "artifacts/app-1/public/data/rooms/alpha/members", room.Members().String())
	assert.Equal(t, "artifacts/app-1/public/data/rooms/alpha/messages/m1", room.Message("m1").String())
	assert.Equal(t, "alpha", room.Name())
	assert.Equal(t, tenant.Rooms().String(), room.Parent().String())
	assert.Equal(t, "u1", room.Member("u1").Key())
}

func TestDocPathsDoNotShareBackingArrays(t *testing.T) {
	rooms := Tenant("app-1").Rooms()
	a := rooms.Doc("a")
	b := rooms.Doc("b")

	assert.Equal(t, "a", a.Key())
	assert.Equal(t, "b", b.Key())
	assert.Equal(t, "artifacts/app-1/public/data/rooms/a/members", a.Collection("members").String())
}

func TestDocumentPathContains(t *testing.T) {
	room := Tenant("t").Room("alpha")

	assert.True(t, room.Contains(room.String()))
	assert.True(t, room.Contains(room.Member("u1").String()))
	assert.False(t, room.Contains(Tenant("t").Room("alphabet").String()))
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey("  lobby ")
	require.NoError(t, err)
	assert.Equal(t, "lobby", key)

	for _, bad := range []string{"", "   ", ".", "..", "a/b"} {
		_, err := ParseKey(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", bad)
		assert.ErrorIs(t, err, ErrInvalidInput, "key %q", bad)
	}
}

func TestNewRoomName(t *testing.T) {
	name, err := NewRoomName("  beta ")
	require.NoError(t, err)
	assert.Equal(t, "beta", name)

	_, err = NewRoomName("a/b")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewRoomName("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRoomIsStale(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	room := Room{Name: "beta", CreatedAt: t0, LastActivity: t0}

	assert.False(t, room.IsStale(t0.Add(10*time.Minute), 15*time.Minute))
	assert.True(t, room.IsStale(t0.Add(15*time.Minute), 15*time.Minute))
	assert.True(t, room.IsStale(t0.Add(16*time.Minute), 15*time.Minute))
	assert.False(t, room.IsStale(t0.Add(15*time.Minute-time.Second), 15*time.Minute))
	assert.True(t, Room{}.IsStale(t0, 15*time.Minute), "a room without activity is stale")
}

func TestUnavailableWrapping(t *testing.T) {
	assert.Nil(t, Unavailable("put", nil))
	assert.ErrorIs(t, Unavailable("put", assert.AnError), ErrStoreUnavailable)
	assert.ErrorIs(t, Unavailable("put", assert.AnError), assert.AnError)
	assert.Equal(t, ErrRoomNotFound, Unavailable("get", ErrRoomNotFound))
}
