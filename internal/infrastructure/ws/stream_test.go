package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/persistence/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type   string            `json:"type"`
	RoomID string            `json:"roomId"`
	Data   []json.RawMessage `json:"data"`
}

func TestStreamDeliversSnapshots(t *testing.T) {
	mem := store.NewMemory(nil)
	rooms := domain.Tenant("app").Rooms()
	ctx := context.Background()
	require.NoError(t, mem.Put(ctx, rooms.Doc("alpha"), store.Fields{domain.FieldName: "alpha"}))

	upgrader := NewUpgrader(nil)
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sub, err := mem.Subscribe(r.Context(), rooms)
		if err != nil {
			_ = conn.Close()
			return
		}
		Stream(r.Context(), conn, sub, RoomsSnapshotEvent, "", logging.NewNop())
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	read := func() frame {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}

	first := read()
	assert.Equal(t, RoomsSnapshotEvent, first.Type)
	assert.Len(t, first.Data, 1)

	require.NoError(t, mem.Put(ctx, rooms.Doc("beta"), store.Fields{domain.FieldName: "beta"}))
	assert.Len(t, read().Data, 2)

	require.NoError(t, conn.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after client disconnect")
	}
}

func TestStreamReportsSubscriptionFailure(t *testing.T) {
	mem := store.NewMemory(nil)
	rooms := domain.Tenant("app").Rooms()

	upgrader := NewUpgrader([]string{"*"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sub, err := mem.Subscribe(r.Context(), rooms)
		if err != nil {
			_ = conn.Close()
			return
		}
		Stream(r.Context(), conn, sub, RoomsSnapshotEvent, "", logging.NewNop())
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var snapshot WSMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, RoomsSnapshotEvent, snapshot.Type)

	require.NoError(t, mem.Close(context.Background()))

	var failure WSMessage
	require.NoError(t, conn.ReadJSON(&failure))
	assert.Equal(t, StreamErrorEvent, failure.Type)
}

func TestUpgraderOrigins(t *testing.T) {
	upgrader := NewUpgrader([]string{"https://chat.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, upgrader.CheckOrigin(r))

	r.Header.Set("Origin", "https://chat.example.com")
	assert.True(t, upgrader.CheckOrigin(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, upgrader.CheckOrigin(r))
}
