// Package ws streams store subscriptions to browser clients. Every frame
// carries the full current result set, so a client that misses a frame
// only needs the next one.
package ws

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/persistence/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// NewUpgrader accepts same-origin requests and those from allowedOrigins.
// A "*" entry accepts every origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
}

// Stream writes every value from sub to conn as an event frame until the
// client disconnects, ctx is done or the subscription ends. It closes both
// sub and conn before returning.
func Stream[T any](ctx context.Context, conn *websocket.Conn, sub *store.Subscription[T], event, roomID string, logger logging.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := newConnWrapper(conn)
	defer func() {
		sub.Close()
		_ = c.Close()
	}()

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	extra := map[logging.ExtraKey]any{
		logging.RoomID: roomID,
		"event":        event,
	}

	for {
		select {
		case <-ctx.Done():
			c.CloseNormal("")
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				return
			}
		case v, ok := <-sub.C():
			if !ok {
				if err := sub.Err(); err != nil {
					extra[logging.ErrorMessage] = err.Error()
					logger.Warn(logging.Store, logging.Subscribe, "subscription ended", extra)
					_ = c.WriteJSON(NewStreamError(roomID, "stream interrupted", true))
				}
				c.CloseNormal("subscription ended")
				return
			}
			if err := c.WriteJSON(NewSnapshot(event, roomID, v)); err != nil {
				extra[logging.ErrorMessage] = err.Error()
				logger.Debug(logging.Store, logging.Subscribe, "websocket write failed", extra)
				return
			}
		}
	}
}

// readPump discards client frames and cancels the stream once the client
// goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
