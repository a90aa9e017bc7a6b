package api

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hilthontt/lobby/internal/application/activity"
	"github.com/hilthontt/lobby/internal/application/janitor"
	"github.com/hilthontt/lobby/internal/application/membership"
	"github.com/hilthontt/lobby/internal/application/messages"
	"github.com/hilthontt/lobby/internal/application/rooms"
	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/configs"
	"github.com/hilthontt/lobby/internal/infrastructure/events"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/metrics"
	"github.com/hilthontt/lobby/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/lobby/internal/infrastructure/ws"
	"github.com/hilthontt/lobby/internal/persistence/store"
	"github.com/hilthontt/lobby/internal/persistence/store/storetest"
	healthHandler "github.com/hilthontt/lobby/internal/presentation/handler/health"
	janitorHandler "github.com/hilthontt/lobby/internal/presentation/handler/janitor"
	membersHandler "github.com/hilthontt/lobby/internal/presentation/handler/members"
	messagesHandler "github.com/hilthontt/lobby/internal/presentation/handler/messages"
	roomsHandler "github.com/hilthontt/lobby/internal/presentation/handler/rooms"
	"github.com/hilthontt/lobby/internal/presentation/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	clock  *storetest.Clock
	memory *store.Memory
}

func newTestServer(t *testing.T, burst int) *testServer {
	t.Helper()

	clock := storetest.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	mem := store.NewMemory(clock.Now)
	tenant := domain.Tenant("app")
	logger := logging.NewNop()
	publisher := events.NewNopPublisher()
	m := metrics.New()
	upgrader := ws.NewUpgrader(nil)

	registry := rooms.NewRegistry(mem, tenant, publisher, logger)
	tracker := membership.NewTracker(mem, tenant, publisher, m, logger)
	service := messages.NewService(mem, tenant, activity.NewClock(mem, tenant), publisher, logger)
	sweep := janitor.NewSweep(mem, janitor.Options{
		Tenant:     tenant.ID(),
		StaleAfter: 15 * time.Minute,
		Now:        clock.Now,
		Recorder:   m,
	}, logger)
	job := janitor.NewJob(sweep, janitor.JobOptions{Interval: time.Minute, Recorder: m}, logger)

	limiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: 1,
		MaxBurst:         burst,
		Now:              func() time.Time { return time.Unix(0, 0) },
	})

	app := NewApplication(configs.Config{}, Handlers{
		Rooms:    roomsHandler.NewHandler(registry, upgrader, logger),
		Members:  membersHandler.NewHandler(tracker, false, logger),
		Messages: messagesHandler.NewHandler(service, upgrader, false, logger),
		Health: healthHandler.NewHandler(map[string]healthHandler.Check{
			"store": func(ctx context.Context) error {
				_, err := mem.Children(ctx, tenant.Rooms())
				return err
			},
		}),
		Janitor: janitorHandler.NewHandler(job, logger),
	}, logger, limiter, m)

	srv := httptest.NewServer(app.Mount())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, clock: clock, memory: mem}
}

func (s *testServer) do(t *testing.T, method, path, memberID string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := stdjson.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if memberID != "" {
		req.Header.Set(utils.HeaderMemberID, memberID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, 100)

	resp, body := srv.do(t, http.MethodPost, "/api/rooms", "", map[string]string{"name": "alpha"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var room domain.Room
	require.NoError(t, stdjson.Unmarshal(body, &room))
	assert.Equal(t, "alpha", room.Name)

	resp, _ = srv.do(t, http.MethodGet, "/api/rooms/alpha", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = srv.do(t, http.MethodPost, "/api/rooms/alpha/members", "u1", map[string]string{"nickname": "ann"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = srv.do(t, http.MethodPost, "/api/rooms/alpha/messages", "u1", map[string]string{"text": "hi", "senderName": "ann"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var msg domain.Message
	require.NoError(t, stdjson.Unmarshal(body, &msg))
	assert.Equal(t, "u1", msg.SenderID)

	resp, body = srv.do(t, http.MethodGet, "/api/rooms/alpha/members", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var members []domain.Member
	require.NoError(t, stdjson.Unmarshal(body, &members))
	assert.Len(t, members, 1)

	resp, body = srv.do(t, http.MethodDelete, "/api/rooms/alpha/members/me", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var left membership.LeaveResult
	require.NoError(t, stdjson.Unmarshal(body, &left))
	assert.True(t, left.RoomDeleted)

	resp, _ = srv.do(t, http.MethodGet, "/api/rooms/alpha", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, srv.memory.Len())
}

func TestJoinMintsMemberCookie(t *testing.T) {
	srv := newTestServer(t, 100)
	srv.do(t, http.MethodPost, "/api/rooms", "", map[string]string{"name": "alpha"})

	resp, _ := srv.do(t, http.MethodPost, "/api/rooms/alpha/members", "", map[string]string{"nickname": "ann"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == utils.CookieNameMemberID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, 100)

	resp, _ := srv.do(t, http.MethodPost, "/api/rooms", "", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/rooms", "", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/rooms/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/rooms/missing/members", "u1", map[string]string{"nickname": "ann"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/rooms/missing/messages", "u1", map[string]string{"text": "hi", "senderName": "ann"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodDelete, "/api/rooms/alpha/members/me", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, srv.memory.Close(context.Background()))
	resp, _ = srv.do(t, http.MethodGet, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLeaveBeaconAlwaysSucceeds(t *testing.T) {
	srv := newTestServer(t, 100)

	resp, _ := srv.do(t, http.MethodPost, "/api/rooms/nowhere/leave", "u1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/rooms/nowhere/leave", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// a leave for a room that never existed deletes nothing
	_, body := srv.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Contains(t, string(body), "lobby_rooms_deleted_on_leave_total 0")
}

func TestRepeatedLeaveReportsOneDeletion(t *testing.T) {
	srv := newTestServer(t, 100)
	srv.do(t, http.MethodPost, "/api/rooms", "", map[string]string{"name": "alpha"})
	resp, _ := srv.do(t, http.MethodPost, "/api/rooms/alpha/members", "u1", map[string]string{"nickname": "ann"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := srv.do(t, http.MethodDelete, "/api/rooms/alpha/members/me", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var left membership.LeaveResult
	require.NoError(t, stdjson.Unmarshal(body, &left))
	assert.True(t, left.RoomDeleted)

	// the unload beacon often follows the explicit leave
	resp, _ = srv.do(t, http.MethodPost, "/api/rooms/alpha/leave", "u1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = srv.do(t, http.MethodDelete, "/api/rooms/alpha/members/me", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, stdjson.Unmarshal(body, &left))
	assert.False(t, left.RoomDeleted)

	_, body = srv.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Contains(t, string(body), "lobby_rooms_deleted_on_leave_total 1")
}

func TestSwaggerDocument(t *testing.T) {
	srv := newTestServer(t, 100)

	resp, body := srv.do(t, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Swagger string                    `json:"swagger"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, stdjson.Unmarshal(body, &doc))
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Contains(t, doc.Paths, "/api/rooms")
	assert.Contains(t, doc.Paths["/api/rooms/{roomId}/members/me"], "delete")
	assert.Contains(t, doc.Paths["/internal/janitor/run"], "post")
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, 2)

	for range 2 {
		resp, _ := srv.do(t, http.MethodGet, "/api/rooms", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, _ := srv.do(t, http.MethodGet, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	// probes are not rate limited
	resp, _ = srv.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJanitorRunEndpoint(t *testing.T) {
	srv := newTestServer(t, 100)
	srv.do(t, http.MethodPost, "/api/rooms", "", map[string]string{"name": "beta"})
	srv.clock.Advance(16 * time.Minute)

	resp, body := srv.do(t, http.MethodPost, "/internal/janitor/run", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var report struct {
		Outcome   string `json:"outcome"`
		Reclaimed int    `json:"reclaimed"`
	}
	require.NoError(t, stdjson.Unmarshal(body, &report))
	assert.Equal(t, metrics.OutcomeSuccess, report.Outcome)
	assert.Equal(t, 1, report.Reclaimed)

	resp, _ = srv.do(t, http.MethodGet, "/api/rooms/beta", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, 100)
	srv.do(t, http.MethodGet, "/api/rooms", "", nil)

	resp, body := srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "lobby_http_request_duration_seconds_count")
	assert.Contains(t, string(body), `route="/api/rooms`)
}

func TestCorsPreflight(t *testing.T) {
	srv := newTestServer(t, 100)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://chat.example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://chat.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}
