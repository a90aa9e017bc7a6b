package rooms

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/lobby/internal/application/rooms"
	"github.com/hilthontt/lobby/internal/infrastructure/json"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/ws"
	"github.com/hilthontt/lobby/internal/presentation/utils"
)

type Handler struct {
	registry rooms.Registry
	upgrader *websocket.Upgrader
	logger   logging.Logger
}

func NewHandler(registry rooms.Registry, upgrader *websocket.Upgrader, logger logging.Logger) *Handler {
	return &Handler{
		registry: registry,
		upgrader: upgrader,
		logger:   logger,
	}
}

// CreateRoomHandler godoc
// @Summary      Create a room
// @Description  Creates the room, or refreshes it when the name is already taken
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request body createRoomRequest true "Room name"
// @Success      201 {object} domain.Room
// @Failure      400 {object} json.ErrorResponse
// @Failure      503 {object} json.ErrorResponse
// @Router       /api/rooms [post]
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	room, err := h.registry.CreateRoom(r.Context(), req.Name)
	if err != nil {
		utils.RespondError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusCreated, room)
}

// ListRoomsHandler godoc
// @Summary      List rooms
// @Tags         rooms
// @Produce      json
// @Success      200 {array} domain.Room
// @Failure      503 {object} json.ErrorResponse
// @Router       /api/rooms [get]
func (h *Handler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.registry.List(r.Context())
	if err != nil {
		utils.RespondError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, list)
}

// GetRoomHandler godoc
// @Summary      Get room details
// @Tags         rooms
// @Produce      json
// @Param        roomId path string true "Room name"
// @Success      200 {object} domain.Room
// @Failure      404 {object} json.ErrorResponse
// @Router       /api/rooms/{roomId} [get]
func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, err := h.registry.GetRoom(r.Context(), chi.URLParam(r, "roomId"))
	if err != nil {
		utils.RespondError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, room)
}

// WatchRoomsHandler upgrades to a websocket that receives the full room
// list on every change.
// @Summary      Watch rooms via WebSocket
// @Description  Streams rooms.snapshot frames carrying the full room list
// @Tags         rooms
// @Success      101 "Switching Protocols"
// @Router       /api/rooms/watch [get]
func (h *Handler) WatchRoomsHandler(w http.ResponseWriter, r *http.Request) {
	sub, err := h.registry.ListRooms(r.Context())
	if err != nil {
		utils.RespondError(w, r, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.Warn(logging.RequestResponse, logging.Subscribe, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	ws.Stream(r.Context(), conn, sub, ws.RoomsSnapshotEvent, "", h.logger)
}
