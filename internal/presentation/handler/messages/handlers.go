package messages

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/lobby/internal/application/messages"
	"github.com/hilthontt/lobby/internal/infrastructure/json"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/ws"
	"github.com/hilthontt/lobby/internal/presentation/utils"
)

type Handler struct {
	service       messages.Service
	upgrader      *websocket.Upgrader
	secureCookies bool
	logger        logging.Logger
}

func NewHandler(service messages.Service, upgrader *websocket.Upgrader, secureCookies bool, logger logging.Logger) *Handler {
	return &Handler{
		service:       service,
		upgrader:      upgrader,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// SendMessageHandler godoc
// @Summary      Send a message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        roomId  path string             true "Room name"
// @Param        request body sendMessageRequest true "Message"
// @Success      201 {object} domain.Message
// @Failure      400 {object} json.ErrorResponse
// @Failure      404 {object} json.ErrorResponse
// @Failure      503 {object} json.ErrorResponse
// @Router       /api/rooms/{roomId}/messages [post]
func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	senderID := utils.EnsureMemberID(w, r, h.secureCookies)
	msg, err := h.service.Send(r.Context(), chi.URLParam(r, "roomId"), senderID, req.SenderName, req.Text)
	if err != nil {
		utils.RespondError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusCreated, msg)
}

// WatchMessagesHandler upgrades to a websocket that receives the room's
// messages, oldest first, on every change.
// @Summary      Watch messages via WebSocket
// @Description  Streams messages.snapshot frames carrying every message of the room
// @Tags         messages
// @Param        roomId path string true "Room name"
// @Success      101 "Switching Protocols"
// @Router       /api/rooms/{roomId}/messages/watch [get]
func (h *Handler) WatchMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	sub, err := h.service.Watch(r.Context(), roomID)
	if err != nil {
		utils.RespondError(w, r, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.Warn(logging.RequestResponse, logging.Subscribe, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	ws.Stream(r.Context(), conn, sub, ws.MessagesSnapshotEvent, roomID, h.logger)
}
