package members

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/lobby/internal/application/membership"
	"github.com/hilthontt/lobby/internal/infrastructure/json"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/presentation/utils"
)

type Handler struct {
	tracker       membership.Tracker
	secureCookies bool
	logger        logging.Logger
}

func NewHandler(tracker membership.Tracker, secureCookies bool, logger logging.Logger) *Handler {
	return &Handler{
		tracker:       tracker,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// JoinHandler godoc
// @Summary      Join a room
// @Description  Records the caller as a member. The member id comes from the X-Member-Id header or the member_id cookie, which is issued when absent
// @Tags         members
// @Accept       json
// @Produce      json
// @Param        roomId  path string      true "Room name"
// @Param        request body joinRequest true "Nickname"
// @Success      200 {object} domain.Member
// @Failure      400 {object} json.ErrorResponse
// @Failure      404 {object} json.ErrorResponse
// @Failure      503 {object} json.ErrorResponse
// @Router       /api/rooms/{roomId}/members [post]
func (h *Handler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	memberID := utils.EnsureMemberID(w, r, h.secureCookies)
	member, err := h.tracker.Join(r.Context(), chi.URLParam(r, "roomId"), memberID, req.Nickname)
	if err != nil {
		utils.RespondError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, member)
}

// LeaveHandler godoc
// @Summary      Leave a room
// @Description  Removes the caller; the last member to leave deletes the room
// @Tags         members
// @Produce      json
// @Param        roomId path string true "Room name"
// @Success      200 {object} membership.LeaveResult
// @Failure      400 {object} json.ErrorResponse
// @Failure      503 {object} json.ErrorResponse
// @Router       /api/rooms/{roomId}/members/me [delete]
func (h *Handler) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	memberID := utils.GetMemberIDFromRequest(r)
	if memberID == "" {
		json.WriteBadRequestError(w, "missing member id")
		return
	}

	res, err := h.tracker.Leave(r.Context(), chi.URLParam(r, "roomId"), memberID)
	if err != nil {
		utils.RespondError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, res)
}

// LeaveBeaconHandler serves the leave a page sends while unloading. The
// caller never reads the response, so failures are only logged; the janitor
// reclaims whatever this misses.
// @Summary      Leave a room on page unload
// @Tags         members
// @Param        roomId path string true "Room name"
// @Success      204
// @Router       /api/rooms/{roomId}/leave [post]
func (h *Handler) LeaveBeaconHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	memberID := utils.GetMemberIDFromRequest(r)

	if memberID != "" {
		if _, err := h.tracker.Leave(r.Context(), roomID, memberID); err != nil {
			h.logger.Warn(logging.Membership, logging.Leave, "unload leave failed", map[logging.ExtraKey]any{
				logging.RoomID:       roomID,
				logging.MemberID:     memberID,
				logging.ErrorMessage: err.Error(),
			})
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMembersHandler godoc
// @Summary      List room members
// @Tags         members
// @Produce      json
// @Param        roomId path string true "Room name"
// @Success      200 {array} domain.Member
// @Failure      503 {object} json.ErrorResponse
// @Router       /api/rooms/{roomId}/members [get]
func (h *Handler) ListMembersHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.tracker.Members(r.Context(), chi.URLParam(r, "roomId"))
	if err != nil {
		utils.RespondError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, list)
}
