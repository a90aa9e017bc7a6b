package janitor

import (
	"context"
	"errors"
	"net/http"

	"github.com/hilthontt/lobby/internal/application/janitor"
	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/json"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/metrics"
	"github.com/hilthontt/lobby/internal/presentation/utils"
)

type Runner interface {
	RunOnce(ctx context.Context) (janitor.Report, bool, error)
}

type Handler struct {
	runner Runner
	logger logging.Logger
}

func NewHandler(runner Runner, logger logging.Logger) *Handler {
	return &Handler{runner: runner, logger: logger}
}

type failure struct {
	Room   string `json:"room"`
	Orphan bool   `json:"orphan,omitempty"`
	Error  string `json:"error"`
}

type runResponse struct {
	Outcome    string    `json:"outcome"`
	Selected   int       `json:"selected"`
	Reclaimed  int       `json:"reclaimed"`
	Refreshed  int       `json:"refreshed"`
	Orphans    int       `json:"orphans"`
	Failed     []failure `json:"failed,omitempty"`
	DurationMs int64     `json:"durationMs"`
}

// RunHandler performs one sweep for schedulers that trigger over HTTP.
// Partial failures still answer 200; the body lists the rooms left for the
// next run.
// @Summary      Run one sweep
// @Tags         janitor
// @Produce      json
// @Success      200 {object} runResponse
// @Failure      500 {object} json.ErrorResponse
// @Failure      503 {object} json.ErrorResponse
// @Router       /internal/janitor/run [post]
func (h *Handler) RunHandler(w http.ResponseWriter, r *http.Request) {
	report, ran, err := h.runner.RunOnce(r.Context())
	if err != nil && !errors.Is(err, domain.ErrPartialSweep) {
		utils.RespondError(w, r, h.logger, err)
		return
	}

	resp := runResponse{
		Outcome:    metrics.OutcomeSuccess,
		Selected:   report.Selected,
		Reclaimed:  report.Reclaimed,
		Refreshed:  report.Refreshed,
		Orphans:    report.Orphans,
		DurationMs: report.Duration.Milliseconds(),
	}
	switch {
	case !ran:
		resp.Outcome = metrics.OutcomeSkipped
	case err != nil:
		resp.Outcome = metrics.OutcomePartial
	}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, failure{Room: f.Room, Orphan: f.Orphan, Error: f.Err.Error()})
	}

	json.Write(w, http.StatusOK, resp)
}
