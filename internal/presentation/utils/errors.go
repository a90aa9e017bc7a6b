package utils

import (
	"net/http"

	"github.com/hilthontt/lobby/internal/infrastructure/json"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
)

// RespondError writes err to the client and logs it when it is a server
// side failure.
func RespondError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	if status := json.StatusFor(err); status >= http.StatusInternalServerError {
		logger.Error(logging.RequestResponse, logging.ExternalService, "request failed", map[logging.ExtraKey]any{
			logging.Method:       r.Method,
			logging.Path:         r.URL.Path,
			logging.StatusCode:   status,
			logging.ErrorMessage: err.Error(),
		})
	}
	json.WriteDomainError(w, err)
}
