package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"webforge/internal/domain"
	"webforge/internal/httputil"
)

// PathParam reads a required path value. On failure it writes a 400 and returns false.
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return "", false
	}
	return value, true
}

// PathInt reads a required positive integer path value
func PathInt(w http.ResponseWriter, r *http.Request, name, label string) (int, bool) {
	raw, ok := PathParam(w, r, name, label)
	if !ok {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, label+" must be a positive integer",
			map[string]interface{}{"code": domain.Code(domain.ErrValidation)})
		return 0, false
	}
	return value, true
}

// badRequest reports an unreadable request body
func badRequest(w http.ResponseWriter, err error) {
	httputil.RespondErrorWithExtras(w, http.StatusBadRequest, err.Error(),
		map[string]interface{}{"code": domain.Code(domain.ErrValidation)})
}

// handleError converts domain errors to HTTP responses and logs server faults
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if domain.StatusCode(err) >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	httputil.RespondDomainError(w, err)
}
