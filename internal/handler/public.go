package handler

import (
	"log/slog"
	"net/http"

	"webforge/internal/domain/services"
	"webforge/internal/httputil"
)

// PublicHandler serves published projects to anonymous readers
type PublicHandler struct {
	projectService services.ProjectService
	logger         *slog.Logger
}

// NewPublicHandler creates a new public handler
func NewPublicHandler(projectService services.ProjectService, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// ListPublished returns the gallery of published projects
// GET /api/published
func (h *PublicHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.projectService.ListPublished(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if summaries == nil {
		summaries = []services.PublicSummary{}
	}

	httputil.RespondJSON(w, http.StatusOK, summaries)
}

// GetPublished returns a published project's current code.
// Unpublished and absent projects get the same 404.
// GET /api/published/{id}
func (h *PublicHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}

	view, err := h.projectService.GetPublished(r.Context(), projectID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, view)
}
