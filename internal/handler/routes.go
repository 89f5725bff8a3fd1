package handler

import (
	"net/http"

	"webforge/internal/metrics"
	"webforge/internal/middleware"
)

// Handlers groups everything Register mounts
type Handlers struct {
	Projects *ProjectHandler
	Public   *PublicHandler
	Credits  *CreditsHandler
	Limiter  *middleware.UserRateLimiter
}

// Register mounts all routes on mux (Go 1.22+ patterns).
// Generation-starting routes go through the per-user rate limiter.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// Projects
	mux.HandleFunc("GET /api/projects", h.Projects.ListProjects)
	mux.HandleFunc("POST /api/projects", h.Limiter.Wrap(h.Projects.CreateProject))
	mux.HandleFunc("GET /api/projects/{id}", h.Projects.GetProject)
	mux.HandleFunc("PATCH /api/projects/{id}", h.Projects.UpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", h.Projects.DeleteProject)

	// Generation
	mux.HandleFunc("POST /api/projects/{id}/generations", h.Limiter.Wrap(h.Projects.RequestGeneration))
	mux.HandleFunc("GET /api/projects/{id}/status", h.Projects.GetStatus)

	// Revisions
	mux.HandleFunc("PUT /api/projects/{id}/code", h.Projects.SaveCode)
	mux.HandleFunc("POST /api/projects/{id}/rollback/{version}", h.Projects.Rollback)
	mux.HandleFunc("GET /api/projects/{id}/revisions", h.Projects.ListRevisions)
	mux.HandleFunc("GET /api/projects/{id}/revisions/{version}", h.Projects.GetRevision)

	// Publishing
	mux.HandleFunc("POST /api/projects/{id}/publish", h.Projects.TogglePublish)
	mux.HandleFunc("PUT /api/projects/{id}/publish", h.Projects.SetPublished)
	mux.HandleFunc("GET /api/published", h.Public.ListPublished)
	mux.HandleFunc("GET /api/published/{id}", h.Public.GetPublished)

	// Credits
	mux.HandleFunc("GET /api/users/me/credits", h.Credits.GetCredits)
	mux.HandleFunc("GET /api/plans", h.Credits.ListPlans)
	mux.HandleFunc("GET /api/plans/{id}", h.Credits.GetPlan)
}

// Health reports liveness
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
