package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/services"
	"webforge/internal/httputil"
)

// ProjectHandler handles owner-scoped project HTTP requests
type ProjectHandler struct {
	projectService services.ProjectService
	logger         *slog.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectService services.ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// ListProjects retrieves all projects for the user
// GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	projects, err := h.projectService.ListProjects(r.Context(), userID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	httputil.RespondJSON(w, http.StatusOK, projects)
}

// CreateProject creates a project and starts its first generation
// POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var req services.CreateProjectRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	req.UserID = userID

	result, err := h.projectService.CreateProject(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, result)
}

// GetProject retrieves a project with its current code
// GET /api/projects/{id}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}

	detail, err := h.projectService.GetProject(r.Context(), projectID, userID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, detail)
}

// updateProjectRequest is a JSON merge patch of the mutable project fields
type updateProjectRequest struct {
	Name httputil.OptionalString `json:"name"`
}

// UpdateProject renames a project. An absent name leaves it unchanged.
// PATCH /api/projects/{id}
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}

	var req updateProjectRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	if !req.Name.Present {
		detail, err := h.projectService.GetProject(r.Context(), projectID, userID)
		if err != nil {
			handleError(w, r, h.logger, err)
			return
		}
		httputil.RespondJSON(w, http.StatusOK, detail.Project)
		return
	}

	name := ""
	if req.Name.Value != nil {
		name = *req.Name.Value
	}
	project, err := h.projectService.RenameProject(r.Context(), &services.RenameProjectRequest{
		ProjectID: projectID,
		UserID:    userID,
		Name:      name,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, project)
}

// DeleteProject deletes a project and its history
// DELETE /api/projects/{id}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}

	if err := h.projectService.DeleteProject(r.Context(), projectID, userID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type generationRequest struct {
	Prompt string `json:"prompt"`
}

// RequestGeneration starts a generation and returns immediately
// POST /api/projects/{id}/generations
func (h *ProjectHandler) RequestGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}

	var req generationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	job, err := h.projectService.RequestGeneration(r.Context(), &services.GenerationRequest{
		ProjectID: projectID,
		UserID:    userID,
		Prompt:    req.Prompt,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/projects/"+projectID+"/status")
	httputil.RespondJSON(w, http.StatusAccepted, job)
}

// GetStatus returns the pollable generation state
// GET /api/projects/{id}/status
func (h *ProjectHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}

	status, err := h.projectService.GetStatus(r.Context(), projectID, userID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httputil.RespondJSON(w, http.StatusOK, status)
}

// SaveCode stores a manual edit
// PUT /api/projects/{id}/code
func (h *ProjectHandler) SaveCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}

	var req services.SaveCodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	req.ProjectID = projectID
	req.UserID = userID

	revision, err := h.projectService.SaveCode(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, revision)
}

// Rollback re-appends an earlier version as the newest revision
// POST /api/projects/{id}/rollback/{version}
func (h *ProjectHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}
	version, ok := PathInt(w, r, "version", "Version")
	if !ok {
		return
	}

	revision, err := h.projectService.Rollback(r.Context(), projectID, version, userID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, revision)
}

// ListRevisions returns the project's history, oldest first
// GET /api/projects/{id}/revisions
func (h *ProjectHandler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}

	revisions, err := h.projectService.ListRevisions(r.Context(), projectID, userID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if revisions == nil {
		revisions = []models.Revision{}
	}

	httputil.RespondJSON(w, http.StatusOK, revisions)
}

// GetRevision returns one version
// GET /api/projects/{id}/revisions/{version}
func (h *ProjectHandler) GetRevision(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}
	version, ok := PathInt(w, r, "version", "Version")
	if !ok {
		return
	}

	revision, err := h.projectService.GetRevision(r.Context(), projectID, version, userID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, revision)
}

type publishResponse struct {
	ProjectID   string `json:"project_id"`
	IsPublished bool   `json:"is_published"`
}

type setPublishedRequest struct {
	Published *bool `json:"published"`
}

// TogglePublish flips the publication flag
// POST /api/projects/{id}/publish
func (h *ProjectHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}

	published, err := h.projectService.TogglePublish(r.Context(), projectID, userID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, publishResponse{ProjectID: projectID, IsPublished: published})
}

// SetPublished sets the publication flag explicitly
// PUT /api/projects/{id}/publish
func (h *ProjectHandler) SetPublished(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok {
		return
	}

	var req setPublishedRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.Published == nil {
		handleError(w, r, h.logger, fmt.Errorf("%w: published is required", domain.ErrValidation))
		return
	}

	published, err := h.projectService.SetPublished(r.Context(), projectID, *req.Published, userID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, publishResponse{ProjectID: projectID, IsPublished: published})
}
