package handler

import (
	"log/slog"
	"net/http"

	"webforge/internal/domain/services"
	"webforge/internal/httputil"
	"webforge/internal/pricing"
)

// CreditsHandler serves balances and the plan catalog
type CreditsHandler struct {
	projectService services.ProjectService
	pricing        *pricing.Registry
	logger         *slog.Logger
}

// NewCreditsHandler creates a new credits handler
func NewCreditsHandler(projectService services.ProjectService, registry *pricing.Registry, logger *slog.Logger) *CreditsHandler {
	return &CreditsHandler{
		projectService: projectService,
		pricing:        registry,
		logger:         logger,
	}
}

// GetCredits returns the caller's balance and the price of a generation
// GET /api/users/me/credits
func (h *CreditsHandler) GetCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	credits, err := h.projectService.GetCredits(r.Context(), userID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, credits)
}

// ListPlans returns purchasable credit plans
// GET /api/plans
func (h *CreditsHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.pricing.Plans())
}

// GetPlan returns one plan
// GET /api/plans/{id}
func (h *CreditsHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID, ok := PathParam(w, r, "id", "Plan ID")
	if !ok {
		return
	}

	plan, err := h.pricing.Plan(planID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, plan)
}
