package services

import (
	"context"
	"time"

	"webforge/internal/domain/models"
)

// GenerationRequest asks for a new generation on a project
type GenerationRequest struct {
	ProjectID string
	UserID    string
	Prompt    string
}

// JobHandle is returned as soon as a generation has been accepted
type JobHandle struct {
	JobID     string               `json:"job_id"`
	ProjectID string               `json:"project_id"`
	Status    models.ProjectStatus `json:"status"`
}

// StatusView is the pollable generation state of a project
type StatusView struct {
	ProjectID      string               `json:"project_id"`
	Status         models.ProjectStatus `json:"status"`
	CurrentVersion *int                 `json:"current_version"`
	FailureReason  *string              `json:"failure_reason,omitempty"`
	ActiveJobID    *string              `json:"active_job_id,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// GenerationOrchestrator drives the queued -> generating -> ready|failed lifecycle.
// Ownership is checked by the caller.
type GenerationOrchestrator interface {
	// RequestGeneration debits the user and schedules generation in the background.
	// Returns domain.ErrAlreadyGenerating or domain.ErrInsufficientCredits when refused.
	RequestGeneration(ctx context.Context, req *GenerationRequest) (*JobHandle, error)

	// GetStatus is a side-effect free read
	GetStatus(ctx context.Context, projectID string) (*StatusView, error)

	// SweepStale fails running jobs older than the stale bound and refunds them.
	// Returns how many jobs it failed.
	SweepStale(ctx context.Context) (int, error)
}
