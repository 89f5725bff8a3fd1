package repositories

import (
	"context"
	"time"

	"webforge/internal/domain/models"
)

// JobRepository stores generation jobs.
type JobRepository interface {
	// Create inserts a running job. A second running job for the same project
	// yields domain.ErrAlreadyGenerating.
	Create(ctx context.Context, job *models.GenerationJob) error

	// Get retrieves a job by ID
	Get(ctx context.Context, id string) (*models.GenerationJob, error)

	// GetActive returns the project's running job, or domain.ErrNotFound
	GetActive(ctx context.Context, projectID string) (*models.GenerationJob, error)

	// Finish moves a running job to a terminal status. Returns false if the job
	// had already left the running state (or no longer exists).
	Finish(ctx context.Context, id string, outcome *models.JobOutcome) (bool, error)

	// ListStale returns running jobs started before the cutoff
	ListStale(ctx context.Context, startedBefore time.Time) ([]models.GenerationJob, error)

	// DeleteByProject removes a project's jobs (project deletion only)
	DeleteByProject(ctx context.Context, projectID string) error
}
