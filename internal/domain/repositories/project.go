package repositories

import (
	"context"

	"webforge/internal/domain/models"
)

// ProjectRepository defines data access operations for projects.
// Lookups are not user-scoped; ownership is checked by the service layer so
// that "absent" and "not yours" can be told apart.
type ProjectRepository interface {
	// Create inserts a project and fills in its generated ID and timestamps
	Create(ctx context.Context, project *models.Project) error

	// GetByID retrieves a project by ID
	GetByID(ctx context.Context, id string) (*models.Project, error)

	// GetForUpdate retrieves a project and locks its row for the surrounding transaction
	GetForUpdate(ctx context.Context, id string) (*models.Project, error)

	// ListByUser returns a user's projects, most recently updated first
	ListByUser(ctx context.Context, userID string) ([]models.Project, error)

	// ListPublished returns published projects, newest first
	ListPublished(ctx context.Context, limit int) ([]models.Project, error)

	// UpdateName renames a project
	UpdateName(ctx context.Context, id, name string) error

	// SetPublished sets the publication flag
	SetPublished(ctx context.Context, id string, published bool) error

	// SetCurrentVersion advances the current revision pointer
	SetCurrentVersion(ctx context.Context, id string, version int) error

	// CompareAndSetStatus moves status from -> to only if the project is still in from,
	// and clears the failure reason.
	// Returns false when the project was in another state.
	CompareAndSetStatus(ctx context.Context, id string, from, to models.ProjectStatus) (bool, error)

	// SetStatus sets status and failure reason unconditionally (reason nil clears it)
	SetStatus(ctx context.Context, id string, status models.ProjectStatus, failureReason *string) error

	// Delete hard-deletes a project row
	Delete(ctx context.Context, id string) error
}
