package repositories

import (
	"context"

	"webforge/internal/domain/models"
)

// RevisionRepository stores the append-only revision history.
// There is deliberately no update method.
type RevisionRepository interface {
	// Insert stores a revision and fills in its ID and CreatedAt.
	// A duplicate (project_id, version_number) yields a *domain.ConflictError.
	Insert(ctx context.Context, revision *models.Revision) error

	// LatestVersion returns the highest version number, or 0 when there are none
	LatestVersion(ctx context.Context, projectID string) (int, error)

	// Get retrieves one revision by version number
	Get(ctx context.Context, projectID string, version int) (*models.Revision, error)

	// List returns all revisions oldest first
	List(ctx context.Context, projectID string) ([]models.Revision, error)

	// DeleteByProject removes a project's history (project deletion only)
	DeleteByProject(ctx context.Context, projectID string) error
}
