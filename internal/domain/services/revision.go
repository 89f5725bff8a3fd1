package services

import (
	"context"

	"webforge/internal/domain/models"
)

// AppendRevisionRequest describes a new revision.
// ExpectedParentVersion nil means the caller expects no revisions yet.
type AppendRevisionRequest struct {
	ProjectID             string
	Code                  string
	Origin                models.RevisionOrigin
	ExpectedParentVersion *int
	Prompt                *string
}

// RevisionStore is the append-only version history of every project and the
// only writer of Project.CurrentVersion.
type RevisionStore interface {
	// AppendRevision adds version latest+1 and advances the current pointer.
	// Returns *domain.ConflictError if ExpectedParentVersion is not the latest.
	AppendRevision(ctx context.Context, req *AppendRevisionRequest) (*models.Revision, error)

	// GetCurrent returns the revision the project's current pointer names
	GetCurrent(ctx context.Context, projectID string) (*models.Revision, error)

	// GetRevision returns one version
	GetRevision(ctx context.Context, projectID string, version int) (*models.Revision, error)

	// ListRevisions returns the full history, oldest first
	ListRevisions(ctx context.Context, projectID string) ([]models.Revision, error)

	// RollbackTo appends a copy of an earlier version's code as the newest version
	RollbackTo(ctx context.Context, projectID string, version int) (*models.Revision, error)

	// DeleteProject destroys the project, its history and its jobs
	DeleteProject(ctx context.Context, projectID string) error
}
