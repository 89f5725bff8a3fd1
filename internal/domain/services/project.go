package services

import (
	"context"

	"webforge/internal/domain/models"
)

// CreateProjectRequest creates a project and starts its first generation.
// Name defaults to the start of the prompt.
type CreateProjectRequest struct {
	UserID        string `json:"-"`
	InitialPrompt string `json:"initial_prompt"`
	Name          string `json:"name"`
}

// CreateProjectResult is the new project and its first job
type CreateProjectResult struct {
	Project *models.Project `json:"project"`
	Job     *JobHandle      `json:"job"`
}

// ProjectDetail is an owner's view of a project with its current code
type ProjectDetail struct {
	*models.Project
	Code *string `json:"code"`
}

// RenameProjectRequest renames a project
type RenameProjectRequest struct {
	ProjectID string `json:"-"`
	UserID    string `json:"-"`
	Name      string `json:"name"`
}

// SaveCodeRequest stores a manual edit. ExpectedVersion 0 means "no revisions yet".
type SaveCodeRequest struct {
	ProjectID       string `json:"-"`
	UserID          string `json:"-"`
	Code            string `json:"code"`
	ExpectedVersion int    `json:"expected_version"`
}

// CreditsView is a user's balance and the price of one generation
type CreditsView struct {
	Balance        int `json:"balance"`
	GenerationCost int `json:"generation_cost"`
}

// ProjectService is the façade every transport talks to.
// All owner-scoped operations return domain.ErrNotFound for absent projects and
// domain.ErrForbidden for projects owned by someone else.
type ProjectService interface {
	CreateProject(ctx context.Context, req *CreateProjectRequest) (*CreateProjectResult, error)
	ListProjects(ctx context.Context, userID string) ([]models.Project, error)
	GetProject(ctx context.Context, projectID, userID string) (*ProjectDetail, error)
	RenameProject(ctx context.Context, req *RenameProjectRequest) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID, userID string) error

	RequestGeneration(ctx context.Context, req *GenerationRequest) (*JobHandle, error)
	GetStatus(ctx context.Context, projectID, userID string) (*StatusView, error)

	SaveCode(ctx context.Context, req *SaveCodeRequest) (*models.Revision, error)
	Rollback(ctx context.Context, projectID string, version int, userID string) (*models.Revision, error)
	ListRevisions(ctx context.Context, projectID, userID string) ([]models.Revision, error)
	GetRevision(ctx context.Context, projectID string, version int, userID string) (*models.Revision, error)

	// TogglePublish flips the flag and returns the new value
	TogglePublish(ctx context.Context, projectID, userID string) (bool, error)
	SetPublished(ctx context.Context, projectID string, published bool, userID string) (bool, error)
	ListPublished(ctx context.Context) ([]PublicSummary, error)
	GetPublished(ctx context.Context, projectID string) (*PublicView, error)

	GetCredits(ctx context.Context, userID string) (*CreditsView, error)
}
