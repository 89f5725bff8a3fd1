package auth

import (
	"context"
	"fmt"

	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/repositories"
)

// OwnerBasedAuthorizer implements services.ResourceAuthorizer using ownership checks.
// A user can access a project if they created it.
type OwnerBasedAuthorizer struct {
	projectRepo repositories.ProjectRepository
}

// NewOwnerBasedAuthorizer creates a new ownership-based authorizer
func NewOwnerBasedAuthorizer(projectRepo repositories.ProjectRepository) *OwnerBasedAuthorizer {
	return &OwnerBasedAuthorizer{projectRepo: projectRepo}
}

// AuthorizeProject loads the project and checks the caller owns it
func (a *OwnerBasedAuthorizer) AuthorizeProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	project, err := a.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if !project.IsOwnedBy(userID) {
		return nil, fmt.Errorf("access denied to project %s: %w", projectID, domain.ErrForbidden)
	}
	return project, nil
}
