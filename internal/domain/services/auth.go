package services

import (
	"context"

	"webforge/internal/domain/models"
)

// ResourceAuthorizer checks if a user can access resources.
// Current implementation: ownership-based (user owns project).
//
// Services call the authorizer before operating on resources, which keeps
// "who can access" separate from "which resource".
type ResourceAuthorizer interface {
	// AuthorizeProject loads the project and checks ownership.
	// Returns domain.ErrNotFound when absent and domain.ErrForbidden when owned by someone else.
	AuthorizeProject(ctx context.Context, userID, projectID string) (*models.Project, error)
}
