package services

import (
	"context"
	"time"
)

// PublicView is everything an anonymous reader may see of a project
type PublicView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// PublicSummary is one entry of the published gallery
type PublicSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PublishGate controls anonymous visibility of a project's current revision.
type PublishGate interface {
	// SetPublished sets the flag. Owner only; publishing without a revision
	// returns domain.ErrInvalidState.
	SetPublished(ctx context.Context, projectID string, published bool, requesterID string) (bool, error)

	// GetPublicView returns domain.ErrNotFound for absent and unpublished projects alike
	GetPublicView(ctx context.Context, projectID string) (*PublicView, error)

	// ListPublished returns published projects, newest first
	ListPublished(ctx context.Context) ([]PublicSummary, error)
}
