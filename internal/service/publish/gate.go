package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"webforge/internal/config"
	"webforge/internal/domain"
	"webforge/internal/domain/repositories"
	"webforge/internal/domain/services"
)

// errNotPublished covers absent and unpublished projects alike
var errNotPublished = fmt.Errorf("published project: %w", domain.ErrNotFound)

// gate implements services.PublishGate
type gate struct {
	projectRepo repositories.ProjectRepository
	revisions   services.RevisionStore
	authorizer  services.ResourceAuthorizer
	txManager   repositories.TransactionManager
	logger      *slog.Logger
}

// NewGate creates a publish gate
func NewGate(
	projectRepo repositories.ProjectRepository,
	revisions services.RevisionStore,
	authorizer services.ResourceAuthorizer,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.PublishGate {
	return &gate{
		projectRepo: projectRepo,
		revisions:   revisions,
		authorizer:  authorizer,
		txManager:   txManager,
		logger:      logger,
	}
}

// SetPublished sets the flag under the project row lock so the "has a
// revision" check and the write see the same row.
func (g *gate) SetPublished(ctx context.Context, projectID string, published bool, requesterID string) (bool, error) {
	if _, err := g.authorizer.AuthorizeProject(ctx, requesterID, projectID); err != nil {
		return false, err
	}

	changed := false
	err := g.txManager.ExecTx(ctx, func(ctx context.Context) error {
		project, err := g.projectRepo.GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if project.IsPublished == published {
			return nil
		}
		if published && !project.HasRevisions() {
			return fmt.Errorf("project %s has no revision to publish: %w", projectID, domain.ErrInvalidState)
		}
		changed = true
		return g.projectRepo.SetPublished(ctx, projectID, published)
	})
	if err != nil {
		return false, err
	}

	if changed {
		g.logger.Info("publication changed", "project_id", projectID, "published", published)
	}
	return published, nil
}

// GetPublicView hides unpublished projects behind the same error as absent ones
func (g *gate) GetPublicView(ctx context.Context, projectID string) (*services.PublicView, error) {
	project, err := g.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errNotPublished
		}
		return nil, err
	}
	if !project.IsPublished {
		return nil, errNotPublished
	}

	revision, err := g.revisions.GetCurrent(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errNotPublished
		}
		return nil, err
	}

	return &services.PublicView{
		ID:   project.ID,
		Name: project.Name,
		Code: revision.Code,
	}, nil
}

// ListPublished returns up to config.MaxPublishedListing projects, newest first
func (g *gate) ListPublished(ctx context.Context) ([]services.PublicSummary, error) {
	projects, err := g.projectRepo.ListPublished(ctx, config.MaxPublishedListing)
	if err != nil {
		return nil, err
	}

	summaries := make([]services.PublicSummary, 0, len(projects))
	for _, p := range projects {
		summaries = append(summaries, services.PublicSummary{
			ID:        p.ID,
			Name:      p.Name,
			CreatedAt: p.CreatedAt,
		})
	}
	return summaries, nil
}
