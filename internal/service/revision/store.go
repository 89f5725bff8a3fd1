package revision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"webforge/internal/config"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/repositories"
	"webforge/internal/domain/services"
	"webforge/internal/metrics"
)

// store implements services.RevisionStore
type store struct {
	projectRepo  repositories.ProjectRepository
	revisionRepo repositories.RevisionRepository
	jobRepo      repositories.JobRepository
	txManager    repositories.TransactionManager
	logger       *slog.Logger
}

// NewStore creates a revision store
func NewStore(
	projectRepo repositories.ProjectRepository,
	revisionRepo repositories.RevisionRepository,
	jobRepo repositories.JobRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.RevisionStore {
	return &store{
		projectRepo:  projectRepo,
		revisionRepo: revisionRepo,
		jobRepo:      jobRepo,
		txManager:    txManager,
		logger:       logger,
	}
}

// AppendRevision locks the project row, checks the caller's view of history
// against the latest version and appends latest+1.
func (s *store) AppendRevision(ctx context.Context, req *services.AppendRevisionRequest) (*models.Revision, error) {
	if err := validateAppend(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var revision *models.Revision
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.projectRepo.GetForUpdate(ctx, req.ProjectID); err != nil {
			return err
		}

		latest, err := s.revisionRepo.LatestVersion(ctx, req.ProjectID)
		if err != nil {
			return err
		}

		expected := 0
		if req.ExpectedParentVersion != nil {
			expected = *req.ExpectedParentVersion
		}
		if expected != latest {
			return &domain.ConflictError{ProjectID: req.ProjectID, ExpectedVersion: expected, ActualVersion: latest}
		}

		revision = &models.Revision{
			ProjectID:     req.ProjectID,
			VersionNumber: latest + 1,
			Code:          req.Code,
			Origin:        req.Origin,
			Prompt:        req.Prompt,
		}
		if latest > 0 {
			parent := latest
			revision.ParentVersion = &parent
		}

		if err := s.revisionRepo.Insert(ctx, revision); err != nil {
			return err
		}
		return s.projectRepo.SetCurrentVersion(ctx, req.ProjectID, revision.VersionNumber)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.RevisionConflicts.Inc()
		}
		return nil, err
	}

	metrics.RevisionsAppended.WithLabelValues(string(revision.Origin)).Inc()
	s.logger.Info("revision appended",
		"project_id", revision.ProjectID,
		"version", revision.VersionNumber,
		"origin", revision.Origin,
	)

	return revision, nil
}

// GetCurrent returns the revision the current pointer names
func (s *store) GetCurrent(ctx context.Context, projectID string) (*models.Revision, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.HasRevisions() {
		return nil, fmt.Errorf("project %s has no revisions: %w", projectID, domain.ErrNotFound)
	}
	return s.revisionRepo.Get(ctx, projectID, *project.CurrentVersion)
}

// GetRevision returns one version
func (s *store) GetRevision(ctx context.Context, projectID string, version int) (*models.Revision, error) {
	if version < 1 {
		return nil, fmt.Errorf("project %s version %d: %w", projectID, version, domain.ErrNotFound)
	}
	return s.revisionRepo.Get(ctx, projectID, version)
}

// ListRevisions returns the history oldest first
func (s *store) ListRevisions(ctx context.Context, projectID string) ([]models.Revision, error) {
	if _, err := s.projectRepo.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.revisionRepo.List(ctx, projectID)
}

// RollbackTo re-appends an earlier version's code as the newest version.
// History is never truncated.
func (s *store) RollbackTo(ctx context.Context, projectID string, version int) (*models.Revision, error) {
	var revision *models.Revision
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.projectRepo.GetForUpdate(ctx, projectID); err != nil {
			return err
		}

		target, err := s.GetRevision(ctx, projectID, version)
		if err != nil {
			return err
		}

		latest, err := s.revisionRepo.LatestVersion(ctx, projectID)
		if err != nil {
			return err
		}

		revision, err = s.AppendRevision(ctx, &services.AppendRevisionRequest{
			ProjectID:             projectID,
			Code:                  target.Code,
			Origin:                models.OriginRollback,
			ExpectedParentVersion: &latest,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project rolled back",
		"project_id", projectID,
		"source_version", version,
		"version", revision.VersionNumber,
	)
	return revision, nil
}

// DeleteProject removes the project with its revisions and jobs in one transaction
func (s *store) DeleteProject(ctx context.Context, projectID string) error {
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.projectRepo.GetForUpdate(ctx, projectID); err != nil {
			return err
		}
		if err := s.jobRepo.DeleteByProject(ctx, projectID); err != nil {
			return err
		}
		if err := s.revisionRepo.DeleteByProject(ctx, projectID); err != nil {
			return err
		}
		return s.projectRepo.Delete(ctx, projectID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("project deleted", "project_id", projectID)
	return nil
}

func validateAppend(req *services.AppendRevisionRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ProjectID, validation.Required),
		validation.Field(&req.Code, validation.Length(0, config.MaxCodeSize)),
		validation.Field(&req.Origin, validation.Required,
			validation.In(models.OriginGenerated, models.OriginManualEdit, models.OriginRollback)),
		validation.Field(&req.ExpectedParentVersion, validation.Min(0)),
	)
}
