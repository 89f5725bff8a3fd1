package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"webforge/internal/config"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/repositories"
	"webforge/internal/domain/services"
	"webforge/internal/lock"
)

// Deps groups the façade's collaborators
type Deps struct {
	ProjectRepo  repositories.ProjectRepository
	Revisions    services.RevisionStore
	Orchestrator services.GenerationOrchestrator
	Gate         services.PublishGate
	Ledger       services.CreditLedger
	Authorizer   services.ResourceAuthorizer
	Locker       lock.Locker
	Logger       *slog.Logger
}

// projectService implements services.ProjectService
type projectService struct {
	projectRepo    repositories.ProjectRepository
	revisions      services.RevisionStore
	orchestrator   services.GenerationOrchestrator
	gate           services.PublishGate
	ledger         services.CreditLedger
	authorizer     services.ResourceAuthorizer
	locker         lock.Locker
	logger         *slog.Logger
	generationCost int
}

// NewService creates the project façade. generationCost is what one
// generation debits, reported by GetCredits and checked before creation.
func NewService(deps Deps, generationCost int) services.ProjectService {
	return &projectService{
		projectRepo:    deps.ProjectRepo,
		revisions:      deps.Revisions,
		orchestrator:   deps.Orchestrator,
		gate:           deps.Gate,
		ledger:         deps.Ledger,
		authorizer:     deps.Authorizer,
		locker:         deps.Locker,
		logger:         deps.Logger,
		generationCost: generationCost,
	}
}

// CreateProject creates a project and immediately requests its first generation.
// The project is removed again when that request is refused.
func (s *projectService) CreateProject(ctx context.Context, req *services.CreateProjectRequest) (*services.CreateProjectResult, error) {
	if req.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	req.InitialPrompt = strings.TrimSpace(req.InitialPrompt)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	balance, err := s.ledger.Balance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if balance < s.generationCost {
		return nil, fmt.Errorf("balance %d below generation cost %d: %w", balance, s.generationCost, domain.ErrInsufficientCredits)
	}

	name := req.Name
	if name == "" {
		name = deriveName(req.InitialPrompt)
	}

	project := &models.Project{
		UserID:        req.UserID,
		Name:          name,
		InitialPrompt: req.InitialPrompt,
		Status:        models.ProjectStatusQueued,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		"project_id", project.ID,
		"name", project.Name,
		"user_id", req.UserID,
	)

	job, err := s.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{
		ProjectID: project.ID,
		UserID:    req.UserID,
		Prompt:    req.InitialPrompt,
	})
	if err != nil {
		if delErr := s.revisions.DeleteProject(context.WithoutCancel(ctx), project.ID); delErr != nil {
			s.logger.Error("remove project after refused generation",
				"project_id", project.ID,
				"error", delErr,
			)
		}
		return nil, err
	}

	project, err = s.projectRepo.GetByID(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	return &services.CreateProjectResult{Project: project, Job: job}, nil
}

// ListProjects returns the caller's projects
func (s *projectService) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.projectRepo.ListByUser(ctx, userID)
}

// GetProject returns the project with its current code, if any
func (s *projectService) GetProject(ctx context.Context, projectID, userID string) (*services.ProjectDetail, error) {
	project, err := s.authorizer.AuthorizeProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	detail := &services.ProjectDetail{Project: project}
	if !project.HasRevisions() {
		return detail, nil
	}

	revision, err := s.revisions.GetRevision(ctx, projectID, *project.CurrentVersion)
	if err != nil {
		return nil, err
	}
	detail.Code = &revision.Code
	return detail, nil
}

// RenameProject changes a project's name
func (s *projectService) RenameProject(ctx context.Context, req *services.RenameProjectRequest) (*models.Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, config.MaxProjectNameLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if _, err := s.authorizer.AuthorizeProject(ctx, req.UserID, req.ProjectID); err != nil {
		return nil, err
	}

	if err := s.projectRepo.UpdateName(ctx, req.ProjectID, req.Name); err != nil {
		return nil, err
	}

	s.logger.Info("project renamed",
		"project_id", req.ProjectID,
		"name", req.Name,
		"user_id", req.UserID,
	)

	return s.projectRepo.GetByID(ctx, req.ProjectID)
}

// DeleteProject removes the project, its history and its jobs.
// A generation still running for it finishes into nothing.
func (s *projectService) DeleteProject(ctx context.Context, projectID, userID string) error {
	if _, err := s.authorizer.AuthorizeProject(ctx, userID, projectID); err != nil {
		return err
	}

	return s.withProjectLock(ctx, projectID, func() error {
		return s.revisions.DeleteProject(ctx, projectID)
	})
}

// RequestGeneration checks ownership and hands off to the orchestrator,
// which takes the project lock itself.
func (s *projectService) RequestGeneration(ctx context.Context, req *services.GenerationRequest) (*services.JobHandle, error) {
	if _, err := s.authorizer.AuthorizeProject(ctx, req.UserID, req.ProjectID); err != nil {
		return nil, err
	}
	return s.orchestrator.RequestGeneration(ctx, req)
}

// GetStatus returns the pollable generation state
func (s *projectService) GetStatus(ctx context.Context, projectID, userID string) (*services.StatusView, error) {
	if _, err := s.authorizer.AuthorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.orchestrator.GetStatus(ctx, projectID)
}

// SaveCode appends a manual edit on top of ExpectedVersion
func (s *projectService) SaveCode(ctx context.Context, req *services.SaveCodeRequest) (*models.Revision, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Code, validation.Length(0, config.MaxCodeSize)),
		validation.Field(&req.ExpectedVersion, validation.Min(0)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if _, err := s.authorizer.AuthorizeProject(ctx, req.UserID, req.ProjectID); err != nil {
		return nil, err
	}

	var expected *int
	if req.ExpectedVersion > 0 {
		v := req.ExpectedVersion
		expected = &v
	}

	var revision *models.Revision
	err := s.withProjectLock(ctx, req.ProjectID, func() error {
		var err error
		revision, err = s.revisions.AppendRevision(ctx, &services.AppendRevisionRequest{
			ProjectID:             req.ProjectID,
			Code:                  req.Code,
			Origin:                models.OriginManualEdit,
			ExpectedParentVersion: expected,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return revision, nil
}

// Rollback re-appends version's code as the newest revision
func (s *projectService) Rollback(ctx context.Context, projectID string, version int, userID string) (*models.Revision, error) {
	if err := validation.Validate(version, validation.Min(1)); err != nil {
		return nil, fmt.Errorf("%w: version %v", domain.ErrValidation, err)
	}

	if _, err := s.authorizer.AuthorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	var revision *models.Revision
	err := s.withProjectLock(ctx, projectID, func() error {
		var err error
		revision, err = s.revisions.RollbackTo(ctx, projectID, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return revision, nil
}

// ListRevisions returns the project's history, oldest first
func (s *projectService) ListRevisions(ctx context.Context, projectID, userID string) ([]models.Revision, error) {
	if _, err := s.authorizer.AuthorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.revisions.ListRevisions(ctx, projectID)
}

// GetRevision returns one version of the project
func (s *projectService) GetRevision(ctx context.Context, projectID string, version int, userID string) (*models.Revision, error) {
	if _, err := s.authorizer.AuthorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.revisions.GetRevision(ctx, projectID, version)
}

// TogglePublish flips the publication flag
func (s *projectService) TogglePublish(ctx context.Context, projectID, userID string) (bool, error) {
	if _, err := s.authorizer.AuthorizeProject(ctx, userID, projectID); err != nil {
		return false, err
	}

	var published bool
	err := s.withProjectLock(ctx, projectID, func() error {
		project, err := s.projectRepo.GetByID(ctx, projectID)
		if err != nil {
			return err
		}
		published, err = s.gate.SetPublished(ctx, projectID, !project.IsPublished, userID)
		return err
	})
	return published, err
}

// SetPublished sets the publication flag to an explicit value
func (s *projectService) SetPublished(ctx context.Context, projectID string, published bool, userID string) (bool, error) {
	var result bool
	err := s.withProjectLock(ctx, projectID, func() error {
		var err error
		result, err = s.gate.SetPublished(ctx, projectID, published, userID)
		return err
	})
	return result, err
}

// ListPublished returns the anonymous gallery
func (s *projectService) ListPublished(ctx context.Context) ([]services.PublicSummary, error) {
	return s.gate.ListPublished(ctx)
}

// GetPublished returns a published project's current code
func (s *projectService) GetPublished(ctx context.Context, projectID string) (*services.PublicView, error) {
	return s.gate.GetPublicView(ctx, projectID)
}

// GetCredits returns the caller's balance
func (s *projectService) GetCredits(ctx context.Context, userID string) (*services.CreditsView, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &services.CreditsView{Balance: balance, GenerationCost: s.generationCost}, nil
}

func (s *projectService) withProjectLock(ctx context.Context, projectID string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, lock.ProjectKey(projectID))
	if err != nil {
		return fmt.Errorf("lock project: %w", err)
	}
	defer unlock()
	return fn()
}

func validateCreateRequest(req *services.CreateProjectRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.InitialPrompt, validation.Required, validation.RuneLength(1, config.MaxPromptLength)),
		validation.Field(&req.Name, validation.RuneLength(0, config.MaxProjectNameLength)),
	)
}

// deriveName takes the first DerivedProjectNameLength runes of the prompt
func deriveName(prompt string) string {
	if utf8.RuneCountInString(prompt) <= config.DerivedProjectNameLength {
		return prompt
	}
	runes := []rune(prompt)
	return strings.TrimSpace(string(runes[:config.DerivedProjectNameLength]))
}
