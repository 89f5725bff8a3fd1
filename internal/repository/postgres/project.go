package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/repositories"
)

const projectColumns = `id, user_id, name, initial_prompt, status, is_published,
	current_version, failure_reason, created_at, updated_at`

// PostgresProjectRepository implements the ProjectRepository interface
type PostgresProjectRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(config *RepositoryConfig) repositories.ProjectRepository {
	return &PostgresProjectRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new project
func (r *PostgresProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.Status == "" {
		project.Status = models.ProjectStatusQueued
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, name, initial_prompt, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, r.tables.Projects)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		project.ID,
		project.UserID,
		project.Name,
		project.InitialPrompt,
		string(project.Status),
	).Scan(&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project by ID
func (r *PostgresProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, projectColumns, r.tables.Projects)
	return r.getOne(ctx, query, id)
}

// GetForUpdate retrieves a project and row-locks it until the transaction ends
func (r *PostgresProjectRepository) GetForUpdate(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, projectColumns, r.tables.Projects)
	return r.getOne(ctx, query, id)
}

func (r *PostgresProjectRepository) getOne(ctx context.Context, query, id string) (*models.Project, error) {
	executor := GetExecutor(ctx, r.pool)
	project, err := scanProject(executor.QueryRow(ctx, query, id))
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// ListByUser retrieves all projects for a user, ordered by updated_at DESC
func (r *PostgresProjectRepository) ListByUser(ctx context.Context, userID string) ([]models.Project, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, projectColumns, r.tables.Projects)

	return r.list(ctx, query, userID)
}

// ListPublished retrieves published projects, newest first
func (r *PostgresProjectRepository) ListPublished(ctx context.Context, limit int) ([]models.Project, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE is_published
		ORDER BY created_at DESC
		LIMIT $1
	`, projectColumns, r.tables.Projects)

	return r.list(ctx, query, limit)
}

func (r *PostgresProjectRepository) list(ctx context.Context, query string, args ...any) ([]models.Project, error) {
	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

// UpdateName renames a project
func (r *PostgresProjectRepository) UpdateName(ctx context.Context, id, name string) error {
	query := fmt.Sprintf(`UPDATE %s SET name = $2, updated_at = now() WHERE id = $1`, r.tables.Projects)
	return r.execOne(ctx, "update project name", query, id, name)
}

// SetPublished sets the publication flag
func (r *PostgresProjectRepository) SetPublished(ctx context.Context, id string, published bool) error {
	query := fmt.Sprintf(`UPDATE %s SET is_published = $2, updated_at = now() WHERE id = $1`, r.tables.Projects)

	err := r.execOne(ctx, "set published", query, id, published)
	if constraintName(err) == r.tables.Projects+"_published_has_version" {
		return fmt.Errorf("project %s has no revision to publish: %w", id, domain.ErrInvalidState)
	}
	return err
}

// SetCurrentVersion advances the current revision pointer
func (r *PostgresProjectRepository) SetCurrentVersion(ctx context.Context, id string, version int) error {
	query := fmt.Sprintf(`
		UPDATE %s SET current_version = $2, updated_at = now()
		WHERE id = $1 AND (current_version IS NULL OR current_version < $2)
	`, r.tables.Projects)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id, version)
	if err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("project %s cannot move to version %d: %w", id, version, domain.ErrInvalidState)
	}
	return nil
}

// CompareAndSetStatus moves status from -> to if the project is still in from,
// clearing the failure reason
func (r *PostgresProjectRepository) CompareAndSetStatus(ctx context.Context, id string, from, to models.ProjectStatus) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $3, failure_reason = NULL, updated_at = now()
		WHERE id = $1 AND status = $2
	`, r.tables.Projects)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		if IsPgInvalidTextError(err) {
			return false, nil
		}
		return false, fmt.Errorf("compare and set status: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// SetStatus sets status and failure reason unconditionally
func (r *PostgresProjectRepository) SetStatus(ctx context.Context, id string, status models.ProjectStatus, failureReason *string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1
	`, r.tables.Projects)
	return r.execOne(ctx, "set status", query, id, string(status), failureReason)
}

// Delete hard-deletes a project
func (r *PostgresProjectRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Projects)
	return r.execOne(ctx, "delete project", query, id)
}

// execOne runs a single-row statement and maps "no row touched" to ErrNotFound
func (r *PostgresProjectRepository) execOne(ctx context.Context, op, query, id string, args ...any) error {
	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		if IsPgInvalidTextError(err) {
			return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var (
		project models.Project
		status  string
	)
	err := row.Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&project.InitialPrompt,
		&status,
		&project.IsPublished,
		&project.CurrentVersion,
		&project.FailureReason,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	project.Status = models.ProjectStatus(status)
	return &project, nil
}
