package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/repositories"
)

const jobColumns = `id, project_id, user_id, prompt, status, cost, base_version,
	result_version, error, provider, model, started_at, finished_at`

// PostgresJobRepository implements the JobRepository interface
type PostgresJobRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewJobRepository creates a new generation job repository
func NewJobRepository(config *RepositoryConfig) repositories.JobRepository {
	return &PostgresJobRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a running job. The partial unique index on running jobs
// rejects a second one for the same project.
func (r *PostgresJobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = models.JobStatusRunning

	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, user_id, prompt, status, cost, base_version, provider, model)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING started_at
	`, r.tables.GenerationJobs)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		job.ID,
		job.ProjectID,
		job.UserID,
		job.Prompt,
		string(job.Status),
		job.Cost,
		job.BaseVersion,
		job.Provider,
		job.Model,
	).Scan(&job.StartedAt)
	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("project %s: %w", job.ProjectID, domain.ErrAlreadyGenerating)
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("project %s: %w", job.ProjectID, domain.ErrNotFound)
		}
		return fmt.Errorf("create job: %w", err)
	}

	return nil
}

// Get retrieves a job by ID
func (r *PostgresJobRepository) Get(ctx context.Context, id string) (*models.GenerationJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, jobColumns, r.tables.GenerationJobs)

	job, err := scanJob(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetActive returns the project's running job
func (r *PostgresJobRepository) GetActive(ctx context.Context, projectID string) (*models.GenerationJob, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE project_id = $1 AND status = 'running'
	`, jobColumns, r.tables.GenerationJobs)

	job, err := scanJob(GetExecutor(ctx, r.pool).QueryRow(ctx, query, projectID))
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("no running job for project %s: %w", projectID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

// Finish moves a running job to its terminal status. Only one caller can win.
func (r *PostgresJobRepository) Finish(ctx context.Context, id string, outcome *models.JobOutcome) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, result_version = $3, error = $4, model = COALESCE($5, model), finished_at = $6
		WHERE id = $1 AND status = 'running'
	`, r.tables.GenerationJobs)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		id,
		string(outcome.Status),
		outcome.ResultVersion,
		outcome.Error,
		outcome.Model,
		outcome.FinishedAt,
	)
	if err != nil {
		return false, fmt.Errorf("finish job: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListStale returns running jobs started before the cutoff, oldest first
func (r *PostgresJobRepository) ListStale(ctx context.Context, startedBefore time.Time) ([]models.GenerationJob, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE status = 'running' AND started_at < $1
		ORDER BY started_at ASC
	`, jobColumns, r.tables.GenerationJobs)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, startedBefore)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.GenerationJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

// DeleteByProject removes a project's jobs
func (r *PostgresJobRepository) DeleteByProject(ctx context.Context, projectID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE project_id = $1`, r.tables.GenerationJobs)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, projectID); err != nil {
		return fmt.Errorf("delete jobs: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*models.GenerationJob, error) {
	var (
		job    models.GenerationJob
		status string
	)
	err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&job.UserID,
		&job.Prompt,
		&status,
		&job.Cost,
		&job.BaseVersion,
		&job.ResultVersion,
		&job.Error,
		&job.Provider,
		&job.Model,
		&job.StartedAt,
		&job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	return &job, nil
}
