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

const revisionColumns = `id, project_id, version_number, code, origin, parent_version, prompt, created_at`

// PostgresRevisionRepository implements the RevisionRepository interface
type PostgresRevisionRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewRevisionRepository creates a new revision repository
func NewRevisionRepository(config *RepositoryConfig) repositories.RevisionRepository {
	return &PostgresRevisionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Insert appends a revision. The unique (project_id, version_number) constraint
// turns a racing writer into a ConflictError.
func (r *PostgresRevisionRepository) Insert(ctx context.Context, revision *models.Revision) error {
	if revision.ID == "" {
		revision.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, version_number, code, origin, parent_version, prompt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, r.tables.Revisions)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		revision.ID,
		revision.ProjectID,
		revision.VersionNumber,
		revision.Code,
		string(revision.Origin),
		revision.ParentVersion,
		revision.Prompt,
	).Scan(&revision.CreatedAt)
	if err != nil {
		if IsPgDuplicateError(err) {
			expected := revision.VersionNumber - 1
			return &domain.ConflictError{
				ProjectID:       revision.ProjectID,
				ExpectedVersion: expected,
				ActualVersion:   revision.VersionNumber,
			}
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("project %s: %w", revision.ProjectID, domain.ErrNotFound)
		}
		return fmt.Errorf("insert revision: %w", err)
	}

	return nil
}

// LatestVersion returns the highest version number, 0 when none exist
func (r *PostgresRevisionRepository) LatestVersion(ctx context.Context, projectID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(version_number), 0) FROM %s WHERE project_id = $1
	`, r.tables.Revisions)

	var latest int
	if err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, projectID).Scan(&latest); err != nil {
		if IsPgInvalidTextError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("latest version: %w", err)
	}
	return latest, nil
}

// Get retrieves one revision by version number
func (r *PostgresRevisionRepository) Get(ctx context.Context, projectID string, version int) (*models.Revision, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE project_id = $1 AND version_number = $2
	`, revisionColumns, r.tables.Revisions)

	revision, err := scanRevision(GetExecutor(ctx, r.pool).QueryRow(ctx, query, projectID, version))
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("project %s version %d: %w", projectID, version, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get revision: %w", err)
	}
	return revision, nil
}

// List returns all revisions oldest first
func (r *PostgresRevisionRepository) List(ctx context.Context, projectID string) ([]models.Revision, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE project_id = $1 ORDER BY version_number ASC
	`, revisionColumns, r.tables.Revisions)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, projectID)
	if err != nil {
		if IsPgInvalidTextError(err) {
			return []models.Revision{}, nil
		}
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	revisions := []models.Revision{}
	for rows.Next() {
		revision, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revisions = append(revisions, *revision)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}

	return revisions, nil
}

// DeleteByProject removes a project's history
func (r *PostgresRevisionRepository) DeleteByProject(ctx context.Context, projectID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE project_id = $1`, r.tables.Revisions)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, projectID); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	return nil
}

func scanRevision(row pgx.Row) (*models.Revision, error) {
	var (
		revision models.Revision
		origin   string
	)
	err := row.Scan(
		&revision.ID,
		&revision.ProjectID,
		&revision.VersionNumber,
		&revision.Code,
		&origin,
		&revision.ParentVersion,
		&revision.Prompt,
		&revision.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	revision.Origin = models.RevisionOrigin(origin)
	return &revision, nil
}
