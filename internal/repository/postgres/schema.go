package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema creates the service tables for the configured prefix if they do not exist.
func EnsureSchema(ctx context.Context, config *RepositoryConfig) error {
	t := config.Tables
	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id         TEXT NOT NULL,
			name            VARCHAR(255) NOT NULL,
			initial_prompt  TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'queued'
			                CHECK (status IN ('queued', 'generating', 'ready', 'failed')),
			is_published    BOOLEAN NOT NULL DEFAULT FALSE,
			current_version INTEGER,
			failure_reason  TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT %[1]s_published_has_version CHECK (NOT is_published OR current_version IS NOT NULL)
		)`, t.Projects),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_user_idx ON %[1]s (user_id, updated_at DESC)`, t.Projects),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_published_idx ON %[1]s (created_at DESC) WHERE is_published`, t.Projects),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			project_id     UUID NOT NULL REFERENCES %[2]s (id) ON DELETE CASCADE,
			version_number INTEGER NOT NULL CHECK (version_number >= 1),
			code           TEXT NOT NULL,
			origin         TEXT NOT NULL CHECK (origin IN ('generated', 'manual_edit', 'rollback')),
			parent_version INTEGER,
			prompt         TEXT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT %[1]s_project_version_key UNIQUE (project_id, version_number)
		)`, t.Revisions, t.Projects),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			project_id     UUID NOT NULL REFERENCES %[2]s (id) ON DELETE CASCADE,
			user_id        TEXT NOT NULL,
			prompt         TEXT NOT NULL,
			status         TEXT NOT NULL CHECK (status IN ('running', 'succeeded', 'failed')),
			cost           INTEGER NOT NULL,
			base_version   INTEGER,
			result_version INTEGER,
			error          TEXT,
			provider       TEXT NOT NULL,
			model          TEXT,
			started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at    TIMESTAMPTZ
		)`, t.GenerationJobs, t.Projects),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_one_running_idx ON %[1]s (project_id) WHERE status = 'running'`, t.GenerationJobs),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_running_started_idx ON %[1]s (started_at) WHERE status = 'running'`, t.GenerationJobs),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_id    TEXT PRIMARY KEY,
			balance    INTEGER NOT NULL CHECK (balance >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.CreditAccounts),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id         TEXT NOT NULL,
			amount          INTEGER NOT NULL,
			reason          TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT %[1]s_idempotency_key UNIQUE (idempotency_key)
		)`, t.CreditTransactions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_user_idx ON %[1]s (user_id, created_at DESC)`, t.CreditTransactions),
	}

	for _, stmt := range statements {
		if _, err := config.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	config.Logger.Info("schema ready", "projects_table", t.Projects)
	return nil
}

// DropSchema drops every service table for the configured prefix.
func DropSchema(ctx context.Context, config *RepositoryConfig) error {
	t := config.Tables
	query := fmt.Sprintf(`DROP TABLE IF EXISTS %s, %s, %s, %s, %s CASCADE`,
		t.GenerationJobs, t.Revisions, t.Projects, t.CreditTransactions, t.CreditAccounts)

	if _, err := config.Pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}

	config.Logger.Warn("dropped tables", "prefix_projects_table", t.Projects)
	return nil
}
