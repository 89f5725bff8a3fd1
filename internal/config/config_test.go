package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("SUPABASE_URL", "")

	cfg := Load()

	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "dev_", cfg.TablePrefix)
	assert.Equal(t, "", cfg.SupabaseJWKSURL)
	assert.Equal(t, "lorem", cfg.GeneratorProvider)
	assert.Equal(t, DefaultSignupCredits, cfg.SignupCredits)
	assert.True(t, cfg.AutoMigrate)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("DATABASE_URL", "postgres://localhost/webforge")
	t.Setenv("GENERATION_TIMEOUT", "90s")
	t.Setenv("GENERATION_STALE_AFTER", "5m")
	t.Setenv("GENERATION_WORKERS", "not-a-number")
	t.Setenv("DEV_USER_ID", "")

	cfg := Load()

	assert.Equal(t, "prod_", cfg.TablePrefix)
	assert.Equal(t, "https://example.supabase.co/auth/v1/.well-known/jwks.json", cfg.SupabaseJWKSURL)
	assert.Equal(t, 90*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 5*time.Minute, cfg.GenerationStaleAfter)
	assert.Equal(t, 8, cfg.GenerationWorkers, "unparseable values fall back to the default")
	assert.False(t, cfg.AutoMigrate)
	assert.False(t, cfg.Debug)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "dev defaults", mutate: func(c *Config) {}},
		{name: "prod requires database", mutate: func(c *Config) {
			c.Environment = "prod"
			c.SupabaseURL = "https://x"
		}, wantErr: true},
		{name: "prod rejects dev user", mutate: func(c *Config) {
			c.Environment = "prod"
			c.SupabaseURL = "https://x"
			c.DatabaseURL = "postgres://x"
			c.DevUserID = "someone"
		}, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.GeneratorProvider = "gpt-local" }, wantErr: true},
		{name: "stale bound below timeout", mutate: func(c *Config) {
			c.GenerationTimeout = time.Minute
			c.GenerationStaleAfter = 30 * time.Second
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "")
			t.Setenv("DATABASE_URL", "")
			t.Setenv("DEV_USER_ID", "")
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSetupLogFileRotates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"webforge-2024-01-01T00-00-00.000.log", "webforge-2024-01-02T00-00-00.000.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	f, err := SetupLogFile(dir, 2)
	require.NoError(t, err)
	defer f.Close()

	files, err := filepath.Glob(filepath.Join(dir, "webforge-*.log"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.NotContains(t, files, filepath.Join(dir, "webforge-2024-01-01T00-00-00.000.log"))
}
