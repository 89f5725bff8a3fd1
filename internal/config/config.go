package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Config struct {
	Port            string
	Environment     string
	DatabaseURL     string // empty selects the in-memory store (dev/test only)
	TablePrefix     string
	SupabaseURL     string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	SupabaseKey     string // service role key, used by cmd/seed only
	CORSOrigins     string
	RedisURL        string // empty selects the in-process project locker
	DevUserID       string // authenticates every request as this user when no JWKS is configured
	AutoMigrate     bool

	// Generator configuration
	GeneratorProvider string
	GeneratorModel    string
	AnthropicAPIKey   string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenRouterAPIKey  string

	// Billing
	GenerationCost int // 0 = use the pricing catalog
	SignupCredits  int

	// Generation lifecycle
	GenerationTimeout    time.Duration
	GenerationStaleAfter time.Duration
	WatchdogInterval     time.Duration
	GenerationWorkers    int
	GenerationRatePerMin int

	// Logging
	LogDir      string
	LogMaxFiles int

	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct JWKS URL from Supabase URL
	jwksURL := ""
	if supabaseURL != "" {
		jwksURL = supabaseURL + "/auth/v1/.well-known/jwks.json"
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		TablePrefix:     tablePrefix,
		SupabaseURL:     supabaseURL,
		SupabaseJWKSURL: jwksURL,
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:5173"),
		RedisURL:        getEnv("REDIS_URL", ""),
		DevUserID:       getEnv("DEV_USER_ID", ""),
		AutoMigrate:     getEnv("AUTO_MIGRATE", getDefaultAutoMigrate(env)) == "true",

		GeneratorProvider: getEnv("GENERATOR_PROVIDER", "lorem"),
		GeneratorModel:    getEnv("GENERATOR_MODEL", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),

		GenerationCost: getEnvInt("GENERATION_COST", 0),
		SignupCredits:  getEnvInt("SIGNUP_CREDITS", DefaultSignupCredits),

		GenerationTimeout:    getEnvDuration("GENERATION_TIMEOUT", 3*time.Minute),
		GenerationStaleAfter: getEnvDuration("GENERATION_STALE_AFTER", 10*time.Minute),
		WatchdogInterval:     getEnvDuration("WATCHDOG_INTERVAL", 30*time.Second),
		GenerationWorkers:    getEnvInt("GENERATION_WORKERS", 8),
		GenerationRatePerMin: getEnvInt("GENERATION_RATE_PER_MIN", 6),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),

		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.Environment, validation.Required, validation.In("dev", "test", "prod")),
		validation.Field(&c.DatabaseURL, validation.When(c.Environment == "prod", validation.Required)),
		validation.Field(&c.SupabaseURL, validation.When(c.Environment == "prod", validation.Required)),
		validation.Field(&c.DevUserID, validation.When(c.Environment == "prod", validation.Empty)),
		validation.Field(&c.GeneratorProvider, validation.Required, validation.In("lorem", "anthropic", "openai", "openrouter")),
		validation.Field(&c.GenerationCost, validation.Min(0)),
		validation.Field(&c.SignupCredits, validation.Min(0)),
		validation.Field(&c.GenerationWorkers, validation.Min(1)),
		validation.Field(&c.GenerationRatePerMin, validation.Min(0)),
		validation.Field(&c.GenerationTimeout, validation.Required),
		validation.Field(&c.GenerationStaleAfter, validation.Required, validation.Min(c.GenerationTimeout)),
		validation.Field(&c.WatchdogInterval, validation.Required),
	)
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getDefaultAutoMigrate creates tables on boot everywhere except prod,
// where schema changes go through cmd/seed.
func getDefaultAutoMigrate(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return value
}
