package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"webforge/internal/auth"
	"webforge/internal/config"
	"webforge/internal/repository/postgres"
	"webforge/internal/seed"
	"webforge/internal/service/revision"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed anything")
	clearData := flag.Bool("clear-data", false, "Delete the user's projects (keep schema)")
	userID := flag.String("user-id", "", "User to seed (defaults to DEV_USER_ID)")
	email := flag.String("email", "", "Create or look up this auth user and seed it")
	password := flag.String("password", "", "Password for -email when the user has to be created")
	credits := flag.Int("credits", 0, "Grant this many credits to the user")
	grantLabel := flag.String("grant-label", "dev", "Idempotency label for -credits; reuse skips the grant")
	samples := flag.Bool("samples", true, "Create sample projects for the user")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	switch {
	case *clearData:
		log.Printf("🧹 Clearing data only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	case *schemaOnly:
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	default:
		log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := postgres.DropSchema(ctx, repoConfig); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	log.Println("📋 Ensuring database schema is up to date...")
	if err := postgres.EnsureSchema(ctx, repoConfig); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	target := *userID
	if *email != "" {
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			log.Fatalf("-email needs SUPABASE_URL and SUPABASE_KEY")
		}
		admin := auth.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseKey)
		target, err = admin.EnsureUser(ctx, *email, *password)
		if err != nil {
			log.Fatalf("Failed to ensure auth user %s: %v", *email, err)
		}
		log.Printf("👤 Auth user %s is %s", *email, target)
	}
	if target == "" {
		target = cfg.DevUserID
	}
	if target == "" {
		log.Fatalf("No user to seed: pass -user-id, -email or set DEV_USER_ID")
	}

	projectRepo := postgres.NewProjectRepository(repoConfig)
	txManager := postgres.NewTransactionManager(repoConfig)
	revisions := revision.NewStore(
		projectRepo,
		postgres.NewRevisionRepository(repoConfig),
		postgres.NewJobRepository(repoConfig),
		txManager,
		logger,
	)
	ledger := postgres.NewCreditLedger(repoConfig, cfg.SignupCredits)
	seeder := seed.NewSeeder(projectRepo, revisions, ledger, logger)

	if *clearData {
		log.Printf("🧹 Deleting projects of %s...", target)
		n, err := seeder.ClearUserProjects(ctx, target)
		if err != nil {
			log.Fatalf("Failed to clear data after %d projects: %v", n, err)
		}
		log.Printf("✅ Deleted %d projects", n)
		return
	}

	if *credits > 0 {
		log.Printf("💳 Granting %d credits to %s (label %q)...", *credits, target, *grantLabel)
		if err := seeder.GrantCredits(ctx, target, *credits, *grantLabel); err != nil {
			log.Fatalf("Failed to grant credits: %v", err)
		}
	}

	if *samples {
		log.Println("📝 Seeding sample projects...")
		created, err := seeder.SeedSampleProjects(ctx, target)
		if err != nil {
			log.Fatalf("Failed to seed projects: %v", err)
		}
		for _, p := range created {
			log.Printf("   • %s (%s)", p.Name, p.ID)
		}
		log.Printf("✅ Created %d sample projects", len(created))
	}

	log.Println("🎉 Seeding complete")
}
