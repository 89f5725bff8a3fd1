package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"webforge/internal/auth"
	"webforge/internal/config"
	"webforge/internal/domain/repositories"
	"webforge/internal/domain/services"
	"webforge/internal/handler"
	"webforge/internal/lock"
	"webforge/internal/middleware"
	"webforge/internal/pricing"
	"webforge/internal/repository/memory"
	"webforge/internal/repository/postgres"
	serviceAuth "webforge/internal/service/auth"
	"webforge/internal/service/generation"
	"webforge/internal/service/generator"
	"webforge/internal/service/project"
	"webforge/internal/service/publish"
	"webforge/internal/service/revision"
)

// shutdownTimeout bounds how long in-flight requests and generations may take to drain
const shutdownTimeout = 30 * time.Second

// storage is the set of repositories the services run on
type storage struct {
	projects  repositories.ProjectRepository
	revisions repositories.RevisionRepository
	jobs      repositories.JobRepository
	ledger    services.CreditLedger
	txManager repositories.TransactionManager
	close     func()
}

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, closeLog, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"generator", cfg.GeneratorProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Authentication: JWKS when Supabase is configured, otherwise a fixed dev user
	var jwtVerifier auth.JWTVerifier
	if cfg.SupabaseJWKSURL != "" {
		jwtVerifier, err = auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
	} else {
		logger.Warn("no SUPABASE_URL configured, authenticating every request as DEV_USER_ID",
			"dev_user_id", cfg.DevUserID)
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.close()

	locker, closeLocker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create project locker: %v", err)
	}
	defer closeLocker()

	gen, err := generator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to set up generator: %v", err)
	}

	registry, err := pricing.NewRegistry(cfg.GenerationCost)
	if err != nil {
		log.Fatalf("Failed to load pricing catalog: %v", err)
	}
	cost := registry.GenerationCost(cfg.GeneratorProvider)

	// Services
	authorizer := serviceAuth.NewOwnerBasedAuthorizer(store.projects)
	revisionStore := revision.NewStore(store.projects, store.revisions, store.jobs, store.txManager, logger)
	orchestrator := generation.NewOrchestrator(generation.Deps{
		ProjectRepo: store.projects,
		JobRepo:     store.jobs,
		Revisions:   revisionStore,
		Ledger:      store.ledger,
		Generator:   gen,
		TxManager:   store.txManager,
		Locker:      locker,
		Logger:      logger,
	}, generation.Options{
		Cost:       cost,
		Timeout:    cfg.GenerationTimeout,
		StaleAfter: cfg.GenerationStaleAfter,
		Workers:    cfg.GenerationWorkers,
	})
	gate := publish.NewGate(store.projects, revisionStore, authorizer, store.txManager, logger)
	projectService := project.NewService(project.Deps{
		ProjectRepo:  store.projects,
		Revisions:    revisionStore,
		Orchestrator: orchestrator,
		Gate:         gate,
		Ledger:       store.ledger,
		Authorizer:   authorizer,
		Locker:       locker,
		Logger:       logger,
	}, cost)

	watchdog, err := generation.NewWatchdog(orchestrator, cfg.WatchdogInterval, logger)
	if err != nil {
		log.Fatalf("Failed to create watchdog: %v", err)
	}

	logger.Info("services initialized", "generation_cost", cost)

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	(&handler.Handlers{
		Projects: handler.NewProjectHandler(projectService, logger),
		Public:   handler.NewPublicHandler(projectService, logger),
		Credits:  handler.NewCreditsHandler(projectService, registry, logger),
		Limiter:  middleware.NewUserRateLimiter(cfg.GenerationRatePerMin),
	}).Register(mux)

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → RequestLogger → Routes
	var h http.Handler = mux
	h = middleware.RequestLogger(logger)(h)
	h = middleware.AuthMiddleware(jwtVerifier, cfg.DevUserID, logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Location", "Retry-After"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	watchdog.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
		if err := watchdog.Stop(shutdownCtx); err != nil {
			logger.Error("watchdog shutdown", "error", err)
		}
		// Jobs still running after this are failed and refunded by the next process's watchdog
		if err := orchestrator.Wait(shutdownCtx); err != nil {
			logger.Warn("generations still running at shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// openStorage connects to Postgres when DATABASE_URL is set and falls back to
// the in-memory store otherwise.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory storage (data is lost on restart)")
		mem := memory.NewStore()
		return &storage{
			projects:  memory.NewProjectRepository(mem),
			revisions: memory.NewRevisionRepository(mem),
			jobs:      memory.NewJobRepository(mem),
			ledger:    memory.NewCreditLedger(mem, cfg.SignupCredits, logger),
			txManager: mem,
			close:     func() {},
		}, nil
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected")

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}

	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, repoConfig); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("schema ensured", "table_prefix", cfg.TablePrefix)
	}

	return &storage{
		projects:  postgres.NewProjectRepository(repoConfig),
		revisions: postgres.NewRevisionRepository(repoConfig),
		jobs:      postgres.NewJobRepository(repoConfig),
		ledger:    postgres.NewCreditLedger(repoConfig, cfg.SignupCredits),
		txManager: postgres.NewTransactionManager(repoConfig),
		close:     pool.Close,
	}, nil
}

// openLocker shares project locks through Redis when REDIS_URL is set
func openLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NewLocalLocker(), func() {}, nil
	}

	client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("redis locker enabled")

	locker := lock.NewRedisLocker(lock.RedisLockerConfig{
		Client: client,
		Prefix: cfg.TablePrefix,
		Logger: logger,
	})
	return locker, func() { client.Close() }, nil
}
