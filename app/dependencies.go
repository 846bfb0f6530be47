package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/authcore/config"
	"github.com/upb/authcore/handlers"
	"github.com/upb/authcore/internal/auth"
	"github.com/upb/authcore/internal/observability"
	"github.com/upb/authcore/middleware"
	"github.com/upb/authcore/repositories"
	"github.com/upb/authcore/repositories/memory"
	"github.com/upb/authcore/repositories/postgres"
	"github.com/upb/authcore/services"
	"github.com/upb/authcore/services/audit"
	"github.com/upb/authcore/services/ratelimit"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB // nil with the in-memory directory
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	AuditLogs repositories.AuditRepository

	// Auth core
	Hasher auth.Hasher
	Codec  *auth.Codec

	// Services
	Authenticator *services.Authenticator
	UserService   *services.UserService
	AuditService  *audit.AuditService
	RateLimiter   *ratelimit.RateLimitService

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	HealthHandler  *handlers.HealthHandler

	stopWorkers context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	if err := deps.initDirectory(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize user directory: %w", err)
	}

	if err := deps.initAuthCore(cfg); err != nil {
		deps.closeDirectory()
		return nil, fmt.Errorf("failed to initialize auth core: %w", err)
	}

	if err := deps.initServices(ctx, cfg); err != nil {
		deps.closeDirectory()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHTTP()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDirectory connects PostgreSQL when configured, otherwise falls back
// to the in-memory directory.
func (d *Dependencies) initDirectory(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Enabled() {
		d.Logger.Warn("no database configured, using in-memory user directory")
		d.Users = memory.NewUserRepository(d.Logger)
		d.AuditLogs = memory.NewAuditRepository()
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if cfg.Database.AutoMigrate {
		if err := factory.InitSchema(ctx); err != nil {
			_ = factory.Close()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	repos := factory.NewRepositories()
	d.Users = repos.Users
	d.AuditLogs = repos.AuditLogs

	d.Logger.Info("repositories initialized",
		zap.String("driver", cfg.Database.Driver))
	return nil
}

func (d *Dependencies) initAuthCore(cfg *config.Config) error {
	hasher, err := auth.NewHasher(cfg.Auth.HasherConfig())
	if err != nil {
		return fmt.Errorf("hasher: %w", err)
	}
	codec, err := auth.NewCodec(cfg.Auth.CodecConfig())
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	d.Hasher = hasher
	d.Codec = codec

	d.Logger.Info("auth core initialized",
		zap.String("hash_algorithm", cfg.Auth.HashAlgorithm),
		zap.String("issuer", codec.Issuer()),
		zap.Duration("token_ttl", codec.TTL()))
	return nil
}

func (d *Dependencies) initServices(ctx context.Context, cfg *config.Config) error {
	d.AuditService = audit.NewAuditService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:   cfg.Audit.BufferSize,
		WorkerCount:  cfg.Audit.WorkerCount,
		WriteTimeout: cfg.Audit.WriteTimeout,
	})
	if err := d.AuditService.Start(); err != nil {
		return fmt.Errorf("audit service: %w", err)
	}

	defaultRole, err := cfg.Auth.Role()
	if err != nil {
		return err
	}

	authenticator, err := services.NewAuthenticator(
		d.Users, d.Hasher, d.Codec, d.AuditService, d.Metrics, d.Logger,
		services.AuthenticatorConfig{
			DefaultRole:                defaultRole,
			AllowAdminSelfRegistration: cfg.Auth.AllowAdminSelfRegistration,
			DirectoryTimeout:           cfg.Auth.DirectoryTimeout,
		},
	)
	if err != nil {
		return fmt.Errorf("authenticator: %w", err)
	}
	d.Authenticator = authenticator
	d.UserService = services.NewUserService(d.Users, d.AuditLogs, d.AuditService, d.Metrics, d.Logger, cfg.Auth.DirectoryTimeout)

	if cfg.RateLimit.Enabled {
		d.RateLimiter = ratelimit.NewRateLimitService(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
			IdleTTL:           cfg.RateLimit.IdleTTL,
		}, d.Logger)

		workerCtx, cancel := context.WithCancel(context.Background())
		d.stopWorkers = cancel
		interval := cfg.RateLimit.IdleTTL
		if interval <= 0 {
			interval = time.Minute
		}
		d.RateLimiter.StartCleanupWorker(workerCtx, interval)
	}

	return nil
}

func (d *Dependencies) initHTTP() {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Codec, d.Metrics, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(d.Authenticator, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.UserService, d.Logger)

	var checker repositories.HealthChecker
	if d.DB != nil {
		checker = d.DB
	}
	d.HealthHandler = handlers.NewHealthHandler(checker, d.Logger)
}

func (d *Dependencies) closeDirectory() {
	if d.AuditService != nil {
		_ = d.AuditService.Stop(d.Config.Audit.WriteTimeout)
	}
	if d.RepoFactory != nil {
		_ = d.RepoFactory.Close()
	}
}

// Close gracefully shuts down all dependencies. Pending audit events are
// flushed before the database is closed.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopWorkers != nil {
		d.stopWorkers()
	}

	if d.AuditService != nil {
		timeout := d.Config.Audit.WriteTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.AuditService.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
