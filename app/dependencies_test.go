package app

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/authcore/config"
	"github.com/upb/authcore/internal/auth"
	"github.com/upb/authcore/repositories/postgres"
	"github.com/upb/authcore/services"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewDependencies(t *testing.T) {
	t.Run("in-memory directory", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, deps)

		// Verify infrastructure
		assert.Nil(t, deps.DB)
		assert.Nil(t, deps.RepoFactory)
		assert.NotNil(t, deps.Metrics)

		// Verify repositories and services
		assert.NotNil(t, deps.Users)
		assert.NotNil(t, deps.AuditLogs)
		assert.NotNil(t, deps.Hasher)
		assert.NotNil(t, deps.Codec)
		assert.NotNil(t, deps.Authenticator)
		assert.NotNil(t, deps.UserService)
		assert.NotNil(t, deps.AuditService)
		assert.NotNil(t, deps.RateLimiter)
		assert.NotNil(t, deps.AuthMiddleware)
		assert.NotNil(t, deps.HealthHandler)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("register and login through wired services", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		cred := services.Credential{Email: "dana@example.com", Password: "password-1"}
		_, err = deps.Authenticator.Register(ctx, cred, "Dana", nil)
		require.NoError(t, err)

		result, err := deps.Authenticator.Login(ctx, cred)
		require.NoError(t, err)

		claims, err := deps.Codec.Verify(result.Token)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleUser, claims.Role)
		assert.Equal(t, "authcore-test", claims.Issuer)
	})

	t.Run("rate limiting disabled", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.RateLimit.Enabled = false

		deps, err := NewDependencies(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		assert.Nil(t, deps.RateLimiter)
		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("weak signing secret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.SigningSecret = "short"

		deps, err := NewDependencies(context.Background(), cfg, zap.NewNop())
		assert.Nil(t, deps)
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrWeakSecret))
		assert.Contains(t, err.Error(), "failed to initialize auth core")
	})

	t.Run("unknown hash algorithm", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.HashAlgorithm = "md5"

		deps, err := NewDependencies(context.Background(), cfg, zap.NewNop())
		assert.Nil(t, deps)
		assert.Error(t, err)
	})

	t.Run("database connection failure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database = config.DatabaseConfig{Driver: "mysql", Host: "localhost", User: "u", Database: "d"}

		deps, err := NewDependencies(context.Background(), cfg, zap.NewNop())
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize user directory")
	})

	t.Run("postgres directory", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database = testDatabaseConfig()
		if !isDatabaseAvailable(t, cfg) {
			t.Skip("database not available")
		}

		ctx := context.Background()
		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.NotNil(t, deps.DB)
		assert.NoError(t, deps.DB.HealthCheck(ctx))
		assert.NoError(t, deps.Close(ctx))
	})
}

func TestDependenciesClose(t *testing.T) {
	t.Run("graceful shutdown", func(t *testing.T) {
		deps, err := NewDependencies(context.Background(), testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, deps.Close(ctx))
	})
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: config.AuthConfig{
			SigningSecret:     "0123456789abcdef0123456789abcdef",
			Issuer:            "authcore-test",
			TokenTTL:          time.Hour,
			DefaultRole:       "USER",
			HashAlgorithm:     "bcrypt",
			BcryptCost:        4,
			PasswordMinLength: 8,
			DirectoryTimeout:  time.Second,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 10,
			Burst:             5,
			IdleTTL:           time.Minute,
		},
		Audit: config.AuditConfig{
			BufferSize:   16,
			WorkerCount:  1,
			WriteTimeout: time.Second,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "debug",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:          "postgres",
		Host:            getEnvOrDefault("TEST_DB_HOST", "localhost"),
		Port:            5432,
		User:            getEnvOrDefault("TEST_DB_USER", "authcore"),
		Password:        getEnvOrDefault("TEST_DB_PASSWORD", "authcore"),
		Database:        getEnvOrDefault("TEST_DB_NAME", "authcore_test"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func isDatabaseAvailable(t *testing.T, cfg *config.Config) bool {
	t.Helper()
	db, err := postgres.NewDB(cfg.Database, zap.NewNop())
	if err != nil {
		return false
	}
	_ = db.Close()
	return true
}
