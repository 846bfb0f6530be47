package config

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/authcore/internal/auth"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	TrustProxyHeaders  bool // Take the client IP from X-Forwarded-For / X-Real-IP
	TLS                struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
// With neither DATABASE_URL nor DB_HOST set, the in-memory user directory is used.
type DatabaseConfig struct {
	Driver           string // postgres (lib/pq) or pgx
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	AutoMigrate      bool
}

// AuthConfig holds the credential hashing and token settings
type AuthConfig struct {
	SigningSecret              string
	Issuer                     string
	TokenTTL                   time.Duration
	DefaultRole                string
	AllowAdminSelfRegistration bool
	HashAlgorithm              string
	BcryptCost                 int
	Argon2Time                 int
	Argon2Memory               int // KiB
	Argon2Threads              int
	PasswordMinLength          int
	DirectoryTimeout           time.Duration
}

// RateLimitConfig holds the per-IP throttle for the credential endpoints
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
	IdleTTL           time.Duration
}

// AuditConfig holds the audit writer settings
type AuditConfig struct {
	BufferSize   int
	WorkerCount  int
	WriteTimeout time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getPort(),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:        getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			TrustProxyHeaders:  getEnvAsBool("SERVER_TRUST_PROXY_HEADERS", false),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			SigningSecret:              getEnv("AUTH_SIGNING_SECRET", ""),
			Issuer:                     getEnv("AUTH_ISSUER", "authcore"),
			TokenTTL:                   getEnvAsDuration("AUTH_TOKEN_TTL", time.Hour),
			DefaultRole:                getEnv("AUTH_DEFAULT_ROLE", "USER"),
			AllowAdminSelfRegistration: getEnvAsBool("AUTH_ALLOW_ADMIN_SELF_REGISTRATION", false),
			HashAlgorithm:              getEnv("AUTH_HASH_ALGORITHM", string(auth.AlgorithmBcrypt)),
			BcryptCost:                 getEnvAsInt("AUTH_BCRYPT_COST", 12),
			Argon2Time:                 getEnvAsInt("AUTH_ARGON2_TIME", 3),
			Argon2Memory:               getEnvAsInt("AUTH_ARGON2_MEMORY", 64*1024),
			Argon2Threads:              getEnvAsInt("AUTH_ARGON2_THREADS", 1),
			PasswordMinLength:          getEnvAsInt("AUTH_PASSWORD_MIN_LENGTH", 8),
			DirectoryTimeout:           getEnvAsDuration("AUTH_DIRECTORY_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 5),
			IdleTTL:           getEnvAsDuration("RATE_LIMIT_IDLE_TTL", 10*time.Minute),
		},
		Audit: AuditConfig{
			BufferSize:   getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			WorkerCount:  getEnvAsInt("AUDIT_WORKERS", 2),
			WriteTimeout: getEnvAsDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}

	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.Enabled() {
		switch c.Database.Driver {
		case "postgres", "pgx":
		default:
			return fmt.Errorf("unsupported DB_DRIVER %q (use postgres or pgx)", c.Database.Driver)
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	} else if c.IsProduction() {
		return fmt.Errorf("database configuration required in production: set DATABASE_URL or DB_HOST")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requests per minute and burst must be positive")
	}

	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("TLS enabled but certificate or key file is missing")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Validate checks the signing secret, token lifetime, default role and
// hashing parameters.
func (a *AuthConfig) Validate() error {
	if len(a.SigningSecret) < auth.MinSecretBytes {
		return fmt.Errorf("AUTH_SIGNING_SECRET: %w", auth.ErrWeakSecret)
	}
	if strings.TrimSpace(a.Issuer) == "" {
		return fmt.Errorf("AUTH_ISSUER is required")
	}
	if a.TokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be greater than zero")
	}

	role, err := a.Role()
	if err != nil {
		return fmt.Errorf("AUTH_DEFAULT_ROLE: %w", err)
	}
	if role == auth.RoleAdmin && !a.AllowAdminSelfRegistration {
		return fmt.Errorf("AUTH_DEFAULT_ROLE=ADMIN requires AUTH_ALLOW_ADMIN_SELF_REGISTRATION=true")
	}

	if !inRange(a.Argon2Time, math.MaxUint32) || !inRange(a.Argon2Memory, math.MaxUint32) || !inRange(a.Argon2Threads, math.MaxUint8) {
		return fmt.Errorf("argon2id parameters out of range (time and memory up to %d, threads up to %d)",
			uint64(math.MaxUint32), math.MaxUint8)
	}
	hc := a.HasherConfig()
	hc.ApplyDefaults()
	if err := hc.Validate(); err != nil {
		return err
	}

	if a.DirectoryTimeout <= 0 {
		return fmt.Errorf("AUTH_DIRECTORY_TIMEOUT must be greater than zero")
	}
	return nil
}

func inRange(v int, max uint64) bool {
	return v >= 0 && uint64(v) <= max
}

// Role returns the parsed default role for new registrations.
func (a *AuthConfig) Role() (auth.Role, error) {
	return auth.ParseRole(a.DefaultRole)
}

// HasherConfig converts the settings for auth.NewHasher.
func (a *AuthConfig) HasherConfig() auth.HasherConfig {
	return auth.HasherConfig{
		Algorithm:     auth.HashAlgorithm(strings.ToLower(a.HashAlgorithm)),
		BcryptCost:    a.BcryptCost,
		Argon2Time:    uint32(a.Argon2Time),
		Argon2Memory:  uint32(a.Argon2Memory),
		Argon2Threads: uint8(a.Argon2Threads),
		MinLength:     a.PasswordMinLength,
	}
}

// CodecConfig converts the settings for auth.NewCodec.
func (a *AuthConfig) CodecConfig() auth.CodecConfig {
	return auth.CodecConfig{
		Secret: []byte(a.SigningSecret),
		Issuer: a.Issuer,
		TTL:    a.TokenTTL,
	}
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Enabled reports whether a PostgreSQL directory is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != "" || c.Host != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "postgres"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "authcore")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "authcore")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
