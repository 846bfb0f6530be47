package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/authcore/internal/auth"
	"github.com/upb/authcore/internal/observability"
	"github.com/upb/authcore/models"
	"github.com/upb/authcore/repositories"
	"go.uber.org/zap"
)

// timingPassword is hashed once at startup. Login verifies against its hash
// when the email is unknown, so both failure paths cost one hash verification.
const timingPassword = "authcore-timing-equalizer"

// Credential is a transient email/password pair. It is never stored or logged.
type Credential struct {
	Email    string
	Password string
}

// AuthResult is returned by successful registration and login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Mint(subject, email string, role auth.Role) (string, auth.Claims, error)
}

// AuthenticatorConfig holds the registration policy and directory budget.
type AuthenticatorConfig struct {
	DefaultRole                auth.Role
	AllowAdminSelfRegistration bool
	DirectoryTimeout           time.Duration
}

// Authenticator implements registration and login on top of the user
// directory, the credential hasher and the token codec.
type Authenticator struct {
	users      repositories.UserRepository
	hasher     auth.Hasher
	tokens     TokenIssuer
	audit      Auditor
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        AuthenticatorConfig
	timingHash string
}

// NewAuthenticator creates a new Authenticator. audit and metrics may be nil.
func NewAuthenticator(
	users repositories.UserRepository,
	hasher auth.Hasher,
	tokens TokenIssuer,
	audit Auditor,
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg AuthenticatorConfig,
) (*Authenticator, error) {
	if users == nil || hasher == nil || tokens == nil {
		return nil, fmt.Errorf("authenticator requires a user repository, hasher and token issuer")
	}
	if cfg.DefaultRole == 0 {
		cfg.DefaultRole = auth.RoleUser
	}
	if !cfg.DefaultRole.Valid() {
		return nil, fmt.Errorf("invalid default role: %w", auth.ErrUnknownRole)
	}
	if cfg.DefaultRole == auth.RoleAdmin && !cfg.AllowAdminSelfRegistration {
		return nil, fmt.Errorf("default role ADMIN requires admin self-registration to be enabled")
	}
	if cfg.DirectoryTimeout <= 0 {
		cfg.DirectoryTimeout = 3 * time.Second
	}
	if audit == nil {
		audit = NopAuditor{}
	}

	timingHash, err := hasher.Hash(timingPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare timing hash: %w", err)
	}

	return &Authenticator{
		users:      users,
		hasher:     hasher,
		tokens:     tokens,
		audit:      audit,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		timingHash: timingHash,
	}, nil
}

// Register creates a new user and returns a session token for it.
// requestedRole nil means the configured default role.
func (a *Authenticator) Register(ctx context.Context, cred Credential, name string, requestedRole *auth.Role) (*AuthResult, error) {
	email := models.NormalizeEmail(cred.Email)
	if email == "" {
		a.metrics.RecordAuthAttempt("register", "invalid_input")
		return nil, ErrInvalidEmail
	}

	_, err := a.findByEmail(ctx, email)
	switch {
	case err == nil:
		a.registerFailed(ctx, email, "email_taken")
		return nil, ErrEmailTaken
	case !errors.Is(err, repositories.ErrNotFound):
		a.registerFailed(ctx, email, "directory_unavailable")
		return nil, a.directoryError("lookup", err)
	}

	role, err := a.resolveRole(requestedRole)
	if err != nil {
		a.registerFailed(ctx, email, GetErrorCode(err))
		return nil, err
	}

	hash, err := a.hasher.Hash(cred.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordPolicy) {
			a.registerFailed(ctx, email, "weak_password")
			return nil, ErrWeakPassword.Wrap(err)
		}
		a.metrics.RecordAuthAttempt("register", "error")
		return nil, WrapInternal("failed to hash password", err)
	}

	user := models.NewUser(name, email, hash, role)
	if err := a.create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			a.registerFailed(ctx, email, "email_taken")
			return nil, ErrEmailTaken
		}
		a.registerFailed(ctx, email, "directory_unavailable")
		return nil, a.directoryError("create", err)
	}

	result, err := a.issue(user)
	if err != nil {
		a.metrics.RecordAuthAttempt("register", "error")
		return nil, err
	}

	a.metrics.RecordAuthAttempt("register", "success")
	a.audit.LogRegistration(ctx, user)
	a.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role.String()))

	return result, nil
}

// Login checks the credential and returns a session token. An unknown email
// and a wrong password produce the same error.
func (a *Authenticator) Login(ctx context.Context, cred Credential) (*AuthResult, error) {
	email := models.NormalizeEmail(cred.Email)

	user, err := a.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			a.hasher.Verify(cred.Password, a.timingHash)
			a.loginFailed(ctx, email, "unknown_email")
			return nil, ErrInvalidCredential
		}
		a.loginFailed(ctx, email, "directory_unavailable")
		return nil, a.directoryError("lookup", err)
	}

	if !a.hasher.Verify(cred.Password, user.PasswordHash) {
		a.loginFailed(ctx, email, "wrong_password")
		return nil, ErrInvalidCredential
	}

	result, err := a.issue(user)
	if err != nil {
		a.metrics.RecordAuthAttempt("login", "error")
		return nil, err
	}

	a.metrics.RecordAuthAttempt("login", "success")
	a.audit.LogLogin(ctx, user)
	a.logger.Debug("user logged in", zap.String("user_id", user.ID.String()))

	return result, nil
}

func (a *Authenticator) resolveRole(requested *auth.Role) (auth.Role, error) {
	if requested == nil {
		return a.cfg.DefaultRole, nil
	}
	if !requested.Valid() {
		return 0, ErrInvalidRole
	}
	if *requested == auth.RoleAdmin && !a.cfg.AllowAdminSelfRegistration {
		return 0, ErrForbidden.Wrap(auth.ErrForbidden)
	}
	return *requested, nil
}

func (a *Authenticator) issue(user *models.User) (*AuthResult, error) {
	token, claims, err := a.tokens.Mint(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, WrapInternal("failed to mint token", err)
	}
	return &AuthResult{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}

func (a *Authenticator) findByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DirectoryTimeout)
	defer cancel()
	return a.users.GetByEmail(ctx, email)
}

func (a *Authenticator) create(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DirectoryTimeout)
	defer cancel()
	return a.users.Create(ctx, user)
}

func (a *Authenticator) directoryError(op string, err error) error {
	a.logger.Warn("user directory unavailable", zap.String("operation", op), zap.Error(err))
	return ErrDirectoryUnavailable.Wrap(err)
}

func (a *Authenticator) registerFailed(ctx context.Context, email, reason string) {
	a.metrics.RecordAuthAttempt("register", reason)
	a.audit.LogRegistrationFailed(ctx, email, reason)
}

func (a *Authenticator) loginFailed(ctx context.Context, email, reason string) {
	outcome := "invalid_credential"
	if reason == "directory_unavailable" {
		outcome = reason
	}
	a.metrics.RecordAuthAttempt("login", outcome)
	a.audit.LogLoginFailed(ctx, email, reason)
}
