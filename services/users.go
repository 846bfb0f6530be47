package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/authcore/internal/auth"
	"github.com/upb/authcore/internal/observability"
	"github.com/upb/authcore/models"
	"github.com/upb/authcore/repositories"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	maxNameLength   = 255
)

// Page is the effective window of a listing after clamping.
type Page struct {
	Limit  int
	Offset int
}

func newPage(limit, offset int) Page {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// UserService implements the protected user operations. Every method takes
// the caller's verified claims and checks them with auth.Authorize first.
type UserService struct {
	users            repositories.UserRepository
	auditLogs        repositories.AuditRepository
	audit            Auditor
	metrics          *observability.Metrics
	logger           *zap.Logger
	directoryTimeout time.Duration
}

// NewUserService creates a new UserService. auditLogs, audit and metrics may
// be nil; without auditLogs the audit trail is always empty.
func NewUserService(users repositories.UserRepository, auditLogs repositories.AuditRepository, audit Auditor, metrics *observability.Metrics, logger *zap.Logger, directoryTimeout time.Duration) *UserService {
	if audit == nil {
		audit = NopAuditor{}
	}
	if directoryTimeout <= 0 {
		directoryTimeout = 3 * time.Second
	}
	return &UserService{
		users:            users,
		auditLogs:        auditLogs,
		audit:            audit,
		metrics:          metrics,
		logger:           logger,
		directoryTimeout: directoryTimeout,
	}
}

// Profile returns the caller's own user record.
func (s *UserService) Profile(ctx context.Context, claims auth.Claims) (*models.User, error) {
	if err := s.authorize(ctx, claims, auth.RoleUser, "get_profile"); err != nil {
		return nil, err
	}

	return s.self(ctx, claims)
}

// UpdateProfile changes the caller's display name.
func (s *UserService) UpdateProfile(ctx context.Context, claims auth.Claims, name string) (*models.User, error) {
	if err := s.authorize(ctx, claims, auth.RoleUser, "update_profile"); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, NewDomainError(ErrorTypeValidation, "name must be between 1 and 255 characters", nil).
			WithDetail("field", "name")
	}

	user, err := s.self(ctx, claims)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{"name": map[string]string{"from": user.Name, "to": name}}
	user.Name = name
	user.UpdatedAt = time.Now().UTC()

	dirCtx, cancel := context.WithTimeout(ctx, s.directoryTimeout)
	defer cancel()
	if err := s.users.Update(dirCtx, user); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.directoryError("update", err)
	}

	s.audit.LogProfileUpdated(ctx, user, changes)
	return user, nil
}

// List returns a page of users and the window actually applied.
// Administrators only.
func (s *UserService) List(ctx context.Context, claims auth.Claims, limit, offset int) ([]*models.User, Page, error) {
	if err := s.authorize(ctx, claims, auth.RoleAdmin, "list_users"); err != nil {
		return nil, Page{}, err
	}

	page := newPage(limit, offset)

	dirCtx, cancel := context.WithTimeout(ctx, s.directoryTimeout)
	defer cancel()
	users, err := s.users.List(dirCtx, page.Limit, page.Offset)
	if err != nil {
		return nil, Page{}, s.directoryError("list", err)
	}
	return users, page, nil
}

// AuditTrail returns audit entries about a user, newest first. Entries
// outlive the user, so an unknown id yields an empty page. Administrators only.
func (s *UserService) AuditTrail(ctx context.Context, claims auth.Claims, id uuid.UUID, limit, offset int) ([]*models.AuditLog, Page, error) {
	if err := s.authorize(ctx, claims, auth.RoleAdmin, "get_audit_trail"); err != nil {
		return nil, Page{}, err
	}

	page := newPage(limit, offset)
	if s.auditLogs == nil {
		return []*models.AuditLog{}, page, nil
	}

	dirCtx, cancel := context.WithTimeout(ctx, s.directoryTimeout)
	defer cancel()
	logs, err := s.auditLogs.GetBySubjectID(dirCtx, id, page.Limit, page.Offset)
	if err != nil {
		return nil, Page{}, s.directoryError("audit_trail", err)
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	return logs, page, nil
}

// Delete removes a user. Administrators only, and not their own account.
func (s *UserService) Delete(ctx context.Context, claims auth.Claims, id uuid.UUID) error {
	if err := s.authorize(ctx, claims, auth.RoleAdmin, "delete_user"); err != nil {
		return err
	}

	actorID, _ := uuid.Parse(claims.Subject)
	if id == actorID {
		return ErrSelfDeletion
	}

	dirCtx, cancel := context.WithTimeout(ctx, s.directoryTimeout)
	defer cancel()

	target, err := s.users.GetByID(dirCtx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return s.directoryError("lookup", err)
	}

	if err := s.users.Delete(dirCtx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return s.directoryError("delete", err)
	}

	s.audit.LogUserDeleted(ctx, actorID, target)
	s.logger.Info("user deleted",
		zap.String("user_id", id.String()),
		zap.String("deleted_by", actorID.String()))
	return nil
}

func (s *UserService) authorize(ctx context.Context, claims auth.Claims, required auth.Role, operation string) error {
	err := auth.Authorize(claims, required)
	s.metrics.RecordAuthorization(required.String(), err == nil)
	if err == nil {
		return nil
	}

	actorID, _ := uuid.Parse(claims.Subject)
	s.audit.LogAccessDenied(ctx, actorID, operation, required.String())
	s.logger.Warn("access denied",
		zap.String("operation", operation),
		zap.String("subject", claims.Subject),
		zap.String("role", claims.Role.String()),
		zap.String("required_role", required.String()))
	return ErrForbidden.Wrap(err)
}

func (s *UserService) self(ctx context.Context, claims auth.Claims) (*models.User, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrUnauthenticated.Wrap(err)
	}

	dirCtx, cancel := context.WithTimeout(ctx, s.directoryTimeout)
	defer cancel()

	user, err := s.users.GetByID(dirCtx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.directoryError("lookup", err)
	}
	return user, nil
}

func (s *UserService) directoryError(op string, err error) error {
	s.logger.Warn("user directory unavailable", zap.String("operation", op), zap.Error(err))
	return ErrDirectoryUnavailable.Wrap(err)
}
