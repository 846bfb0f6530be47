package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/authcore/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when the email uniqueness constraint rejects a write.
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user. A zero ID is assigned before insert.
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by normalized email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// List retrieves users ordered by creation time with pagination
	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	// Update updates a user's name, email and role
	Update(ctx context.Context, user *models.User) error

	// Delete deletes a user
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetBySubjectID retrieves audit logs concerning a user with pagination
	GetBySubjectID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users     UserRepository
	AuditLogs AuditRepository
}
