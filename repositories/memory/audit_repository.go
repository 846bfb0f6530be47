package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/authcore/models"
	"github.com/upb/authcore/repositories"
)

// AuditRepository appends audit entries to a slice.
type AuditRepository struct {
	mu   sync.RWMutex
	logs []*models.AuditLog
}

// NewAuditRepository creates an empty in-memory audit repository
func NewAuditRepository() repositories.AuditRepository {
	return &AuditRepository{}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clone := *log
	r.mu.Lock()
	r.logs = append(r.logs, &clone)
	r.mu.Unlock()
	return nil
}

// GetBySubjectID retrieves audit logs concerning a user, newest first
func (r *AuditRepository) GetBySubjectID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	return r.filter(ctx, limit, offset, func(l *models.AuditLog) bool {
		return l.SubjectID != nil && *l.SubjectID == userID
	})
}

func (r *AuditRepository) filter(ctx context.Context, limit, offset int, match func(*models.AuditLog) bool) ([]*models.AuditLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.AuditLog
	skipped := 0
	for i := len(r.logs) - 1; i >= 0; i-- {
		if !match(r.logs[i]) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		clone := *r.logs[i]
		out = append(out, &clone)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
