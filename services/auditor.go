package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/authcore/models"
)

// Auditor records authentication and user-management events. It is
// implemented by audit.AuditService.
type Auditor interface {
	LogRegistration(ctx context.Context, user *models.User)
	LogRegistrationFailed(ctx context.Context, email, reason string)
	LogLogin(ctx context.Context, user *models.User)
	LogLoginFailed(ctx context.Context, email, reason string)
	LogProfileUpdated(ctx context.Context, user *models.User, changes map[string]interface{})
	LogUserDeleted(ctx context.Context, actorID uuid.UUID, deleted *models.User)
	LogAccessDenied(ctx context.Context, actorID uuid.UUID, operation, requiredRole string)
}

// NopAuditor discards every event.
type NopAuditor struct{}

func (NopAuditor) LogRegistration(context.Context, *models.User)                          {}
func (NopAuditor) LogRegistrationFailed(context.Context, string, string)                  {}
func (NopAuditor) LogLogin(context.Context, *models.User)                                 {}
func (NopAuditor) LogLoginFailed(context.Context, string, string)                         {}
func (NopAuditor) LogProfileUpdated(context.Context, *models.User, map[string]interface{}) {}
func (NopAuditor) LogUserDeleted(context.Context, uuid.UUID, *models.User)                {}
func (NopAuditor) LogAccessDenied(context.Context, uuid.UUID, string, string)             {}
