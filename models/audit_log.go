package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionUserRegistered     AuditAction = "user_registered"
	AuditActionRegistrationFailed AuditAction = "registration_failed"
	AuditActionLoginSucceeded     AuditAction = "login_succeeded"
	AuditActionLoginFailed        AuditAction = "login_failed"
	AuditActionProfileUpdated     AuditAction = "profile_updated"
	AuditActionUserDeleted        AuditAction = "user_deleted"
	AuditActionAccessDenied       AuditAction = "access_denied"
)

// AuditOutcome is the result recorded with an audit entry.
type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "success"
	AuditOutcomeFailure AuditOutcome = "failure"
)

// AuditLog represents an audit trail entry. Email is the address the
// action concerned; it is recorded even when no user matched.
type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Action    AuditAction     `json:"action" db:"action"`
	Outcome   AuditOutcome    `json:"outcome" db:"outcome"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	SubjectID *uuid.UUID      `json:"subject_id,omitempty" db:"subject_id"`
	Email     string          `json:"email,omitempty" db:"email"`
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
	IPAddress string          `json:"ip_address" db:"ip_address"`
	UserAgent string          `json:"user_agent" db:"user_agent"`
	RequestID string          `json:"request_id" db:"request_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction, outcome AuditOutcome) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
}

// WithActor sets the user who performed the action.
func (a *AuditLog) WithActor(id uuid.UUID) *AuditLog {
	a.ActorID = &id
	return a
}

// WithSubject sets the user the action was performed on.
func (a *AuditLog) WithSubject(id uuid.UUID) *AuditLog {
	a.SubjectID = &id
	return a
}

// WithEmail sets the email address the action concerned.
func (a *AuditLog) WithEmail(email string) *AuditLog {
	a.Email = email
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(meta RequestMeta) *AuditLog {
	a.RequestID = meta.RequestID
	a.IPAddress = meta.IPAddress
	a.UserAgent = meta.UserAgent
	return a
}

// RequestMeta carries the transport details recorded with audit entries.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}
