package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/authcore/internal/auth"
	"github.com/upb/authcore/models"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset)
	if u := args.Get(0); u != nil {
		return u.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAuditRepository is a mock implementation of repositories.AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditRepository) GetBySubjectID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, userID, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

type auditEvent struct {
	kind   string
	email  string
	reason string
}

// recordingAuditor keeps every event in memory.
type recordingAuditor struct {
	mu     sync.Mutex
	events []auditEvent
}

func (a *recordingAuditor) add(e auditEvent) {
	a.mu.Lock()
	a.events = append(a.events, e)
	a.mu.Unlock()
}

func (a *recordingAuditor) kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.events))
	for i, e := range a.events {
		out[i] = e.kind
	}
	return out
}

func (a *recordingAuditor) last() auditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return auditEvent{}
	}
	return a.events[len(a.events)-1]
}

func (a *recordingAuditor) LogRegistration(_ context.Context, u *models.User) {
	a.add(auditEvent{kind: "registered", email: u.Email})
}

func (a *recordingAuditor) LogRegistrationFailed(_ context.Context, email, reason string) {
	a.add(auditEvent{kind: "registration_failed", email: email, reason: reason})
}

func (a *recordingAuditor) LogLogin(_ context.Context, u *models.User) {
	a.add(auditEvent{kind: "login", email: u.Email})
}

func (a *recordingAuditor) LogLoginFailed(_ context.Context, email, reason string) {
	a.add(auditEvent{kind: "login_failed", email: email, reason: reason})
}

func (a *recordingAuditor) LogProfileUpdated(_ context.Context, u *models.User, _ map[string]interface{}) {
	a.add(auditEvent{kind: "profile_updated", email: u.Email})
}

func (a *recordingAuditor) LogUserDeleted(_ context.Context, _ uuid.UUID, u *models.User) {
	a.add(auditEvent{kind: "user_deleted", email: u.Email})
}

func (a *recordingAuditor) LogAccessDenied(_ context.Context, _ uuid.UUID, operation, _ string) {
	a.add(auditEvent{kind: "access_denied", reason: operation})
}

func newTestHasher(t *testing.T) auth.Hasher {
	t.Helper()
	return auth.NewBcryptHasher(4, 8)
}

func newTestCodec(t *testing.T) *auth.Codec {
	t.Helper()
	codec, err := auth.NewCodec(auth.CodecConfig{Secret: testSecret, Issuer: "authcore-test", TTL: time.Hour})
	require.NoError(t, err)
	return codec
}

func claimsFor(u *models.User) auth.Claims {
	return auth.Claims{Subject: u.ID.String(), Email: u.Email, Role: u.Role}
}
