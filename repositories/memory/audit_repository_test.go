package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/authcore/models"
)

func TestAuditRepository_Filters(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository()
	subject := uuid.New()

	for i := 0; i < 3; i++ {
		entry := models.NewAuditLog(models.AuditActionLoginSucceeded, models.AuditOutcomeSuccess).
			WithSubject(subject).
			WithRequest(models.RequestMeta{RequestID: "req-a"})
		require.NoError(t, repo.Insert(ctx, entry))
	}
	require.NoError(t, repo.Insert(ctx, models.NewAuditLog(models.AuditActionLoginFailed, models.AuditOutcomeFailure).
		WithRequest(models.RequestMeta{RequestID: "req-b"})))

	logs, err := repo.GetBySubjectID(ctx, subject, 2, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = repo.GetBySubjectID(ctx, subject, 10, 2)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, "req-a", logs[0].RequestID)

	logs, err = repo.GetBySubjectID(ctx, uuid.New(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
