package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/authcore/internal/auth"
	"github.com/upb/authcore/models"
	"github.com/upb/authcore/repositories"
	"go.uber.org/zap"
)

var userRowColumns = []string{"id", "name", "email", "password_hash", "role", "created_at", "updated_at"}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return WrapDB(db, zap.NewNop()), mock
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts user with role name", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := models.NewUser("Ada", "ada@example.com", "$2a$04$hash", auth.RoleUser)

		mock.ExpectExec("INSERT INTO users").
			WithArgs(sqlmock.AnyArg(), "Ada", "ada@example.com", "$2a$04$hash", "USER", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("assigns id when zero", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := &models.User{Name: "Bob", Email: "bob@example.com", PasswordHash: "h", Role: auth.RoleUser}

		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, user))
		assert.NotEqual(t, uuid.Nil, user.ID)
	})

	uniqueErrors := map[string]error{
		"lib/pq": &pq.Error{Code: "23505"},
		"pgx":    &pgconn.PgError{Code: "23505"},
	}
	for name, driverErr := range uniqueErrors {
		t.Run("unique violation from "+name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewUserRepository(db, zap.NewNop())
			user := models.NewUser("Ada", "ada@example.com", "h", auth.RoleUser)

			mock.ExpectExec("INSERT INTO users").WillReturnError(driverErr)

			err := repo.Create(ctx, user)
			assert.ErrorIs(t, err, repositories.ErrDuplicateEmail)
		})
	}

	t.Run("other errors are wrapped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		boom := errors.New("connection reset")

		mock.ExpectExec("INSERT INTO users").WillReturnError(boom)

		err := repo.Create(ctx, models.NewUser("Ada", "ada@example.com", "h", auth.RoleUser))
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, repositories.ErrDuplicateEmail)
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(id.String(), "Ada", "ada@example.com", "h", "ADMIN", now, now))

		user, err := repo.GetByEmail(ctx, "  Ada@Example.com ")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, auth.RoleAdmin, user.Role)
		assert.Equal(t, "h", user.PasswordHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM users").WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("stored role is invalid", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM users").
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(id.String(), "Ada", "ada@example.com", "h", "ROOT", now, now))

		_, err := repo.GetByEmail(ctx, "ada@example.com")
		assert.ErrorIs(t, err, auth.ErrUnknownRole)
	})
}

func TestUserRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM users ORDER BY created_at").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(uuid.NewString(), "Ada", "ada@example.com", "h", "ADMIN", now, now).
			AddRow(uuid.NewString(), "Bob", "bob@example.com", "h", "USER", now, now))

	users, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ada", users[0].Name)
	assert.Equal(t, auth.RoleUser, users[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	user := models.NewUser("Ada", "ada@example.com", "h", auth.RoleUser)

	t.Run("update", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE users").
			WithArgs(sqlmock.AnyArg(), "Ada", "ada@example.com", "USER", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Update(ctx, user))
	})

	t.Run("update missing row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Update(ctx, user), repositories.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("DELETE FROM users WHERE id = \\$1").WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(ctx, user.ID))
	})

	t.Run("delete missing row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(ctx, user.ID), repositories.ErrNotFound)
	})
}
