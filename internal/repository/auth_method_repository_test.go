package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/accounts-api/internal/models"
	appErrors "github.com/noah-isme/accounts-api/pkg/errors"
)

func authMethodRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "user_id", "provider", "provider_id", "password_hash",
		"oauth_access_token", "oauth_refresh_token", "oauth_expires_at",
		"is_primary", "is_verified", "last_used_at", "created_at", "updated_at",
	}).AddRow("am-1", "u1", "password", nil, "$argon2id$hash", nil, nil, nil, true, false, nil, now, now)
}

func TestAuthMethodRepositoryCreatePassword(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewAuthMethodRepository(db)

	mock.ExpectExec("INSERT INTO auth_methods").
		WithArgs(sqlmock.AnyArg(), "u1", "password", "$argon2id$hash", true, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	method, err := repo.CreatePassword(context.Background(), "u1", "$argon2id$hash", true)
	require.NoError(t, err)
	assert.Equal(t, string(models.ProviderPassword), method.Provider)
	assert.True(t, method.IsPrimary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthMethodRepositoryCreateOAuthDuplicate(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewAuthMethodRepository(db)

	mock.ExpectExec("INSERT INTO auth_methods").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "auth_methods_user_id_provider_key"})

	_, err := repo.CreateOAuth(context.Background(), "u1", models.ProviderGoogle, "google-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthMethodRepositoryFindByUserAndProvider(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewAuthMethodRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + authMethodColumns + ` FROM auth_methods WHERE user_id = $1 AND provider = $2 LIMIT 1`)).
		WithArgs("u1", "password").
		WillReturnRows(authMethodRows())

	method, err := repo.FindByUserAndProvider(context.Background(), "u1", models.ProviderPassword)
	require.NoError(t, err)
	assert.Equal(t, "am-1", method.ID)
	assert.True(t, method.PasswordHash.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthMethodRepositoryFindByProviderIDMissing(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewAuthMethodRepository(db)

	mock.ExpectQuery("SELECT .+ FROM auth_methods WHERE provider = ").
		WithArgs("google", "absent").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByProviderID(context.Background(), models.ProviderGoogle, "absent")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthMethodRepositoryUpdatePassword(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewAuthMethodRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE auth_methods SET password_hash = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("am-1", "$argon2id$new", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), "am-1", "$argon2id$new"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
