package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/accounts-api/internal/models"
)

func newSessionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "user_id", "auth_method_id", "session_id", "device_name", "device_type",
		"ip_address", "user_agent", "location", "created_at", "last_active_at",
		"expires_at", "is_active", "revoked_at", "revoked_reason",
	}).AddRow("row-1", "u1", "am-1", "sid-1", "Chrome on Linux", "desktop",
		"10.0.0.1", "Mozilla/5.0", nil, now, now, now.Add(time.Hour), true, nil, nil)
}

func TestSessionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("INSERT INTO user_sessions").
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), "sid-1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"10.0.0.1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	device := models.DeviceInfoFromUserAgent("Mozilla/5.0 (X11; Linux x86_64) Chrome/120", "10.0.0.1")
	session, err := repo.Create(context.Background(), "u1", "sid-1", "am-1", device, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.True(t, session.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindBySessionID(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + sessionColumns + ` FROM user_sessions WHERE session_id = $1 LIMIT 1`)).
		WithArgs("sid-1").
		WillReturnRows(sessionRows())

	session, err := repo.FindBySessionID(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "sid-1", session.SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindBySessionIDMissing(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery("SELECT .+ FROM user_sessions WHERE session_id").
		WithArgs("absent").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindBySessionID(context.Background(), "absent")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryRevokeIdempotent(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE user_sessions SET is_active = FALSE, revoked_at = $2, revoked_reason = $3 WHERE id = $1 AND is_active = TRUE`)).
		WithArgs("row-1", sqlmock.AnyArg(), models.RevokeReasonLogout).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE user_sessions SET is_active = FALSE, revoked_at = $2, revoked_reason = $3 WHERE id = $1 AND is_active = TRUE`)).
		WithArgs("row-1", sqlmock.AnyArg(), models.RevokeReasonLogout).
		WillReturnResult(sqlmock.NewResult(0, 0))

	revoked, err := repo.Revoke(context.Background(), "row-1", models.RevokeReasonLogout)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = repo.Revoke(context.Background(), "row-1", models.RevokeReasonLogout)
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryRevokeAllExcept(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE user_sessions SET is_active = FALSE, revoked_at = $3, revoked_reason = $4 WHERE user_id = $1 AND session_id != $2 AND is_active = TRUE`)).
		WithArgs("u1", "sid-current", sqlmock.AnyArg(), models.RevokeReasonPasswordChange).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.RevokeAllExcept(context.Background(), "u1", "sid-current", models.RevokeReasonPasswordChange)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + sessionColumns + ` FROM user_sessions WHERE user_id = $1 AND is_active = TRUE ORDER BY last_active_at DESC`)).
		WithArgs("u1").
		WillReturnRows(sessionRows())

	sessions, err := repo.ListActive(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sid-1", sessions[0].SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCleanupExpired(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE user_sessions SET is_active = FALSE, revoked_at = $1, revoked_reason = $2 WHERE is_active = TRUE AND expires_at < $1`)).
		WithArgs(sqlmock.AnyArg(), models.RevokeReasonExpired).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := repo.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
