package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/accounts-api/internal/models"
)

const sessionColumns = `id, user_id, auth_method_id, session_id, device_name, device_type, ip_address, user_agent, location, created_at, last_active_at, expires_at, is_active, revoked_at, revoked_reason`

// SessionRepository provides database access for login sessions. The
// user_sessions table carries a unique constraint on session_id; that
// constraint, not in-process locking, is what keeps concurrent logins from
// corrupting each other.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session record. ExpiresAt is fixed here and never moves.
func (r *SessionRepository) Create(ctx context.Context, userID, sessionID string, authMethodID string, device models.DeviceInfo, expiresAt time.Time) (*models.Session, error) {
	now := time.Now().UTC()
	session := &models.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		SessionID:    sessionID,
		DeviceName:   sql.NullString{String: device.Name, Valid: device.Name != ""},
		DeviceType:   sql.NullString{String: device.DeviceType, Valid: device.DeviceType != ""},
		IPAddress:    device.IPAddress,
		UserAgent:    sql.NullString{String: device.UserAgent, Valid: device.UserAgent != ""},
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
		IsActive:     true,
	}
	if authMethodID != "" {
		session.AuthMethodID = sql.NullString{String: authMethodID, Valid: true}
	}

	const query = `INSERT INTO user_sessions (id, user_id, auth_method_id, session_id, device_name, device_type, ip_address, user_agent, created_at, last_active_at, expires_at, is_active)
		VALUES (:id, :user_id, :auth_method_id, :session_id, :device_name, :device_type, :ip_address, :user_agent, :created_at, :last_active_at, :expires_at, :is_active)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// FindBySessionID returns a session by its opaque session id, or sql.ErrNoRows.
func (r *SessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE session_id = $1 LIMIT 1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by session id: %w", err)
	}
	return &session, nil
}

// FindByID returns a session by row id, or sql.ErrNoRows.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE id = $1 LIMIT 1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return &session, nil
}

// ListActive returns a user's active sessions, most recently active first.
func (r *SessionRepository) ListActive(ctx context.Context, userID string) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE user_id = $1 AND is_active = TRUE ORDER BY last_active_at DESC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// Touch updates the last-active timestamp of an active session.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string) error {
	const query = `UPDATE user_sessions SET last_active_at = $2 WHERE session_id = $1 AND is_active = TRUE`
	if _, err := r.db.ExecContext(ctx, query, sessionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Revoke marks a session inactive by row id. Returns whether a row actually
// transitioned, so a second call reports false.
func (r *SessionRepository) Revoke(ctx context.Context, id, reason string) (bool, error) {
	const query = `UPDATE user_sessions SET is_active = FALSE, revoked_at = $2, revoked_reason = $3 WHERE id = $1 AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC(), reason)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke session rows affected: %w", err)
	}
	return affected > 0, nil
}

// RevokeBySessionID marks a session inactive by its opaque session id.
func (r *SessionRepository) RevokeBySessionID(ctx context.Context, sessionID, reason string) (bool, error) {
	const query = `UPDATE user_sessions SET is_active = FALSE, revoked_at = $2, revoked_reason = $3 WHERE session_id = $1 AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, sessionID, time.Now().UTC(), reason)
	if err != nil {
		return false, fmt.Errorf("revoke session by session id: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke session rows affected: %w", err)
	}
	return affected > 0, nil
}

// RevokeAllExcept revokes every active session of a user except the given
// one. Returns the number of sessions revoked.
func (r *SessionRepository) RevokeAllExcept(ctx context.Context, userID, exceptSessionID, reason string) (int64, error) {
	const query = `UPDATE user_sessions SET is_active = FALSE, revoked_at = $3, revoked_reason = $4 WHERE user_id = $1 AND session_id != $2 AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, userID, exceptSessionID, time.Now().UTC(), reason)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions except: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions rows affected: %w", err)
	}
	return affected, nil
}

// RevokeAll revokes every active session of a user.
func (r *SessionRepository) RevokeAll(ctx context.Context, userID, reason string) (int64, error) {
	const query = `UPDATE user_sessions SET is_active = FALSE, revoked_at = $2, revoked_reason = $3 WHERE user_id = $1 AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC(), reason)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions rows affected: %w", err)
	}
	return affected, nil
}

// CountActive returns the number of active sessions for a user.
func (r *SessionRepository) CountActive(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM user_sessions WHERE user_id = $1 AND is_active = TRUE`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

// CleanupExpired sweeps lapsed sessions into the revoked state. Housekeeping
// only; expiry is enforced lazily at validation time regardless.
func (r *SessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	const query = `UPDATE user_sessions SET is_active = FALSE, revoked_at = $1, revoked_reason = $2 WHERE is_active = TRUE AND expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), models.RevokeReasonExpired)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup expired rows affected: %w", err)
	}
	return affected, nil
}
