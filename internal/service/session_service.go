package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/accounts-api/internal/models"
	appErrors "github.com/noah-isme/accounts-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, userID, sessionID, authMethodID string, device models.DeviceInfo, expiresAt time.Time) (*models.Session, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Session, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListActive(ctx context.Context, userID string) ([]models.Session, error)
	Touch(ctx context.Context, sessionID string) error
	Revoke(ctx context.Context, id, reason string) (bool, error)
	RevokeBySessionID(ctx context.Context, sessionID, reason string) (bool, error)
	RevokeAllExcept(ctx context.Context, userID, exceptSessionID, reason string) (int64, error)
	RevokeAll(ctx context.Context, userID, reason string) (int64, error)
	CountActive(ctx context.Context, userID string) (int64, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// SessionService manages the durable session records behind token pairs.
type SessionService struct {
	repo   sessionRepository
	logger *zap.Logger
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(repo sessionRepository, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, logger: logger}
}

// Create records a new session. expiresAt is the absolute ceiling fixed at
// login time.
func (s *SessionService) Create(ctx context.Context, userID, sessionID, authMethodID string, device models.DeviceInfo, expiresAt time.Time) (*models.Session, error) {
	return s.repo.Create(ctx, userID, sessionID, authMethodID, device, expiresAt)
}

// Get returns the session for an opaque session id, or nil when absent.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

// List returns a user's active sessions, most recently active first.
func (s *SessionService) List(ctx context.Context, userID string) ([]models.Session, error) {
	return s.repo.ListActive(ctx, userID)
}

// Touch updates last-active. Advisory: failures are logged, never propagated,
// so a slow or unavailable database cannot block the surrounding request.
func (s *SessionService) Touch(ctx context.Context, sessionID string) {
	if err := s.repo.Touch(ctx, sessionID); err != nil {
		s.logger.Warn("failed to touch session", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// IsValid reports whether the session exists, is active, and has not lapsed.
func (s *SessionService) IsValid(ctx context.Context, sessionID string) (bool, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session == nil || !session.IsActive {
		return false, nil
	}
	if session.ExpiresAt.Before(time.Now().UTC()) {
		return false, nil
	}
	return true, nil
}

// Revoke marks a session inactive by row id after verifying ownership.
// Returns ErrNotFound when the row does not exist or belongs to another user.
func (s *SessionService) Revoke(ctx context.Context, userID, rowID, reason string) error {
	session, err := s.repo.FindByID(ctx, rowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return err
	}
	if session.UserID != userID {
		// Indistinguishable from absence so row ids cannot be probed.
		return appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}

	if _, err := s.repo.Revoke(ctx, rowID, reason); err != nil {
		return err
	}
	return nil
}

// RevokeBySessionID marks a session inactive by opaque session id.
func (s *SessionService) RevokeBySessionID(ctx context.Context, sessionID, reason string) (bool, error) {
	return s.repo.RevokeBySessionID(ctx, sessionID, reason)
}

// RevokeAllExcept revokes every other session of the user.
func (s *SessionService) RevokeAllExcept(ctx context.Context, userID, currentSessionID, reason string) (int64, error) {
	return s.repo.RevokeAllExcept(ctx, userID, currentSessionID, reason)
}

// RevokeAll revokes every session of the user.
func (s *SessionService) RevokeAll(ctx context.Context, userID, reason string) (int64, error) {
	return s.repo.RevokeAll(ctx, userID, reason)
}

// CountActive returns the number of live sessions for a user.
func (s *SessionService) CountActive(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountActive(ctx, userID)
}

// CleanupExpired sweeps lapsed sessions. Intended to run on a schedule.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.CleanupExpired(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("expired sessions swept", zap.Int64("count", count))
	}
	return count, nil
}
