package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/accounts-api/internal/models"
	appErrors "github.com/noah-isme/accounts-api/pkg/errors"
)

const authMethodColumns = `id, user_id, provider, provider_id, password_hash, oauth_access_token, oauth_refresh_token, oauth_expires_at, is_primary, is_verified, last_used_at, created_at, updated_at`

// AuthMethodRepository provides database access for authentication methods.
type AuthMethodRepository struct {
	db *sqlx.DB
}

// NewAuthMethodRepository creates a new instance of AuthMethodRepository.
func NewAuthMethodRepository(db *sqlx.DB) *AuthMethodRepository {
	return &AuthMethodRepository{db: db}
}

// CreatePassword inserts a password auth method for a user.
func (r *AuthMethodRepository) CreatePassword(ctx context.Context, userID, passwordHash string, isPrimary bool) (*models.AuthMethod, error) {
	now := time.Now().UTC()
	method := &models.AuthMethod{
		ID:           uuid.NewString(),
		UserID:       userID,
		Provider:     string(models.ProviderPassword),
		PasswordHash: sql.NullString{String: passwordHash, Valid: true},
		IsPrimary:    isPrimary,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	const query = `INSERT INTO auth_methods (id, user_id, provider, password_hash, is_primary, is_verified, created_at, updated_at)
		VALUES (:id, :user_id, :provider, :password_hash, :is_primary, :is_verified, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, method); err != nil {
		var pqErr *pq.Error
		if isUniqueViolation(err, &pqErr) {
			return nil, appErrors.ErrConflict
		}
		return nil, fmt.Errorf("create password auth method: %w", err)
	}
	return method, nil
}

// CreateOAuth inserts an OAuth auth method linking a provider identity to a user.
func (r *AuthMethodRepository) CreateOAuth(ctx context.Context, userID string, provider models.AuthProvider, providerID string, isPrimary bool) (*models.AuthMethod, error) {
	now := time.Now().UTC()
	method := &models.AuthMethod{
		ID:         uuid.NewString(),
		UserID:     userID,
		Provider:   string(provider),
		ProviderID: sql.NullString{String: providerID, Valid: true},
		IsPrimary:  isPrimary,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	const query = `INSERT INTO auth_methods (id, user_id, provider, provider_id, is_primary, is_verified, created_at, updated_at)
		VALUES (:id, :user_id, :provider, :provider_id, :is_primary, :is_verified, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, method); err != nil {
		var pqErr *pq.Error
		if isUniqueViolation(err, &pqErr) {
			return nil, appErrors.ErrConflict
		}
		return nil, fmt.Errorf("create oauth auth method: %w", err)
	}
	return method, nil
}

// FindByUserAndProvider returns the user's auth method for a provider, or
// sql.ErrNoRows.
func (r *AuthMethodRepository) FindByUserAndProvider(ctx context.Context, userID string, provider models.AuthProvider) (*models.AuthMethod, error) {
	query := `SELECT ` + authMethodColumns + ` FROM auth_methods WHERE user_id = $1 AND provider = $2 LIMIT 1`
	var method models.AuthMethod
	if err := r.db.GetContext(ctx, &method, query, userID, string(provider)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find auth method by user and provider: %w", err)
	}
	return &method, nil
}

// FindByProviderID returns the auth method mapping a provider identity, or
// sql.ErrNoRows.
func (r *AuthMethodRepository) FindByProviderID(ctx context.Context, provider models.AuthProvider, providerID string) (*models.AuthMethod, error) {
	query := `SELECT ` + authMethodColumns + ` FROM auth_methods WHERE provider = $1 AND provider_id = $2 LIMIT 1`
	var method models.AuthMethod
	if err := r.db.GetContext(ctx, &method, query, string(provider), providerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find auth method by provider id: %w", err)
	}
	return &method, nil
}

// ListByUser returns all auth methods of a user.
func (r *AuthMethodRepository) ListByUser(ctx context.Context, userID string) ([]models.AuthMethod, error) {
	query := `SELECT ` + authMethodColumns + ` FROM auth_methods WHERE user_id = $1 ORDER BY created_at ASC`
	var methods []models.AuthMethod
	if err := r.db.SelectContext(ctx, &methods, query, userID); err != nil {
		return nil, fmt.Errorf("list auth methods: %w", err)
	}
	return methods, nil
}

// UpdatePassword replaces the stored password hash.
func (r *AuthMethodRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE auth_methods SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update auth method password: %w", err)
	}
	return nil
}

// Touch updates the last-used timestamp. Advisory; callers treat failure as
// non-fatal.
func (r *AuthMethodRepository) Touch(ctx context.Context, id string) error {
	const query = `UPDATE auth_methods SET last_used_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch auth method: %w", err)
	}
	return nil
}
