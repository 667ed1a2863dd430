package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/accounts-api/internal/models"
	appErrors "github.com/noah-isme/accounts-api/pkg/errors"
	"github.com/noah-isme/accounts-api/pkg/password"
)

type authMethodRepository interface {
	CreatePassword(ctx context.Context, userID, passwordHash string, isPrimary bool) (*models.AuthMethod, error)
	CreateOAuth(ctx context.Context, userID string, provider models.AuthProvider, providerID string, isPrimary bool) (*models.AuthMethod, error)
	FindByUserAndProvider(ctx context.Context, userID string, provider models.AuthProvider) (*models.AuthMethod, error)
	FindByProviderID(ctx context.Context, provider models.AuthProvider, providerID string) (*models.AuthMethod, error)
	ListByUser(ctx context.Context, userID string) ([]models.AuthMethod, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Touch(ctx context.Context, id string) error
}

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	CreateProfile(ctx context.Context, userID string) error
	UpdateProfileName(ctx context.Context, userID, fullName string) error
}

// OAuthResolution describes how an OAuth identity mapped onto a local account.
type OAuthResolution string

const (
	// ResolutionExisting means the provider identity was already linked.
	ResolutionExisting OAuthResolution = "existing"
	// ResolutionLinked means an account with the same email existed and the
	// provider was attached to it as a non-primary method.
	ResolutionLinked OAuthResolution = "linked"
	// ResolutionCreated means a brand-new account was provisioned.
	ResolutionCreated OAuthResolution = "created"
)

// AuthMethodService verifies credentials and manages the auth methods linked
// to a user. Password verification never reports why it failed.
type AuthMethodService struct {
	methods authMethodRepository
	users   authUserRepository
	logger  *zap.Logger
}

// NewAuthMethodService constructs an AuthMethodService instance.
func NewAuthMethodService(methods authMethodRepository, users authUserRepository, logger *zap.Logger) *AuthMethodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMethodService{methods: methods, users: users, logger: logger}
}

// VerifyPassword checks the presented password against the user's stored
// hash. A user without a password method, a missing hash, and a wrong
// password all collapse into the same false result; only infrastructure
// failures surface as errors.
func (s *AuthMethodService) VerifyPassword(ctx context.Context, userID, presented string) (*models.AuthMethod, bool, error) {
	method, err := s.methods.FindByUserAndProvider(ctx, userID, models.ProviderPassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !method.PasswordHash.Valid {
		return nil, false, nil
	}

	ok, err := password.Verify(presented, method.PasswordHash.String)
	if err != nil {
		if errors.Is(err, password.ErrMalformedHash) {
			s.logger.Error("stored password hash is malformed", zap.String("auth_method_id", method.ID))
			return nil, false, nil
		}
		return nil, false, err
	}
	return method, ok, nil
}

// CreatePasswordAuth hashes the password and stores it as an auth method.
func (s *AuthMethodService) CreatePasswordAuth(ctx context.Context, userID, plaintext string, isPrimary bool) (*models.AuthMethod, error) {
	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrHashingFailed.Code, appErrors.ErrHashingFailed.Status, appErrors.ErrHashingFailed.Message)
	}
	return s.methods.CreatePassword(ctx, userID, hash, isPrimary)
}

// UpdatePassword replaces the stored hash for a password auth method.
func (s *AuthMethodService) UpdatePassword(ctx context.Context, methodID, plaintext string) error {
	hash, err := password.Hash(plaintext)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrHashingFailed.Code, appErrors.ErrHashingFailed.Status, appErrors.ErrHashingFailed.Message)
	}
	return s.methods.UpdatePassword(ctx, methodID, hash)
}

// ListByUser returns all auth methods linked to a user.
func (s *AuthMethodService) ListByUser(ctx context.Context, userID string) ([]models.AuthMethod, error) {
	return s.methods.ListByUser(ctx, userID)
}

// Touch records credential use. Advisory: failures are logged and swallowed.
func (s *AuthMethodService) Touch(ctx context.Context, methodID string) {
	if err := s.methods.Touch(ctx, methodID); err != nil {
		s.logger.Warn("failed to touch auth method", zap.String("auth_method_id", methodID), zap.Error(err))
	}
}

// ResolveOAuth maps a provider identity onto a local account, in order of
// preference: an existing link, an account sharing the verified email, or a
// newly provisioned account.
func (s *AuthMethodService) ResolveOAuth(ctx context.Context, info models.OAuthUserInfo) (*models.User, OAuthResolution, error) {
	method, err := s.methods.FindByProviderID(ctx, info.Provider, info.ProviderID)
	if err == nil {
		user, err := s.users.FindByID(ctx, method.UserID)
		if err != nil {
			return nil, "", err
		}
		s.Touch(ctx, method.ID)
		return user, ResolutionExisting, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", err
	}

	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email != "" {
		user, err := s.users.FindByEmail(ctx, email)
		if err == nil {
			if _, err := s.methods.CreateOAuth(ctx, user.ID, info.Provider, info.ProviderID, false); err != nil {
				return nil, "", err
			}
			return user, ResolutionLinked, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, "", err
		}
	}

	user := &models.User{
		Email:    email,
		Role:     models.RoleUser,
		IsActive: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}
	if err := s.users.CreateProfile(ctx, user.ID); err != nil {
		return nil, "", err
	}
	if info.Name != "" {
		if err := s.users.UpdateProfileName(ctx, user.ID, info.Name); err != nil {
			s.logger.Warn("failed to set profile name from oauth", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	if _, err := s.methods.CreateOAuth(ctx, user.ID, info.Provider, info.ProviderID, true); err != nil {
		return nil, "", err
	}
	return user, ResolutionCreated, nil
}
