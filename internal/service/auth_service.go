package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/accounts-api/internal/models"
	"github.com/noah-isme/accounts-api/internal/token"
	appErrors "github.com/noah-isme/accounts-api/pkg/errors"
)

type tokenCodec interface {
	IssuePair(userID string, roles []models.UserRole) (*models.TokenPair, error)
	IssuePairForSession(userID string, roles []models.UserRole, sessionID string, sessionIssuedAt int64) (*models.TokenPair, error)
	ValidateAccess(tokenString string) (*models.JWTClaims, error)
	ValidateRefresh(tokenString string) (*models.JWTClaims, error)
	AccessExpiry() time.Duration
	RefreshExpiry() time.Duration
	MaxSessionDuration() time.Duration
}

type revocationIndex interface {
	Enabled() bool
	Blacklist(ctx context.Context, jti string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

type sessionManager interface {
	Create(ctx context.Context, userID, sessionID, authMethodID string, device models.DeviceInfo, expiresAt time.Time) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	List(ctx context.Context, userID string) ([]models.Session, error)
	Touch(ctx context.Context, sessionID string)
	Revoke(ctx context.Context, userID, rowID, reason string) error
	RevokeBySessionID(ctx context.Context, sessionID, reason string) (bool, error)
	RevokeAllExcept(ctx context.Context, userID, currentSessionID, reason string) (int64, error)
	RevokeAll(ctx context.Context, userID, reason string) (int64, error)
}

type credentialVerifier interface {
	VerifyPassword(ctx context.Context, userID, presented string) (*models.AuthMethod, bool, error)
	CreatePasswordAuth(ctx context.Context, userID, plaintext string, isPrimary bool) (*models.AuthMethod, error)
	UpdatePassword(ctx context.Context, methodID, plaintext string) error
	Touch(ctx context.Context, methodID string)
	ResolveOAuth(ctx context.Context, info models.OAuthUserInfo) (*models.User, OAuthResolution, error)
}

type userStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	CreateProfile(ctx context.Context, userID string) error
	UpdateProfileName(ctx context.Context, userID, fullName string) error
	FindWithProfile(ctx context.Context, id string) (*models.UserWithProfile, error)
}

// AuthService orchestrates registration, login, token rotation and session
// lifecycle. The session store is authoritative for revocation; the jti
// blacklist is a fast-path overlay that may be absent.
type AuthService struct {
	users     userStore
	methods   credentialVerifier
	sessions  sessionManager
	codec     tokenCodec
	blacklist revocationIndex
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users userStore, methods credentialVerifier, sessions sessionManager, codec tokenCodec, blacklist revocationIndex, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     users,
		methods:   methods,
		sessions:  sessions,
		codec:     codec,
		blacklist: blacklist,
		validator: validate,
		logger:    logger,
	}
}

// Register provisions a new account with a password credential and signs the
// user in. The refresh token is returned separately so the transport layer
// can place it in a cookie.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	user := &models.User{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Role:     models.RoleUser,
		IsActive: true,
	}
	if req.Username != "" {
		user.Username = sql.NullString{String: req.Username, Valid: true}
	}
	if err := s.users.Create(ctx, user); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, "", appErr
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if err := s.users.CreateProfile(ctx, user.ID); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile")
	}
	if req.FullName != "" {
		if err := s.users.UpdateProfileName(ctx, user.ID, req.FullName); err != nil {
			s.logger.Warn("failed to set profile name", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	method, err := s.methods.CreatePasswordAuth(ctx, user.ID, req.Password, true)
	if err != nil {
		return nil, "", appErrors.FromError(err)
	}

	pair, err := s.codec.IssuePair(user.ID, []models.UserRole{user.Role})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	s.recordSession(ctx, user.ID, method.ID, pair, req.UserAgent, req.IP)

	resp := &models.AuthResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
		User:        userInfo(user, req.FullName, ""),
		IssuedAt:    time.Unix(pair.SessionIssuedAt, 0).UTC(),
	}
	return resp, pair.RefreshToken, nil
}

// Login authenticates with email and password. Unknown email, wrong password
// and deactivated account are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.ErrInvalidCredentials
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.IsActive {
		return nil, "", appErrors.ErrInvalidCredentials
	}

	method, ok, err := s.methods.VerifyPassword(ctx, user.ID, req.Password)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify credentials")
	}
	if !ok {
		return nil, "", appErrors.ErrInvalidCredentials
	}
	s.methods.Touch(ctx, method.ID)

	pair, err := s.codec.IssuePair(user.ID, []models.UserRole{user.Role})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	s.recordSession(ctx, user.ID, method.ID, pair, req.UserAgent, req.IP)

	profile, err := s.users.FindWithProfile(ctx, user.ID)
	fullName, avatarURL := "", ""
	if err == nil {
		fullName = profile.FullName.String
		avatarURL = profile.AvatarURL.String
	}

	resp := &models.AuthResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
		User:        userInfo(user, fullName, avatarURL),
		IssuedAt:    time.Unix(pair.SessionIssuedAt, 0).UTC(),
	}
	return resp, pair.RefreshToken, nil
}

// OAuthLogin signs in a user resolved from an external identity provider,
// provisioning or linking the account as needed.
func (s *AuthService) OAuthLogin(ctx context.Context, info models.OAuthUserInfo) (*models.AuthResponse, string, error) {
	user, resolution, err := s.methods.ResolveOAuth(ctx, info)
	if err != nil {
		return nil, "", appErrors.FromError(err)
	}
	if !user.IsActive {
		return nil, "", appErrors.ErrInvalidCredentials
	}
	s.logger.Info("oauth sign-in",
		zap.String("user_id", user.ID),
		zap.String("provider", string(info.Provider)),
		zap.String("resolution", string(resolution)),
	)

	pair, err := s.codec.IssuePair(user.ID, []models.UserRole{user.Role})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	s.recordSession(ctx, user.ID, "", pair, info.UserAgent, info.IP)

	resp := &models.AuthResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
		User:        userInfo(user, info.Name, ""),
		IssuedAt:    time.Unix(pair.SessionIssuedAt, 0).UTC(),
	}
	return resp, pair.RefreshToken, nil
}

// RefreshToken rotates a refresh token into a new pair bound to the same
// session. The presented token's jti is blacklisted before the successor is
// returned, so the old token can never be replayed. Reuse of an already
// rotated token is treated as theft and revokes the whole session.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, string, error) {
	claims, err := s.codec.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, "", mapTokenError(err)
	}

	reused, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		// The session store below remains authoritative.
		s.logger.Warn("blacklist check failed", zap.Error(err))
	}
	if reused {
		s.logger.Warn("refresh token reuse detected, revoking session",
			zap.String("user_id", claims.UserID()),
			zap.String("session_id", claims.SessionID),
		)
		if _, err := s.sessions.RevokeBySessionID(ctx, claims.SessionID, models.RevokeReasonTokenReuse); err != nil {
			s.logger.Error("failed to revoke session after token reuse", zap.String("session_id", claims.SessionID), zap.Error(err))
		}
		return nil, "", appErrors.ErrSessionRevoked
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session == nil || !session.IsActive {
		return nil, "", appErrors.ErrSessionRevoked
	}
	if session.ExpiresAt.Before(time.Now().UTC()) {
		return nil, "", appErrors.ErrSessionExpired
	}

	// Roles are re-read so a role change takes effect at the next rotation
	// rather than persisting for the session's whole lifetime.
	user, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.ErrTokenInvalid
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.IsActive {
		return nil, "", appErrors.ErrSessionRevoked
	}

	pair, err := s.codec.IssuePairForSession(user.ID, []models.UserRole{user.Role}, claims.SessionID, claims.SessionIssuedAt)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	// Invalidate the presented token before handing out its successor.
	s.blacklistJTI(ctx, claims.ID, claims.ExpiresAt.Time, "rotated refresh token")
	s.sessions.Touch(ctx, claims.SessionID)

	resp := &models.TokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
		IssuedAt:    time.Now().UTC(),
	}
	return resp, pair.RefreshToken, nil
}

// Logout invalidates the presented tokens and their session. The access
// token's jti is blacklisted too so it stops working before its natural
// expiry. Best effort: a logout never fails, even with garbage tokens.
func (s *AuthService) Logout(ctx context.Context, refreshToken, accessToken string) {
	if accessToken != "" {
		if claims, err := s.codec.ValidateAccess(accessToken); err == nil {
			s.blacklistJTI(ctx, claims.ID, claims.ExpiresAt.Time, "access token on logout")
		}
	}

	if refreshToken == "" {
		return
	}
	claims, err := s.codec.ValidateRefresh(refreshToken)
	if err != nil {
		return
	}

	s.blacklistJTI(ctx, claims.ID, claims.ExpiresAt.Time, "refresh token on logout")
	if _, err := s.sessions.RevokeBySessionID(ctx, claims.SessionID, models.RevokeReasonLogout); err != nil {
		s.logger.Warn("failed to revoke session on logout", zap.String("session_id", claims.SessionID), zap.Error(err))
	}
}

// ChangePassword verifies the current password, stores the new one and
// revokes every other session.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentSessionID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid password payload")
	}

	method, ok, err := s.methods.VerifyPassword(ctx, userID, req.CurrentPassword)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify credentials")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}

	if err := s.methods.UpdatePassword(ctx, method.ID, req.NewPassword); err != nil {
		return appErrors.FromError(err)
	}

	revoked, err := s.sessions.RevokeAllExcept(ctx, userID, currentSessionID, models.RevokeReasonPasswordChange)
	if err != nil {
		s.logger.Error("failed to revoke sessions after password change", zap.String("user_id", userID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke other sessions")
	}
	s.logger.Info("password changed", zap.String("user_id", userID), zap.Int64("sessions_revoked", revoked))
	return nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.users.FindWithProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	info := userInfo(&user.User, user.FullName.String, user.AvatarURL.String)
	return &info, nil
}

// ListSessions returns the user's active sessions, flagging the current one.
func (s *AuthService) ListSessions(ctx context.Context, userID, currentSessionID string) ([]models.SessionInfo, error) {
	sessions, err := s.sessions.List(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	infos := make([]models.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, models.SessionInfo{
			ID:           sess.ID,
			DeviceName:   sess.DeviceName.String,
			DeviceType:   sess.DeviceType.String,
			IPAddress:    sess.IPAddress,
			Location:     sess.Location.String,
			CreatedAt:    sess.CreatedAt,
			LastActiveAt: sess.LastActiveAt,
			IsCurrent:    sess.SessionID == currentSessionID,
		})
	}
	return infos, nil
}

// RevokeSession revokes one of the user's sessions by row id.
func (s *AuthService) RevokeSession(ctx context.Context, userID, rowID string) error {
	return s.sessions.Revoke(ctx, userID, rowID, models.RevokeReasonUserRevoked)
}

// RevokeOtherSessions signs the user out everywhere except the current
// session. Returns the number of sessions revoked.
func (s *AuthService) RevokeOtherSessions(ctx context.Context, userID, currentSessionID string) (int64, error) {
	revoked, err := s.sessions.RevokeAllExcept(ctx, userID, currentSessionID, models.RevokeReasonLogoutOther)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke sessions")
	}
	return revoked, nil
}

// recordSession persists the session row backing a fresh token pair. Best
// effort: the tokens are already minted, and refresh will fail closed if the
// row is missing.
func (s *AuthService) recordSession(ctx context.Context, userID, authMethodID string, pair *models.TokenPair, userAgent, ip string) {
	device := models.DeviceInfoFromUserAgent(userAgent, ip)
	expiresAt := time.Unix(pair.SessionIssuedAt, 0).UTC().Add(s.codec.MaxSessionDuration())
	if _, err := s.sessions.Create(ctx, userID, pair.SessionID, authMethodID, device, expiresAt); err != nil {
		s.logger.Error("failed to record session", zap.String("user_id", userID), zap.String("session_id", pair.SessionID), zap.Error(err))
	}
}

// blacklistJTI writes a jti to the revocation index, retrying once. A write
// that fails twice is only logged; the session store stays authoritative.
func (s *AuthService) blacklistJTI(ctx context.Context, jti string, expiresAt time.Time, what string) {
	err := s.blacklist.Blacklist(ctx, jti, expiresAt)
	if err == nil {
		return
	}
	s.logger.Warn("blacklist write failed, retrying", zap.String("what", what), zap.String("jti", jti), zap.Error(err))
	if err := s.blacklist.Blacklist(ctx, jti, expiresAt); err != nil {
		s.logger.Error("blacklist write failed", zap.String("what", what), zap.String("jti", jti), zap.Error(err))
	}
}

func userInfo(user *models.User, fullName, avatarURL string) models.UserInfo {
	return models.UserInfo{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username.String,
		FullName:  fullName,
		AvatarURL: avatarURL,
		Role:      user.Role,
	}
}

func mapTokenError(err error) *appErrors.Error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return appErrors.ErrTokenExpired
	case errors.Is(err, token.ErrSessionExpired):
		return appErrors.ErrSessionExpired
	case errors.Is(err, token.ErrWrongKind):
		return appErrors.ErrWrongTokenKind
	default:
		return appErrors.ErrTokenInvalid
	}
}
