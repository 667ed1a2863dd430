// Package token encodes and decodes the signed, time-bound access and
// refresh tokens. Access and refresh tokens use separate signing secrets;
// both carry the owning session id and the session's original issue time so
// the absolute session ceiling survives rotation.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/accounts-api/internal/models"
	"github.com/noah-isme/accounts-api/pkg/config"
)

var (
	ErrExpired        = errors.New("token has expired")
	ErrInvalid        = errors.New("invalid token")
	ErrWrongKind      = errors.New("wrong token kind")
	ErrSessionExpired = errors.New("session expired: absolute timeout reached")
	ErrSigningFailed  = errors.New("token signing failed")
)

// Codec issues and validates token pairs.
type Codec struct {
	cfg config.JWTConfig
}

// NewCodec constructs a Codec from validated configuration.
func NewCodec(cfg config.JWTConfig) *Codec {
	return &Codec{cfg: cfg}
}

// IssuePair mints an access/refresh pair under a brand-new session id.
// Called at register/login time.
func (c *Codec) IssuePair(userID string, roles []models.UserRole) (*models.TokenPair, error) {
	sessionID := uuid.NewString()
	return c.IssuePairForSession(userID, roles, sessionID, time.Now().UTC().Unix())
}

// IssuePairForSession mints a pair bound to an existing session, preserving
// its original issue time. Called on rotation.
func (c *Codec) IssuePairForSession(userID string, roles []models.UserRole, sessionID string, sessionIssuedAt int64) (*models.TokenPair, error) {
	access, err := c.sign(userID, roles, models.TokenKindAccess, sessionID, sessionIssuedAt, c.cfg.AccessExpiry, c.cfg.AccessSecret)
	if err != nil {
		return nil, err
	}

	// Refresh tokens carry no roles: a stolen refresh token must be
	// exchanged before it grants any authorization.
	refresh, err := c.sign(userID, nil, models.TokenKindRefresh, sessionID, sessionIssuedAt, c.cfg.RefreshExpiry, c.cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		ExpiresIn:       int64(c.cfg.AccessExpiry.Seconds()),
		SessionID:       sessionID,
		SessionIssuedAt: sessionIssuedAt,
	}, nil
}

// ValidateAccess verifies an access token and returns its claims.
func (c *Codec) ValidateAccess(tokenString string) (*models.JWTClaims, error) {
	claims, err := c.parse(tokenString, c.cfg.AccessSecret)
	if err != nil {
		return nil, err
	}
	if claims.Kind != models.TokenKindAccess {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// ValidateRefresh verifies a refresh token and additionally enforces the
// absolute session ceiling: the token is rejected once the session is older
// than MaxSessionDuration even if its own expiry has not passed.
func (c *Codec) ValidateRefresh(tokenString string) (*models.JWTClaims, error) {
	claims, err := c.parse(tokenString, c.cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}
	if claims.Kind != models.TokenKindRefresh {
		return nil, ErrWrongKind
	}

	ceiling := claims.SessionIssuedAt + int64(c.cfg.MaxSessionDuration.Seconds())
	if time.Now().UTC().Unix() > ceiling {
		return nil, ErrSessionExpired
	}

	return claims, nil
}

// AccessExpiry exposes the configured access-token lifetime.
func (c *Codec) AccessExpiry() time.Duration {
	return c.cfg.AccessExpiry
}

// RefreshExpiry exposes the configured refresh-token lifetime.
func (c *Codec) RefreshExpiry() time.Duration {
	return c.cfg.RefreshExpiry
}

// MaxSessionDuration exposes the absolute session ceiling.
func (c *Codec) MaxSessionDuration() time.Duration {
	return c.cfg.MaxSessionDuration
}

func (c *Codec) sign(userID string, roles []models.UserRole, kind models.TokenKind, sessionID string, sessionIssuedAt int64, ttl time.Duration, secret string) (string, error) {
	now := time.Now().UTC()
	if roles == nil {
		roles = []models.UserRole{}
	}

	claims := &models.JWTClaims{
		Roles:           roles,
		Kind:            kind,
		SessionID:       sessionID,
		SessionIssuedAt: sessionIssuedAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return signed, nil
}

func (c *Codec) parse(tokenString, secret string) (*models.JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*models.JWTClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}

	return claims, nil
}
