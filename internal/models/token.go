package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes access from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// JWTClaims is the payload carried by both token kinds. Every token belongs
// to exactly one session: SessionID and SessionIssuedAt are shared by the
// pair and survive rotation, bounding the session's absolute lifetime.
type JWTClaims struct {
	Roles           []UserRole `json:"roles"`
	Kind            TokenKind  `json:"kind"`
	SessionID       string     `json:"sid"`
	SessionIssuedAt int64      `json:"s_iat"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *JWTClaims) UserID() string {
	return c.Subject
}

// HasRole reports whether the claims carry the given role.
func (c *JWTClaims) HasRole(role UserRole) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenPair is one access/refresh issuance sharing a session.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	ExpiresIn       int64
	SessionID       string
	SessionIssuedAt int64
}
