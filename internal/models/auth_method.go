package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AuthProvider is the closed set of ways a user can authenticate. The string
// form appears only at the persistence edge.
type AuthProvider string

const (
	ProviderPassword AuthProvider = "password"
	ProviderGoogle   AuthProvider = "google"
	ProviderGitHub   AuthProvider = "github"
	ProviderDiscord  AuthProvider = "discord"
	ProviderTwitter  AuthProvider = "twitter"
)

// ParseAuthProvider converts a stored or user-supplied string into a provider.
func ParseAuthProvider(raw string) (AuthProvider, error) {
	switch AuthProvider(strings.ToLower(raw)) {
	case ProviderPassword:
		return ProviderPassword, nil
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderGitHub:
		return ProviderGitHub, nil
	case ProviderDiscord:
		return ProviderDiscord, nil
	case ProviderTwitter:
		return ProviderTwitter, nil
	}
	return "", fmt.Errorf("unknown auth provider %q", raw)
}

// IsOAuth reports whether the provider is an external identity provider.
func (p AuthProvider) IsOAuth() bool {
	return p != ProviderPassword
}

// AuthMethod is one way a user authenticates. A user has at most one method
// per provider and at most one marked primary.
type AuthMethod struct {
	ID                string         `db:"id" json:"id"`
	UserID            string         `db:"user_id" json:"user_id"`
	Provider          string         `db:"provider" json:"provider"`
	ProviderID        sql.NullString `db:"provider_id" json:"provider_id,omitempty"`
	PasswordHash      sql.NullString `db:"password_hash" json:"-"`
	OAuthAccessToken  sql.NullString `db:"oauth_access_token" json:"-"`
	OAuthRefreshToken sql.NullString `db:"oauth_refresh_token" json:"-"`
	OAuthExpiresAt    sql.NullTime   `db:"oauth_expires_at" json:"-"`
	IsPrimary         bool           `db:"is_primary" json:"is_primary"`
	IsVerified        bool           `db:"is_verified" json:"is_verified"`
	LastUsedAt        sql.NullTime   `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}
