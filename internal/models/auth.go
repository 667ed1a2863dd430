package models

import "time"

// RegisterRequest holds the payload for creating an account.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"omitempty,min=3,max=32,alphanum"`
	Password  string `json:"password" validate:"required,min=8"`
	FullName  string `json:"name" validate:"omitempty,max=100"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Username  string   `json:"username,omitempty"`
	FullName  string   `json:"name,omitempty"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	Role      UserRole `json:"role"`
}

// AuthResponse returns the issued access token and user info. The refresh
// token travels separately in an HTTP-only cookie.
type AuthResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// TokenResponse returns a refreshed access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// RefreshTokenRequest carries a refresh token in the body for clients that
// cannot use the cookie.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest payload for updating the password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// UpdateRoleRequest payload for the admin role endpoint.
type UpdateRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=admin user"`
}

// SessionInfo describes one active session in list responses.
type SessionInfo struct {
	ID           string    `json:"id"`
	DeviceName   string    `json:"device"`
	DeviceType   string    `json:"device_type,omitempty"`
	IPAddress    string    `json:"ip"`
	Location     string    `json:"location,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	IsCurrent    bool      `json:"is_current"`
}

// OAuthUserInfo is the identity reported by an OAuth provider, reduced to
// the fields account linking needs.
type OAuthUserInfo struct {
	Provider   AuthProvider
	ProviderID string
	Email      string
	Name       string
	IP         string
	UserAgent  string
}
