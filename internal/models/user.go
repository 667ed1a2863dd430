package models

import (
	"database/sql"
	"time"
)

// UserRole represents the available roles.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// User represents an application user. Credentials live in auth_methods, not
// here; a user row is identity only.
type User struct {
	ID        string         `db:"id" json:"id"`
	Email     string         `db:"email" json:"email"`
	Username  sql.NullString `db:"username" json:"username,omitempty"`
	Role      UserRole       `db:"role" json:"role"`
	IsActive  bool           `db:"is_active" json:"is_active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Profile holds the presentation fields attached to a user.
type Profile struct {
	UserID    string         `db:"user_id" json:"user_id"`
	FullName  sql.NullString `db:"full_name" json:"full_name,omitempty"`
	AvatarURL sql.NullString `db:"avatar_url" json:"avatar_url,omitempty"`
	Bio       sql.NullString `db:"bio" json:"bio,omitempty"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// UserWithProfile joins a user with its profile for responses.
type UserWithProfile struct {
	User
	FullName  sql.NullString `db:"full_name" json:"full_name,omitempty"`
	AvatarURL sql.NullString `db:"avatar_url" json:"avatar_url,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
