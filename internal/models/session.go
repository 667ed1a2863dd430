package models

import (
	"database/sql"
	"strings"
	"time"
)

// Session is the durable record of one login instance (one device/browser).
// Its absolute expiry is fixed at creation and never extended by token
// rotation.
type Session struct {
	ID            string         `db:"id" json:"id"`
	UserID        string         `db:"user_id" json:"user_id"`
	AuthMethodID  sql.NullString `db:"auth_method_id" json:"auth_method_id,omitempty"`
	SessionID     string         `db:"session_id" json:"session_id"`
	DeviceName    sql.NullString `db:"device_name" json:"device_name,omitempty"`
	DeviceType    sql.NullString `db:"device_type" json:"device_type,omitempty"`
	IPAddress     string         `db:"ip_address" json:"ip_address"`
	UserAgent     sql.NullString `db:"user_agent" json:"user_agent,omitempty"`
	Location      sql.NullString `db:"location" json:"location,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	LastActiveAt  time.Time      `db:"last_active_at" json:"last_active_at"`
	ExpiresAt     time.Time      `db:"expires_at" json:"expires_at"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	RevokedAt     sql.NullTime   `db:"revoked_at" json:"revoked_at,omitempty"`
	RevokedReason sql.NullString `db:"revoked_reason" json:"revoked_reason,omitempty"`
}

// Session revocation reasons.
const (
	RevokeReasonLogout         = "user_logout"
	RevokeReasonUserRevoked    = "user_revoked"
	RevokeReasonLogoutOther    = "logout_other"
	RevokeReasonPasswordChange = "password_change"
	RevokeReasonTokenReuse     = "token_reuse"
	RevokeReasonAdmin          = "admin_revoked"
	RevokeReasonExpired        = "expired"
)

// DeviceInfo describes the client that established a session.
type DeviceInfo struct {
	Name       string
	DeviceType string
	UserAgent  string
	IPAddress  string
}

// DeviceInfoFromUserAgent derives a human-readable device descriptor from a
// raw User-Agent header.
func DeviceInfoFromUserAgent(userAgent, ip string) DeviceInfo {
	name, deviceType := parseUserAgent(userAgent)
	return DeviceInfo{
		Name:       name,
		DeviceType: deviceType,
		UserAgent:  userAgent,
		IPAddress:  ip,
	}
}

func parseUserAgent(ua string) (string, string) {
	lower := strings.ToLower(ua)

	deviceType := "desktop"
	if strings.Contains(lower, "mobile") {
		deviceType = "mobile"
	} else if strings.Contains(lower, "tablet") || strings.Contains(lower, "ipad") {
		deviceType = "tablet"
	}

	browser := "Unknown"
	switch {
	case strings.Contains(lower, "edge"):
		browser = "Edge"
	case strings.Contains(lower, "chrome"):
		browser = "Chrome"
	case strings.Contains(lower, "firefox"):
		browser = "Firefox"
	case strings.Contains(lower, "safari"):
		browser = "Safari"
	}

	os := "Unknown"
	switch {
	case strings.Contains(lower, "windows"):
		os = "Windows"
	case strings.Contains(lower, "macintosh"), strings.Contains(lower, "mac os"):
		os = "macOS"
	case strings.Contains(lower, "android"):
		os = "Android"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"):
		os = "iOS"
	case strings.Contains(lower, "linux"):
		os = "Linux"
	}

	return browser + " on " + os, deviceType
}
