package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	OAuth    OAuthConfig
	CORS     CORSConfig
	Log      LogConfig
	Sessions SessionsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// JWTConfig carries token signing material and lifetimes. Access and refresh
// tokens are signed with different secrets so a compromised key for one kind
// cannot forge the other.
type JWTConfig struct {
	AccessSecret       string
	RefreshSecret      string
	AccessExpiry       time.Duration
	RefreshExpiry      time.Duration
	MaxSessionDuration time.Duration
	Issuer             string
}

// CookieConfig controls the refresh-token cookie attributes.
type CookieConfig struct {
	SameSite string
	Secure   bool
	HTTPOnly bool
}

// OAuthProviderConfig holds one provider's client credentials.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type OAuthConfig struct {
	Google OAuthProviderConfig
	GitHub OAuthProviderConfig
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SessionsConfig tunes the expired-session sweep.
type SessionsConfig struct {
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Enabled:  v.GetBool("REDIS_ENABLED"),
	}

	refreshExpiry := time.Duration(v.GetInt64("JWT_REFRESH_EXPIRY_SECS")) * time.Second
	maxSession := time.Duration(v.GetInt64("JWT_MAX_SESSION_SECS")) * time.Second
	if maxSession <= 0 {
		// Refresh TTL doubles as the absolute session ceiling unless
		// configured separately.
		maxSession = refreshExpiry
	}

	cfg.JWT = JWTConfig{
		AccessSecret:       v.GetString("JWT_ACCESS_SECRET"),
		RefreshSecret:      v.GetString("JWT_REFRESH_SECRET"),
		AccessExpiry:       time.Duration(v.GetInt64("JWT_ACCESS_EXPIRY_SECS")) * time.Second,
		RefreshExpiry:      refreshExpiry,
		MaxSessionDuration: maxSession,
		Issuer:             v.GetString("JWT_ISSUER"),
	}

	sameSite := strings.ToLower(v.GetString("COOKIE_SAMESITE"))
	if sameSite == "" {
		// Strict blocks cross-port local setups, so development defaults to Lax.
		if cfg.Env == EnvProduction {
			sameSite = "strict"
		} else {
			sameSite = "lax"
		}
	}
	secure := cfg.Env == EnvProduction
	if v.IsSet("COOKIE_SECURE") {
		secure = v.GetBool("COOKIE_SECURE")
	}
	httpOnly := true
	if v.IsSet("COOKIE_HTTPONLY") {
		httpOnly = v.GetBool("COOKIE_HTTPONLY")
	}
	cfg.Cookie = CookieConfig{
		SameSite: sameSite,
		Secure:   secure,
		HTTPOnly: httpOnly,
	}

	cfg.OAuth = OAuthConfig{
		Google: OAuthProviderConfig{
			ClientID:     v.GetString("OAUTH_GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("OAUTH_GOOGLE_CLIENT_SECRET"),
			RedirectURL:  v.GetString("OAUTH_GOOGLE_REDIRECT_URL"),
		},
		GitHub: OAuthProviderConfig{
			ClientID:     v.GetString("OAUTH_GITHUB_CLIENT_ID"),
			ClientSecret: v.GetString("OAUTH_GITHUB_CLIENT_SECRET"),
			RedirectURL:  v.GetString("OAUTH_GITHUB_REDIRECT_URL"),
		},
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Sessions = SessionsConfig{
		CleanupInterval: parseDuration(v.GetString("SESSION_CLEANUP_INTERVAL"), time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that must hold before the server starts.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.JWT.AccessExpiry <= 0 || c.JWT.RefreshExpiry <= 0 {
		return fmt.Errorf("token expiries must be positive")
	}
	switch c.Cookie.SameSite {
	case "strict", "lax", "none":
	default:
		return fmt.Errorf("COOKIE_SAMESITE must be strict, lax or none, got %q", c.Cookie.SameSite)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "accounts")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_ENABLED", true)

	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_EXPIRY_SECS", 3600)
	v.SetDefault("JWT_REFRESH_EXPIRY_SECS", 604800)
	v.SetDefault("JWT_MAX_SESSION_SECS", 0)
	v.SetDefault("JWT_ISSUER", "accounts-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SESSION_CLEANUP_INTERVAL", "1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
