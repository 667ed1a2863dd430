package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blacklistKeyPrefix = "token:blacklist:"

// BlacklistRepository is the fast-path revocation index keyed by token jti.
// It is defense in depth, not the source of truth: the session store's
// is_active flag stays authoritative. A nil Redis client degrades to
// session-store-only enforcement rather than failing.
type BlacklistRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewBlacklistRepository constructs a blacklist repository. client may be nil.
func NewBlacklistRepository(client *redis.Client, logger *zap.Logger) *BlacklistRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlacklistRepository{client: client, logger: logger}
}

// Enabled reports whether the fast-path index is available.
func (r *BlacklistRepository) Enabled() bool {
	return r.client != nil
}

// Blacklist stores the jti with TTL equal to the token's remaining lifetime.
// Tokens already past their natural expiry need no entry; there is nothing
// left to protect.
func (r *BlacklistRepository) Blacklist(ctx context.Context, jti string, expiresAt time.Time) error {
	if r.client == nil {
		return nil
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, blacklistKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist jti %s: %w", jti, err)
	}
	return nil
}

// IsBlacklisted reports whether the jti has been explicitly invalidated.
func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if r.client == nil {
		return false, nil
	}

	n, err := r.client.Exists(ctx, blacklistKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist for jti %s: %w", jti, err)
	}
	return n > 0, nil
}

// Close releases the underlying Redis connection if present.
func (r *BlacklistRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
