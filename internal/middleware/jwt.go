package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/accounts-api/internal/models"
	"github.com/noah-isme/accounts-api/internal/token"
	appErrors "github.com/noah-isme/accounts-api/pkg/errors"
	"github.com/noah-isme/accounts-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

type accessValidator interface {
	ValidateAccess(tokenString string) (*models.JWTClaims, error)
}

// RevocationChecker reports whether a token id has been invalidated ahead of
// its natural expiry.
type RevocationChecker interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// JWT protects routes by requiring a valid access token. When a revocation
// index is supplied, blacklisted jtis are rejected even before the token
// expires; a nil or failing index degrades to signature-and-expiry checks.
func JWT(codec accessValidator, blacklist RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := codec.ValidateAccess(parts[1])
		if err != nil {
			response.Error(c, mapAccessError(err))
			c.Abort()
			return
		}

		if blacklist != nil {
			if revoked, err := blacklist.IsBlacklisted(c.Request.Context(), claims.ID); err == nil && revoked {
				response.Error(c, appErrors.ErrTokenInvalid)
				c.Abort()
				return
			}
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// CurrentClaims retrieves the authenticated claims from the context.
func CurrentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}

func mapAccessError(err error) *appErrors.Error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return appErrors.ErrTokenExpired
	case errors.Is(err, token.ErrWrongKind):
		return appErrors.ErrWrongTokenKind
	default:
		return appErrors.ErrTokenInvalid
	}
}
