package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/accounts-api/internal/models"
	"github.com/noah-isme/accounts-api/internal/token"
	"github.com/noah-isme/accounts-api/pkg/config"
)

func testCodec() *token.Codec {
	return token.NewCodec(config.JWTConfig{
		AccessSecret:       "access-secret",
		RefreshSecret:      "refresh-secret",
		AccessExpiry:       time.Hour,
		RefreshExpiry:      24 * time.Hour,
		MaxSessionDuration: 24 * time.Hour,
		Issuer:             "test",
	})
}

type stubRevocation struct {
	revoked  map[string]bool
	checkErr error
}

func (s *stubRevocation) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if s.checkErr != nil {
		return false, s.checkErr
	}
	return s.revoked[jti], nil
}

func protectedRouter(codec *token.Codec, blacklist RevocationChecker, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(codec, blacklist)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		claims, _ := CurrentClaims(c)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID()})
	})
	router.GET("/protected", handlers...)
	return router
}

func TestJWTMiddlewareAllowsValidToken(t *testing.T) {
	codec := testCodec()
	pair, err := codec.IssuePair("u1", []models.UserRole{models.RoleUser})
	require.NoError(t, err)

	router := protectedRouter(codec, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u1")
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	router := protectedRouter(testCodec(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddlewareRejectsRefreshToken(t *testing.T) {
	codec := testCodec()
	pair, err := codec.IssuePair("u1", []models.UserRole{models.RoleUser})
	require.NoError(t, err)

	router := protectedRouter(codec, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	router.ServeHTTP(w, req)

	// Signed with the refresh secret, so it fails signature validation.
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddlewareRejectsGarbage(t *testing.T) {
	router := protectedRouter(testCodec(), nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_INVALID")
}

func TestJWTMiddlewareRejectsBlacklistedToken(t *testing.T) {
	codec := testCodec()
	pair, err := codec.IssuePair("u1", []models.UserRole{models.RoleUser})
	require.NoError(t, err)
	claims, err := codec.ValidateAccess(pair.AccessToken)
	require.NoError(t, err)

	// Logout blacklists the access jti; the token must stop working right
	// away even though its signature and expiry still check out.
	index := &stubRevocation{revoked: map[string]bool{claims.ID: true}}
	router := protectedRouter(codec, index)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_INVALID")
}

func TestJWTMiddlewareIndexOutageDegrades(t *testing.T) {
	codec := testCodec()
	pair, err := codec.IssuePair("u1", []models.UserRole{models.RoleUser})
	require.NoError(t, err)

	index := &stubRevocation{checkErr: assert.AnError}
	router := protectedRouter(codec, index)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	router.ServeHTTP(w, req)

	// A failing index never locks out valid tokens.
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoles(t *testing.T) {
	codec := testCodec()
	router := protectedRouter(codec, nil, RequireRoles(models.RoleAdmin))

	adminPair, err := codec.IssuePair("admin-1", []models.UserRole{models.RoleAdmin})
	require.NoError(t, err)
	userPair, err := codec.IssuePair("user-1", []models.UserRole{models.RoleUser})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+adminPair.AccessToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+userPair.AccessToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
