package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/accounts-api/internal/middleware"
	"github.com/noah-isme/accounts-api/internal/models"
	"github.com/noah-isme/accounts-api/internal/service"
	"github.com/noah-isme/accounts-api/pkg/config"
	appErrors "github.com/noah-isme/accounts-api/pkg/errors"
	"github.com/noah-isme/accounts-api/pkg/response"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

type authService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, string, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, string, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, string, error)
	Logout(ctx context.Context, refreshToken, accessToken string)
	ChangePassword(ctx context.Context, userID, currentSessionID string, req models.ChangePasswordRequest) error
	Me(ctx context.Context, userID string) (*models.UserInfo, error)
}

// AuthHandler wires HTTP endpoints to the auth service. The refresh token
// never appears in a response body for browser clients; it travels in an
// HTTP-only cookie scoped to the auth endpoints.
type AuthHandler struct {
	service   authService
	metrics   *service.MetricsService
	cookie    config.CookieConfig
	apiPrefix string
	maxAge    int
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, metrics *service.MetricsService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		service:   svc,
		metrics:   metrics,
		cookie:    cfg.Cookie,
		apiPrefix: cfg.APIPrefix,
		maxAge:    int(cfg.JWT.RefreshExpiry.Seconds()),
	}
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(sameSiteMode(h.cookie.SameSite))
	c.SetCookie(RefreshCookieName, token, h.maxAge, h.apiPrefix+"/auth", "", h.cookie.Secure, h.cookie.HTTPOnly)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(sameSiteMode(h.cookie.SameSite))
	c.SetCookie(RefreshCookieName, "", -1, h.apiPrefix+"/auth", "", h.cookie.Secure, h.cookie.HTTPOnly)
}

// refreshTokenFrom reads the refresh token from the cookie, falling back to
// the request body for non-browser clients.
func refreshTokenFrom(c *gin.Context) string {
	if cookie, err := c.Cookie(RefreshCookieName); err == nil && cookie != "" {
		return cookie
	}
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

// bearerTokenFrom extracts the token from the Authorization header, if any.
func bearerTokenFrom(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func sameSiteMode(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Register godoc
// @Summary Register a new account
// @Description Create an account with email and password, then sign in
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, refresh, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, refresh)
	response.JSON(c, http.StatusCreated, res, nil)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, refresh, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.metrics.RecordLoginAttempt("failure")
		response.Error(c, err)
		return
	}
	h.metrics.RecordLoginAttempt("success")

	h.setRefreshCookie(c, refresh)
	response.JSON(c, http.StatusOK, res, nil)
}

// Refresh godoc
// @Summary Refresh access token
// @Description Rotate the refresh token and mint a new access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	presented := refreshTokenFrom(c)
	if presented == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token required"))
		return
	}

	res, refresh, err := h.service.RefreshToken(c.Request.Context(), presented)
	if err != nil {
		// The token is spent either way; make the browser drop it.
		h.clearRefreshCookie(c)
		response.Error(c, err)
		return
	}
	h.metrics.RecordTokenRotation()

	h.setRefreshCookie(c, refresh)
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the session behind the presented refresh token and invalidate the access token
// @Tags Authentication
// @Produce json
// @Success 204 "No Content"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.service.Logout(c.Request.Context(), refreshTokenFrom(c), bearerTokenFrom(c))
	h.clearRefreshCookie(c)
	response.NoContent(c)
}

// Me godoc
// @Summary Current user
// @Description Return the authenticated user's profile
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.service.Me(c.Request.Context(), claims.UserID())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, info, nil)
}

// ChangePassword godoc
// @Summary Change password
// @Description Change the password and revoke every other session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "Password payload"
// @Success 204 "No Content"
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid password payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), claims.UserID(), claims.SessionID, req); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSessionRevoked(models.RevokeReasonPasswordChange)

	response.NoContent(c)
}
