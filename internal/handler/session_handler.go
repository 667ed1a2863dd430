package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/accounts-api/internal/middleware"
	"github.com/noah-isme/accounts-api/internal/models"
	"github.com/noah-isme/accounts-api/internal/service"
	appErrors "github.com/noah-isme/accounts-api/pkg/errors"
	"github.com/noah-isme/accounts-api/pkg/response"
)

type sessionService interface {
	ListSessions(ctx context.Context, userID, currentSessionID string) ([]models.SessionInfo, error)
	RevokeSession(ctx context.Context, userID, rowID string) error
	RevokeOtherSessions(ctx context.Context, userID, currentSessionID string) (int64, error)
}

// SessionHandler exposes a user's own session management endpoints.
type SessionHandler struct {
	service sessionService
	metrics *service.MetricsService
}

// NewSessionHandler creates a new handler.
func NewSessionHandler(svc sessionService, metrics *service.MetricsService) *SessionHandler {
	return &SessionHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List active sessions
// @Description List the caller's active sessions, flagging the current one
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessions, err := h.service.ListSessions(c.Request.Context(), claims.UserID(), claims.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sessions, nil)
}

// Revoke godoc
// @Summary Revoke one session
// @Description Revoke one of the caller's sessions by id
// @Tags Sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 204 "No Content"
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/sessions/{id} [delete]
func (h *SessionHandler) Revoke(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.RevokeSession(c.Request.Context(), claims.UserID(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSessionRevoked(models.RevokeReasonUserRevoked)

	response.NoContent(c)
}

// RevokeOthers godoc
// @Summary Logout everywhere else
// @Description Revoke every session except the current one
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/sessions [delete]
func (h *SessionHandler) RevokeOthers(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	revoked, err := h.service.RevokeOtherSessions(c.Request.Context(), claims.UserID(), claims.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSessionRevoked(models.RevokeReasonLogoutOther)

	response.JSON(c, http.StatusOK, gin.H{"revoked": revoked}, nil)
}
