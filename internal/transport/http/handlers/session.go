package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/transport/http/middleware"
	"github.com/passgage/auth-gateway/internal/usecase"
)

// SessionHandler serves the REST session lifecycle: create, introspect,
// switch mode, update tokens, destroy.
type SessionHandler struct {
	sessions *usecase.SessionManager
	monitor  *usecase.SecurityMonitor
	logger   *zap.Logger
}

// NewSessionHandler constructs the session REST handler.
func NewSessionHandler(sessions *usecase.SessionManager, monitor *usecase.SecurityMonitor, log *zap.Logger) *SessionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionHandler{sessions: sessions, monitor: monitor, logger: log}
}

// Create handles POST /api/v1/sessions. Login attempts feed the security
// monitor so credential stuffing against this endpoint trips the lockout.
func (h *SessionHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	callerID := middleware.GetCallerID(c)

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.monitor.RecordOutcome(ctx, callerID, "sessions.create", false, "")
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request body", middleware.GetTraceID(c)))
		return
	}

	id, err := h.sessions.Create(ctx, usecase.CredentialInput{
		APIKey:       req.APIKey,
		UserEmail:    req.UserEmail,
		UserPassword: req.UserPassword,
	})
	if err != nil {
		h.monitor.RecordOutcome(ctx, callerID, "sessions.create", false, "")
		respondWithMappedError(c, h.logger, err)
		return
	}

	h.monitor.RecordOutcome(ctx, callerID, "sessions.create", true, id)

	session, err := h.sessions.Get(ctx, id)
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: id,
		Mode:      string(session.Mode),
		ExpiresAt: session.ExpiresAt,
	})
}

// Get handles GET /api/v1/sessions/:id. Credential values are masked down
// to presence flags.
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, sessionView(session))
}

// SwitchMode handles POST /api/v1/sessions/:id/mode.
func (h *SessionHandler) SwitchMode(c *gin.Context) {
	var req SwitchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request body", middleware.GetTraceID(c)))
		return
	}

	mode, ok := domain.ParseAuthMode(req.Mode)
	if !ok || mode == domain.AuthModeNone {
		c.JSON(http.StatusBadRequest, NewErrorResponse("mode must be company or user", middleware.GetTraceID(c)))
		return
	}

	switched, err := h.sessions.SwitchMode(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}
	if !switched {
		c.JSON(http.StatusConflict, NewErrorResponse("session lacks credentials for the requested mode", middleware.GetTraceID(c)))
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, sessionView(session))
}

// UpdateTokens handles POST /api/v1/sessions/:id/tokens.
func (h *SessionHandler) UpdateTokens(c *gin.Context) {
	var req UpdateTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request body", middleware.GetTraceID(c)))
		return
	}

	if req.JWTToken == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse("jwt_token is required", middleware.GetTraceID(c)))
		return
	}

	updated, err := h.sessions.UpdateTokens(c.Request.Context(), c.Param("id"), req.JWTToken, req.RefreshToken)
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, NewErrorResponse("session not found, please re-authenticate", middleware.GetTraceID(c)))
		return
	}

	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/sessions/:id. Deleting an absent session is
// not an error.
func (h *SessionHandler) Delete(c *gin.Context) {
	if _, err := h.sessions.Destroy(c.Request.Context(), c.Param("id")); err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Stats handles GET /api/v1/sessions/stats.
func (h *SessionHandler) Stats(c *gin.Context) {
	count, err := h.sessions.ActiveCount(c.Request.Context())
	if err != nil {
		respondWithMappedError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, SessionStatsResponse{ActiveSessions: count})
}

func sessionView(session *domain.Session) SessionResponse {
	return SessionResponse{
		ID:         session.ID,
		Mode:       string(session.Mode),
		HasAPIKey:  session.Credentials.HasCompany(),
		UserEmail:  session.Credentials.UserEmail,
		HasTokens:  session.Credentials.JWTToken != "",
		CreatedAt:  session.CreatedAt,
		ExpiresAt:  session.ExpiresAt,
		LastUsedAt: session.LastUsedAt,
	}
}
