package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/transport/http/middleware"
	"github.com/passgage/auth-gateway/internal/usecase"
)

// SecurityHandler exposes the monitor's retained events and per-caller view
// for operators.
type SecurityHandler struct {
	monitor *usecase.SecurityMonitor
	logger  *zap.Logger
}

// NewSecurityHandler constructs the security observability handler.
func NewSecurityHandler(monitor *usecase.SecurityMonitor, log *zap.Logger) *SecurityHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SecurityHandler{monitor: monitor, logger: log}
}

// Events handles GET /api/v1/security/events. Events are returned newest
// last; limit bounds the tail.
func (h *SecurityHandler) Events(c *gin.Context) {
	events := h.monitor.Events()

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse("limit must be a non-negative integer", middleware.GetTraceID(c)))
			return
		}
		if limit < len(events) {
			events = events[len(events)-limit:]
		}
	}

	out := make([]SecurityEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, SecurityEventResponse{
			ID:       event.ID,
			Type:     string(event.Type),
			CallerID: event.CallerID,
			Severity: string(event.Severity),
			At:       event.At,
			Details:  event.Details,
		})
	}

	c.JSON(http.StatusOK, gin.H{"events": out})
}

// Caller handles GET /api/v1/security/callers/:id.
func (h *SecurityHandler) Caller(c *gin.Context) {
	record, ok := h.monitor.CallerRecord(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, NewErrorResponse("caller not found", middleware.GetTraceID(c)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"caller_id":       record.CallerID,
		"failed_attempts": record.FailedAttempts,
		"risk_score":      record.RiskScore,
		"blocked_until":   record.BlockedUntil,
		"request_count":   len(record.RequestLog),
	})
}
