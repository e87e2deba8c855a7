package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReadinessCheck probes one dependency. A nil error means ready.
type ReadinessCheck func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes. Liveness is
// unconditional; readiness runs the registered dependency checks.
type HealthHandler struct {
	checks map[string]ReadinessCheck
	logger *zap.Logger
}

// NewHealthHandler constructs a health handler with no checks registered.
func NewHealthHandler(log *zap.Logger) *HealthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthHandler{checks: make(map[string]ReadinessCheck), logger: log}
}

// WithCheck registers a named readiness probe.
func (h *HealthHandler) WithCheck(name string, check ReadinessCheck) *HealthHandler {
	h.checks[name] = check
	return h
}

// Live handles GET /healthz.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /readyz.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
}
