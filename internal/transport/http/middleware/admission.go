package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/infra/security"
)

// AdmissionChecker is the security monitor slice the middleware needs.
type AdmissionChecker interface {
	CheckAdmission(ctx context.Context, callerID string) domain.Admission
}

// CallerIdentity derives the caller id from the client address and
// signature and stores it on the request context. Everything keyed by
// caller identity downstream reads it from here.
func CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CallerIDKey, security.CallerIdentity(c.ClientIP(), c.Request.UserAgent()))
		c.Next()
	}
}

// Admit rejects rate-limited or locked-out callers on REST routes with a
// 429 and a Retry-After hint. Admitted requests carry rate-limit headers.
// The JSON-RPC gateway performs the same check inside its handler so its
// rejections use the wire envelope instead.
func Admit(monitor AdmissionChecker, limit int, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		callerID := GetCallerID(c)
		if callerID == "" {
			callerID = security.CallerIdentity(c.ClientIP(), c.Request.UserAgent())
			c.Set(CallerIDKey, callerID)
		}

		admission := monitor.CheckAdmission(c.Request.Context(), callerID)

		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(maxInt(admission.Remaining, 0)))

		if admission.Allowed {
			c.Next()
			return
		}

		retrySeconds := int(math.Ceil(admission.RetryAfter.Seconds()))
		if retrySeconds < 0 {
			retrySeconds = 0
		}
		headers.Set("Retry-After", strconv.Itoa(retrySeconds))

		message := "rate limit exceeded"
		if admission.Blocked {
			message = "temporarily blocked after repeated failures"
		}

		log.Warn("request rejected by security monitor",
			zap.String("caller_id", callerID),
			zap.Bool("blocked", admission.Blocked),
			zap.Int("retry_after_seconds", retrySeconds),
		)

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       message,
			"retry_after": retrySeconds,
			"trace_id":    GetTraceID(c),
		})
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
