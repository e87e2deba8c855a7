package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID.
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the gin context key for trace ID.
	TraceIDKey = "trace_id"
	// CallerIDKey is the gin context key for the derived caller identity.
	CallerIDKey = "caller_id"
)

// EnrichContext propagates or generates a trace ID for each request.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetCallerID retrieves the caller identity set by the admission middleware.
func GetCallerID(c *gin.Context) string {
	if callerID, exists := c.Get(CallerIDKey); exists {
		if id, ok := callerID.(string); ok {
			return id
		}
	}
	return ""
}
