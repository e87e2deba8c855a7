package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/transport/http/middleware"
	"github.com/passgage/auth-gateway/internal/usecase"
)

// respondWithMappedError translates domain and use-case errors into REST
// status codes. Unclassified errors are logged in full and reported
// opaquely.
func respondWithMappedError(c *gin.Context, log *zap.Logger, err error) {
	traceID := middleware.GetTraceID(c)

	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error(), traceID))
	case errors.Is(err, usecase.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, NewErrorResponse("session not found, please re-authenticate", traceID))
	case errors.Is(err, usecase.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, NewErrorResponse("session expired, please re-authenticate", traceID))
	case errors.Is(err, usecase.ErrModeUnavailable):
		c.JSON(http.StatusConflict, NewErrorResponse(err.Error(), traceID))
	default:
		if log != nil {
			log.Error("request failed",
				zap.String("trace_id", traceID),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse("internal error", traceID))
	}
}
