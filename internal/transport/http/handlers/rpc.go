package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/core/port"
	"github.com/passgage/auth-gateway/internal/transport/http/middleware"
	"github.com/passgage/auth-gateway/internal/usecase"
)

// SessionHeader carries the opaque session id. It wins over the
// Authorization bearer form when both are present.
const SessionHeader = "X-Session-Id"

// JSON-RPC 2.0 error codes, standard range plus the gateway's
// implementation-defined block.
const (
	codeParseError       = -32700
	codeInvalidRequest   = -32600
	codeMethodNotFound   = -32601
	codeInternalError    = -32603
	codeRateLimited      = -32000
	codeBlocked          = -32001
	codeAuthRequired     = -32002
	codeModeSwitchDenied = -32003
)

// rpcRequest is the inbound JSON-RPC 2.0 envelope. Mode optionally overrides
// the session's active auth mode for this request only.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Mode    string          `json:"mode,omitempty"`
}

type rpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// RPCHandler is the wire gateway: it sequences admission, session
// resolution, auth-context resolution and dispatch for every JSON-RPC call,
// and serialises the outcome back into the 2.0 envelope. Transport errors
// always travel as envelope errors over HTTP 200.
type RPCHandler struct {
	sessions   *usecase.SessionManager
	monitor    *usecase.SecurityMonitor
	resolver   *usecase.AuthContextResolver
	dispatcher port.CommandDispatcher
	logger     *zap.Logger
}

// NewRPCHandler constructs the gateway handler.
func NewRPCHandler(
	sessions *usecase.SessionManager,
	monitor *usecase.SecurityMonitor,
	resolver *usecase.AuthContextResolver,
	dispatcher port.CommandDispatcher,
	log *zap.Logger,
) *RPCHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RPCHandler{
		sessions:   sessions,
		monitor:    monitor,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// Handle serves POST /rpc.
func (h *RPCHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondRPCError(c, nil, codeParseError, "unable to read request body", nil)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondRPCError(c, nil, codeParseError, "invalid JSON", nil)
		return
	}

	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		respondRPCError(c, req.ID, codeInvalidRequest, "jsonrpc must be \"2.0\" and method must be set", nil)
		return
	}

	override := domain.AuthModeNone
	if req.Mode != "" {
		mode, ok := domain.ParseAuthMode(req.Mode)
		if !ok {
			respondRPCError(c, req.ID, codeInvalidRequest, "unknown auth mode", map[string]any{"mode": req.Mode})
			return
		}
		override = mode
	}

	callerID := middleware.GetCallerID(c)

	admission := h.monitor.CheckAdmission(ctx, callerID)
	if !admission.Allowed {
		retrySeconds := int(math.Ceil(admission.RetryAfter.Seconds()))
		if retrySeconds < 0 {
			retrySeconds = 0
		}
		data := map[string]any{"retry_after_seconds": retrySeconds}

		if admission.Blocked {
			respondRPCError(c, req.ID, codeBlocked, "temporarily blocked after repeated failures", data)
			return
		}
		respondRPCError(c, req.ID, codeRateLimited, "rate limit exceeded", data)
		return
	}

	var session *domain.Session
	if token := sessionToken(c); token != "" {
		session, err = h.sessions.Get(ctx, token)
		if err != nil {
			h.monitor.RecordOutcome(ctx, callerID, req.Method, false, "")
			if errors.Is(err, usecase.ErrSessionNotFound) || errors.Is(err, usecase.ErrSessionExpired) {
				respondRPCError(c, req.ID, codeAuthRequired, "session invalid or expired, please re-authenticate", nil)
				return
			}
			h.logger.Error("session lookup failed", zap.String("method", req.Method), zap.Error(err))
			respondRPCError(c, req.ID, codeInternalError, "internal error", nil)
			return
		}
	}

	sessionID := ""
	if session != nil {
		sessionID = session.ID
	}

	auth, err := h.resolver.Resolve(session, override)
	if err != nil {
		h.monitor.RecordOutcome(ctx, callerID, req.Method, false, sessionID)
		if errors.Is(err, usecase.ErrModeUnavailable) {
			respondRPCError(c, req.ID, codeModeSwitchDenied, "session lacks credentials for the requested mode", map[string]any{"mode": string(override)})
			return
		}
		h.logger.Error("auth context resolution failed", zap.String("method", req.Method), zap.Error(err))
		respondRPCError(c, req.ID, codeInternalError, "internal error", nil)
		return
	}

	result, err := h.dispatcher.Dispatch(ctx, auth, port.Command{Name: req.Method, Params: req.Params})

	// The outcome is recorded unconditionally once dispatch ran; a caller
	// disconnect does not roll it back.
	h.monitor.RecordOutcome(ctx, callerID, req.Method, err == nil, sessionID)

	if err != nil {
		if errors.Is(err, port.ErrUnknownCommand) {
			respondRPCError(c, req.ID, codeMethodNotFound, "method not found", map[string]any{"method": req.Method})
			return
		}
		h.logger.Error("dispatch failed", zap.String("method", req.Method), zap.Error(err))
		respondRPCError(c, req.ID, codeInternalError, "internal error", nil)
		return
	}

	c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// MethodNotAllowed answers non-POST verbs on the RPC route with an envelope
// error instead of a bare HTTP status.
func (h *RPCHandler) MethodNotAllowed(c *gin.Context) {
	respondRPCError(c, nil, codeInvalidRequest, "rpc requests must use POST", nil)
}

// sessionToken extracts the session id from the dedicated header, falling
// back to the Authorization bearer form.
func sessionToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(SessionHeader)); token != "" {
		return token
	}

	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

func respondRPCError(c *gin.Context, id json.RawMessage, code int, message string, data map[string]any) {
	c.JSON(http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	})
}
