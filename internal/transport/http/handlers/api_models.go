package handlers

import "time"

// CreateSessionRequest is the login payload. At least one credential class
// must be present; both may be.
type CreateSessionRequest struct {
	APIKey       string `json:"api_key,omitempty"`
	UserEmail    string `json:"user_email,omitempty"`
	UserPassword string `json:"user_password,omitempty"`
}

// CreateSessionResponse returns the opaque session id and its fixed expiry.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse is the introspection view of a session. Credential values
// are never echoed back; only their presence is reported.
type SessionResponse struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	HasAPIKey  bool      `json:"has_api_key"`
	UserEmail  string    `json:"user_email,omitempty"`
	HasTokens  bool      `json:"has_tokens"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// SwitchModeRequest names the mode the session should act under.
type SwitchModeRequest struct {
	Mode string `json:"mode"`
}

// UpdateTokensRequest carries tokens obtained from an upstream login or
// refresh.
type UpdateTokensRequest struct {
	JWTToken     string `json:"jwt_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// SessionStatsResponse reports the stored session count.
type SessionStatsResponse struct {
	ActiveSessions int `json:"active_sessions"`
}

// SecurityEventResponse is the wire view of one retained security event.
type SecurityEventResponse struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	CallerID string         `json:"caller_id"`
	Severity string         `json:"severity"`
	At       time.Time      `json:"at"`
	Details  map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the uniform REST error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse builds an error body carrying the request trace id.
func NewErrorResponse(message, traceID string) ErrorResponse {
	return ErrorResponse{Error: message, TraceID: traceID}
}
