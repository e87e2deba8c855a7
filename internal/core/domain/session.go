package domain

import (
	"strings"
	"time"
)

// AuthMode enumerates which credential class a session is currently acting under.
type AuthMode string

const (
	// AuthModeCompany uses the organisation-wide Passgage API key.
	AuthModeCompany AuthMode = "company"
	// AuthModeUser uses an individual user's email/password login and JWT.
	AuthModeUser AuthMode = "user"
	// AuthModeNone means no credential class is active.
	AuthModeNone AuthMode = "none"
)

// ParseAuthMode normalises textual input into a supported auth mode.
func ParseAuthMode(value string) (AuthMode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(AuthModeCompany):
		return AuthModeCompany, true
	case string(AuthModeUser):
		return AuthModeUser, true
	case string(AuthModeNone):
		return AuthModeNone, true
	default:
		return AuthModeNone, false
	}
}

// CredentialBundle holds every credential a caller has submitted for a session.
// UserPasswordEncrypted is ciphertext produced by the credential cipher; the
// plaintext never reaches a store.
type CredentialBundle struct {
	APIKey                string `json:"api_key,omitempty"`
	UserEmail             string `json:"user_email,omitempty"`
	UserPasswordEncrypted string `json:"user_password_encrypted,omitempty"`
	JWTToken              string `json:"jwt_token,omitempty"`
	RefreshToken          string `json:"refresh_token,omitempty"`
}

// HasCompany reports whether the bundle can back company-mode requests.
func (b CredentialBundle) HasCompany() bool {
	return b.APIKey != ""
}

// HasUser reports whether the bundle can back user-mode requests.
func (b CredentialBundle) HasUser() bool {
	return b.UserEmail != ""
}

// Supports reports whether the bundle carries the credential class required by mode.
func (b CredentialBundle) Supports(mode AuthMode) bool {
	switch mode {
	case AuthModeCompany:
		return b.HasCompany()
	case AuthModeUser:
		return b.HasUser()
	case AuthModeNone:
		return true
	default:
		return false
	}
}

// Session binds an opaque token to a caller's credential bundle and active mode.
type Session struct {
	ID          string           `json:"id"`
	Mode        AuthMode         `json:"mode"`
	Credentials CredentialBundle `json:"credentials"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	LastUsedAt  time.Time        `json:"last_used_at"`
}

// IsExpired reports whether the session has passed its fixed expiry.
// Expiry is set once at creation; activity does not extend it.
func (s Session) IsExpired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}

// Touch records activity without extending the session lifetime.
func (s *Session) Touch(at time.Time) {
	s.LastUsedAt = at
}

// SwitchMode flips the active mode when the bundle carries the required
// credential class. Returns false and leaves the session unchanged otherwise.
func (s *Session) SwitchMode(target AuthMode) bool {
	if !s.Credentials.Supports(target) {
		return false
	}
	s.Mode = target
	return true
}

// SetTokens replaces the session's JWT (and optionally its refresh token)
// after an upstream login or refresh.
func (s *Session) SetTokens(jwtToken, refreshToken string) {
	s.Credentials.JWTToken = jwtToken
	if refreshToken != "" {
		s.Credentials.RefreshToken = refreshToken
	}
}
