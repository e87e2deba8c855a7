package domain

import "time"

// Credential is the per-mode credential attached to an outbound request.
// It is a closed sum: exactly one variant exists per auth mode, so an
// invalid mode/credential pairing cannot be constructed.
type Credential interface {
	Mode() AuthMode
}

// CompanyCredential carries the organisation-wide API key.
type CompanyCredential struct {
	APIKey string
}

// Mode implements Credential.
func (CompanyCredential) Mode() AuthMode { return AuthModeCompany }

// UserCredential carries an individual user's identity and tokens.
type UserCredential struct {
	Email        string
	Password     string
	JWTToken     string
	RefreshToken string
}

// Mode implements Credential.
func (UserCredential) Mode() AuthMode { return AuthModeUser }

// AuthContext is the immutable resolved identity handed to the command
// dispatcher. A nil Credential with AuthModeNone means unauthenticated.
type AuthContext struct {
	SessionID  string
	Mode       AuthMode
	Credential Credential
	ExpiresAt  time.Time
}

// Authenticated reports whether the context carries a usable credential.
func (a AuthContext) Authenticated() bool {
	return a.Mode != AuthModeNone && a.Credential != nil
}

// Unauthenticated returns the context used when no session is resolvable.
func Unauthenticated() AuthContext {
	return AuthContext{Mode: AuthModeNone}
}
