package usecase

import (
	"errors"
	"fmt"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/infra/security"
)

// ErrModeUnavailable indicates the session lacks the credentials required by
// a requested mode override. The resolver fails closed instead of falling
// back to the session's stored mode.
var ErrModeUnavailable = errors.New("requested mode not available for this session")

// AuthContextResolver computes the effective credential and mode for one
// request. It never mutates the session: a mode override is a read.
type AuthContextResolver struct {
	cipher *security.CredentialCipher
}

// NewAuthContextResolver constructs a resolver using the shared credential cipher.
func NewAuthContextResolver(cipher *security.CredentialCipher) *AuthContextResolver {
	return &AuthContextResolver{cipher: cipher}
}

// Resolve produces the immutable auth context for a request. A nil session
// yields the unauthenticated context; whether a command accepts it is
// dispatch-time policy. When override names a mode other than the session's
// current one, the session must carry credentials for it.
func (r *AuthContextResolver) Resolve(session *domain.Session, override domain.AuthMode) (domain.AuthContext, error) {
	if session == nil {
		return domain.Unauthenticated(), nil
	}

	mode := session.Mode
	if override != "" && override != domain.AuthModeNone {
		if !session.Credentials.Supports(override) {
			return domain.AuthContext{}, ErrModeUnavailable
		}
		mode = override
	}

	credential, err := r.credentialFor(session, mode)
	if err != nil {
		return domain.AuthContext{}, err
	}

	return domain.AuthContext{
		SessionID:  session.ID,
		Mode:       mode,
		Credential: credential,
		ExpiresAt:  session.ExpiresAt,
	}, nil
}

func (r *AuthContextResolver) credentialFor(session *domain.Session, mode domain.AuthMode) (domain.Credential, error) {
	switch mode {
	case domain.AuthModeCompany:
		if !session.Credentials.HasCompany() {
			return nil, ErrModeUnavailable
		}
		return domain.CompanyCredential{APIKey: session.Credentials.APIKey}, nil
	case domain.AuthModeUser:
		if !session.Credentials.HasUser() {
			return nil, ErrModeUnavailable
		}
		password, err := r.cipher.Decrypt(session.Credentials.UserPasswordEncrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt password: %w", err)
		}
		return domain.UserCredential{
			Email:        session.Credentials.UserEmail,
			Password:     password,
			JWTToken:     session.Credentials.JWTToken,
			RefreshToken: session.Credentials.RefreshToken,
		}, nil
	case domain.AuthModeNone:
		return nil, nil
	default:
		return nil, ErrModeUnavailable
	}
}
