package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/core/port"
	"github.com/passgage/auth-gateway/internal/infra/logger"
	"github.com/passgage/auth-gateway/internal/infra/security"
	"github.com/passgage/auth-gateway/internal/infra/telemetry"
	"github.com/passgage/auth-gateway/internal/repository"
)

var (
	// ErrInvalidCredentials indicates no usable identity was supplied at creation.
	ErrInvalidCredentials = errors.New("invalid credentials: api key or user email required")
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session existed but passed its expiry.
	ErrSessionExpired = errors.New("session expired")
)

const defaultTokenBytes = 32

// CredentialInput is the plaintext credential bundle submitted at login.
type CredentialInput struct {
	APIKey       string
	UserEmail    string
	UserPassword string
}

// PlainCredentials is a decrypted view of a session's bundle, usable for one
// outbound request. It must never be persisted.
type PlainCredentials struct {
	APIKey       string
	UserEmail    string
	UserPassword string
	JWTToken     string
	RefreshToken string
}

// SessionManager owns session creation, expiry, credential encryption at
// rest, and access-mode switching. All state lives behind the injected
// store so both deployment shapes share this code path.
type SessionManager struct {
	store         port.SessionStore
	cipher        *security.CredentialCipher
	logger        *zap.Logger
	metrics       *telemetry.Metrics
	timeout       time.Duration
	sweepInterval time.Duration
	tokenBytes    int
	now           func() time.Time
}

// NewSessionManager constructs a session manager over the selected store.
func NewSessionManager(store port.SessionStore, cipher *security.CredentialCipher, timeout time.Duration, log *zap.Logger) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		store:         store,
		cipher:        cipher,
		logger:        log,
		timeout:       timeout,
		sweepInterval: 5 * time.Minute,
		tokenBytes:    defaultTokenBytes,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (m *SessionManager) WithClock(clock func() time.Time) *SessionManager {
	if clock != nil {
		m.now = clock
	}
	return m
}

// WithSweepInterval overrides the periodic expiry sweep cadence.
func (m *SessionManager) WithSweepInterval(interval time.Duration) *SessionManager {
	if interval > 0 {
		m.sweepInterval = interval
	}
	return m
}

// WithTokenBytes overrides the session id entropy.
func (m *SessionManager) WithTokenBytes(n int) *SessionManager {
	if n > 0 {
		m.tokenBytes = n
	}
	return m
}

// WithMetrics wires gateway metrics updated during sweeps.
func (m *SessionManager) WithMetrics(metrics *telemetry.Metrics) *SessionManager {
	m.metrics = metrics
	return m
}

// Create validates the submitted bundle, encrypts the password, persists the
// session and returns its opaque id. The active mode is company when an API
// key is present, user otherwise.
func (m *SessionManager) Create(ctx context.Context, input CredentialInput) (string, error) {
	apiKey := strings.TrimSpace(input.APIKey)
	email := strings.TrimSpace(input.UserEmail)

	if apiKey == "" && email == "" {
		return "", ErrInvalidCredentials
	}

	mode := domain.AuthModeUser
	if apiKey != "" {
		mode = domain.AuthModeCompany
	}

	encryptedPassword := ""
	if input.UserPassword != "" {
		enc, err := m.cipher.Encrypt(input.UserPassword)
		if err != nil {
			return "", fmt.Errorf("encrypt password: %w", err)
		}
		encryptedPassword = enc
	}

	id, err := security.GenerateSessionToken(m.tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	now := m.now()
	session := domain.Session{
		ID:   id,
		Mode: mode,
		Credentials: domain.CredentialBundle{
			APIKey:                apiKey,
			UserEmail:             email,
			UserPasswordEncrypted: encryptedPassword,
		},
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.timeout),
		LastUsedAt: now,
	}

	if err := m.store.Put(ctx, session); err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}

	m.logger.Info("session created",
		zap.String("session_id", logger.MaskSecret(id)),
		zap.String("mode", string(mode)),
		zap.String("user_email", logger.MaskEmail(email)),
		zap.Time("expires_at", session.ExpiresAt),
	)

	return id, nil
}

// Get resolves a live session, updating its last-used timestamp. Expired
// sessions are evicted on access and reported as ErrSessionExpired; expiry
// itself is never extended.
func (m *SessionManager) Get(ctx context.Context, id string) (*domain.Session, error) {
	session, err := m.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	session.Touch(m.now())
	if err := m.store.Put(ctx, *session); err != nil {
		// Activity bookkeeping is best-effort; the caller still gets the session.
		m.logger.Warn("persist last-used failed", zap.Error(err))
	}

	return session, nil
}

// SwitchMode flips the session's active mode when its bundle carries the
// required credential class. A false return is a user-facing "cannot
// switch", not a system fault: the session is left unchanged.
func (m *SessionManager) SwitchMode(ctx context.Context, id string, target domain.AuthMode) (bool, error) {
	session, err := m.fetch(ctx, id)
	if err != nil {
		return false, err
	}

	if !session.SwitchMode(target) {
		return false, nil
	}

	if err := m.store.Put(ctx, *session); err != nil {
		return false, fmt.Errorf("persist mode switch: %w", err)
	}

	m.logger.Info("session mode switched",
		zap.String("session_id", logger.MaskSecret(id)),
		zap.String("mode", string(target)),
	)

	return true, nil
}

// UpdateTokens replaces the session's JWT (and optionally its refresh
// token) after an upstream login or refresh. Returns false when the session
// is missing or expired.
func (m *SessionManager) UpdateTokens(ctx context.Context, id, jwtToken, refreshToken string) (bool, error) {
	session, err := m.fetch(ctx, id)
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	session.SetTokens(jwtToken, refreshToken)

	if err := m.store.Put(ctx, *session); err != nil {
		return false, fmt.Errorf("persist tokens: %w", err)
	}

	fields := []zap.Field{zap.String("session_id", logger.MaskSecret(id))}
	if exp, ok := tokenExpiry(jwtToken); ok {
		fields = append(fields, zap.Time("token_expires_at", exp))
	}
	m.logger.Info("session tokens updated", fields...)

	return true, nil
}

// Destroy removes the session, reporting whether it existed.
func (m *SessionManager) Destroy(ctx context.Context, id string) (bool, error) {
	removed, err := m.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	if removed {
		m.logger.Info("session destroyed", zap.String("session_id", logger.MaskSecret(id)))
	}

	return removed, nil
}

// ActiveCount reports the number of stored sessions. Coarse observability
// only; expired-but-unswept sessions may be included.
func (m *SessionManager) ActiveCount(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

// Credentials returns the decrypted bundle for attaching to one outbound
// request.
func (m *SessionManager) Credentials(ctx context.Context, id string) (PlainCredentials, error) {
	session, err := m.fetch(ctx, id)
	if err != nil {
		return PlainCredentials{}, err
	}

	password, err := m.cipher.Decrypt(session.Credentials.UserPasswordEncrypted)
	if err != nil {
		return PlainCredentials{}, fmt.Errorf("decrypt password: %w", err)
	}

	return PlainCredentials{
		APIKey:       session.Credentials.APIKey,
		UserEmail:    session.Credentials.UserEmail,
		UserPassword: password,
		JWTToken:     session.Credentials.JWTToken,
		RefreshToken: session.Credentials.RefreshToken,
	}, nil
}

// StartSweeper runs the periodic expiry sweep until the context is
// cancelled. Each pass is a single bounded scan; it never holds the store
// exclusively across passes.
func (m *SessionManager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweepOnce(ctx)
			}
		}
	}()
}

func (m *SessionManager) sweepOnce(ctx context.Context) {
	removed, err := m.store.Sweep(ctx, m.now())
	if err != nil {
		m.logger.Warn("session sweep failed", zap.Error(err))
		return
	}

	count, err := m.store.Count(ctx)
	if err == nil && m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(count))
	}

	if removed > 0 {
		m.logger.Debug("session sweep completed", zap.Int("evicted", removed))
	}
}

// fetch loads a session and applies expiry-on-access semantics without
// touching last-used bookkeeping.
func (m *SessionManager) fetch(ctx context.Context, id string) (*domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrSessionNotFound
	}

	session, err := m.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if session.IsExpired(m.now()) {
		if _, err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("evict expired session failed", zap.Error(err))
		}
		return nil, ErrSessionExpired
	}

	return session, nil
}

// tokenExpiry peeks at a JWT's exp claim without verifying the signature.
// The gateway never trusts this value for auth decisions; it is logged so
// operators can correlate upstream token lifetimes with session lifetimes.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
