package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/core/port"
	"github.com/passgage/auth-gateway/internal/infra/telemetry"
)

// Risk score weights. Flags are independent and additive; the total can
// exceed 100.
const (
	riskWeightVolume      = 30
	riskWeightFailureRate = 25
	riskWeightFanout      = 20
	riskWeightFailures    = 15
	riskWeightScanning    = 35

	riskWindow        = 5 * time.Minute
	riskAlertScore    = 70
	riskFailuresFloor = 10

	scanEndpointThreshold = 20
	scanRequestThreshold  = 50
)

// SecurityConfig tunes admission control, brute-force lockout, risk scoring
// and bookkeeping retention.
type SecurityConfig struct {
	RateWindow time.Duration
	RateCap    int

	FreeRetries int
	MinWait     time.Duration
	MaxWait     time.Duration
	Lookback    time.Duration

	CleanupInterval time.Duration
	CleanupAge      time.Duration
	EventRetention  time.Duration
	MaxEvents       int

	VolumeThreshold    int
	FailureRatePercent int
	SessionFanoutCap   int
}

func (c *SecurityConfig) applyDefaults() {
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	if c.RateCap <= 0 {
		c.RateCap = 100
	}
	if c.FreeRetries <= 0 {
		c.FreeRetries = 5
	}
	if c.MinWait <= 0 {
		c.MinWait = 10 * time.Second
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 5 * time.Minute
	}
	if c.Lookback <= 0 {
		c.Lookback = 15 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 10 * time.Minute
	}
	if c.CleanupAge <= 0 {
		c.CleanupAge = time.Hour
	}
	if c.EventRetention <= 0 {
		c.EventRetention = 24 * time.Hour
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = 10000
	}
	if c.VolumeThreshold <= 0 {
		c.VolumeThreshold = 50
	}
	if c.FailureRatePercent <= 0 {
		c.FailureRatePercent = 30
	}
	if c.SessionFanoutCap <= 0 {
		c.SessionFanoutCap = 5
	}
}

type callerState struct {
	record    domain.CallerRecord
	lastSeen  time.Time
	wasAlerts bool
}

// SecurityMonitor enforces the sliding-window rate limit and brute-force
// lockout, and derives a per-caller risk score from request history. It is
// independent of sessions and keyed by caller identity.
//
// Admission and recording are best-effort control: a storage hiccup fails
// open for availability and is logged as a high-severity event instead of
// blocking legitimate traffic.
type SecurityMonitor struct {
	cfg       SecurityConfig
	attempts  port.AttemptStore
	publisher port.SecurityEventPublisher
	audit     port.SecurityEventAuditStore
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	callers map[string]*callerState
	events  []domain.SecurityEvent
}

// NewSecurityMonitor constructs a monitor over the shared attempt store.
func NewSecurityMonitor(cfg SecurityConfig, attempts port.AttemptStore, log *zap.Logger) *SecurityMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.applyDefaults()

	return &SecurityMonitor{
		cfg:      cfg,
		attempts: attempts,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
		callers:  make(map[string]*callerState),
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (m *SecurityMonitor) WithClock(clock func() time.Time) *SecurityMonitor {
	if clock != nil {
		m.now = clock
	}
	return m
}

// WithPublisher wires the broker fan-out for high-severity events.
func (m *SecurityMonitor) WithPublisher(publisher port.SecurityEventPublisher) *SecurityMonitor {
	m.publisher = publisher
	return m
}

// WithAuditStore wires the durable audit log.
func (m *SecurityMonitor) WithAuditStore(store port.SecurityEventAuditStore) *SecurityMonitor {
	m.audit = store
	return m
}

// WithMetrics wires gateway metrics.
func (m *SecurityMonitor) WithMetrics(metrics *telemetry.Metrics) *SecurityMonitor {
	m.metrics = metrics
	return m
}

// CheckAdmission decides whether a caller's request may proceed. Lockout is
// checked first; otherwise the request is counted against the trailing rate
// window. Admitted requests report how many remain in the window.
func (m *SecurityMonitor) CheckAdmission(ctx context.Context, callerID string) domain.Admission {
	now := m.now()

	m.mu.Lock()
	state, ok := m.callers[callerID]
	if ok && state.record.Blocked(now) {
		remaining := state.record.BlockedUntil.Sub(now)
		m.mu.Unlock()
		return domain.Admission{Blocked: true, RetryAfter: remaining}
	}
	m.mu.Unlock()

	if err := m.attempts.Trim(ctx, callerID, m.cfg.RateWindow, now); err != nil {
		return m.failOpen(ctx, callerID, "trim attempts", err)
	}

	count, err := m.attempts.CountInWindow(ctx, callerID, m.cfg.RateWindow, now)
	if err != nil {
		return m.failOpen(ctx, callerID, "count attempts", err)
	}

	if count >= m.cfg.RateCap {
		reset := now.Add(m.cfg.RateWindow)
		if oldest, found, err := m.attempts.OldestInWindow(ctx, callerID, m.cfg.RateWindow, now); err == nil && found {
			reset = oldest.Add(m.cfg.RateWindow)
		}

		retryAfter := reset.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}

		if m.metrics != nil {
			m.metrics.RateLimited.Inc()
		}
		m.recordEvent(ctx, domain.SecurityEvent{
			Type:     domain.EventRateLimited,
			CallerID: callerID,
			At:       now,
			Severity: domain.SeverityMedium,
			Details:  map[string]any{"count": count, "cap": m.cfg.RateCap},
		})

		return domain.Admission{RetryAfter: retryAfter}
	}

	if err := m.attempts.Record(ctx, callerID, now); err != nil {
		return m.failOpen(ctx, callerID, "record attempt", err)
	}

	return domain.Admission{Allowed: true, Remaining: m.cfg.RateCap - count - 1}
}

// RecordOutcome appends the request to the caller's rolling log, maintains
// failure counters and lockout state, and recomputes the risk score. It is
// always called, including after dispatcher failures; a caller disconnect
// does not roll it back.
func (m *SecurityMonitor) RecordOutcome(ctx context.Context, callerID, endpoint string, success bool, sessionID string) {
	now := m.now()

	m.mu.Lock()
	state, ok := m.callers[callerID]
	if !ok {
		state = &callerState{record: domain.CallerRecord{CallerID: callerID}}
		m.callers[callerID] = state
	}
	state.lastSeen = now

	state.record.RequestLog = append(state.record.RequestLog, domain.RequestRecord{
		At:        now,
		Endpoint:  endpoint,
		Success:   success,
		SessionID: sessionID,
	})
	m.pruneLogLocked(state, now)

	var blockedFor time.Duration
	if success {
		// Partial forgiveness: one good request does not erase a pattern.
		if state.record.FailedAttempts > 0 {
			state.record.FailedAttempts--
		}
	} else {
		state.record.FailedAttempts++
		blockedFor = m.maybeBlockLocked(state, now)
	}

	score, crossed := m.scoreLocked(state, now)
	state.record.RiskScore = score
	m.mu.Unlock()

	if blockedFor > 0 {
		if m.metrics != nil {
			m.metrics.Lockouts.Inc()
		}
		m.recordEvent(ctx, domain.SecurityEvent{
			Type:     domain.EventCallerBlocked,
			CallerID: callerID,
			At:       now,
			Severity: domain.SeverityHigh,
			Details:  map[string]any{"blocked_for_seconds": blockedFor.Seconds()},
		})
	}

	if crossed {
		m.recordEvent(ctx, domain.SecurityEvent{
			Type:     domain.EventHighRiskScore,
			CallerID: callerID,
			At:       now,
			Severity: domain.SeverityHigh,
			Details:  map[string]any{"risk_score": score},
		})
	}
}

// CallerRecord returns a copy of the caller's current record, for
// observability endpoints and tests.
func (m *SecurityMonitor) CallerRecord(callerID string) (domain.CallerRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.callers[callerID]
	if !ok {
		return domain.CallerRecord{}, false
	}

	record := state.record
	record.RequestLog = append([]domain.RequestRecord(nil), state.record.RequestLog...)
	return record, true
}

// Events returns a copy of the retained event ring, newest last.
func (m *SecurityMonitor) Events() []domain.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SecurityEvent(nil), m.events...)
}

// StartSweeper runs periodic bookkeeping cleanup until the context is
// cancelled: stale request-log entries, idle unblocked callers, and events
// past retention.
func (m *SecurityMonitor) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cfg.CleanupInterval)
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

func (m *SecurityMonitor) sweepOnce(ctx context.Context) {
	now := m.now()

	m.mu.Lock()
	for id, state := range m.callers {
		m.pruneLogLocked(state, now)
		idle := now.Sub(state.lastSeen) > m.cfg.CleanupAge
		if len(state.record.RequestLog) == 0 && idle && state.record.FailedAttempts == 0 && !state.record.Blocked(now) {
			delete(m.callers, id)
		}
	}

	cutoff := now.Add(-m.cfg.EventRetention)
	kept := m.events[:0]
	for _, event := range m.events {
		if event.At.After(cutoff) {
			kept = append(kept, event)
		}
	}
	m.events = kept
	m.mu.Unlock()

	if m.audit != nil {
		if pruned, err := m.audit.Prune(ctx, cutoff); err != nil {
			m.logger.Warn("audit prune failed", zap.Error(err))
		} else if pruned > 0 {
			m.logger.Debug("audit events pruned", zap.Int64("count", pruned))
		}
	}
}

// maybeBlockLocked applies exponential lockout once recent failures exceed
// the free-retry allowance. Returns the applied block duration, zero when no
// block was applied.
func (m *SecurityMonitor) maybeBlockLocked(state *callerState, now time.Time) time.Duration {
	cutoff := now.Add(-m.cfg.Lookback)
	recentFailures := 0
	for _, entry := range state.record.RequestLog {
		if !entry.Success && entry.At.After(cutoff) {
			recentFailures++
		}
	}

	if recentFailures <= m.cfg.FreeRetries {
		return 0
	}

	wait := m.cfg.MinWait
	for i := 0; i < recentFailures-m.cfg.FreeRetries; i++ {
		wait *= 2
		if wait >= m.cfg.MaxWait {
			wait = m.cfg.MaxWait
			break
		}
	}

	state.record.BlockedUntil = now.Add(wait)
	return wait
}

// scoreLocked recomputes the risk score from the trailing five-minute
// window. The second return reports whether the score crossed the alert
// threshold with this request.
func (m *SecurityMonitor) scoreLocked(state *callerState, now time.Time) (int, bool) {
	cutoff := now.Add(-riskWindow)

	var (
		requests  int
		failures  int
		endpoints = make(map[string]struct{})
		sessions  = make(map[string]struct{})
	)
	for _, entry := range state.record.RequestLog {
		if !entry.At.After(cutoff) {
			continue
		}
		requests++
		if !entry.Success {
			failures++
		}
		if entry.Endpoint != "" {
			endpoints[entry.Endpoint] = struct{}{}
		}
		if entry.SessionID != "" {
			sessions[entry.SessionID] = struct{}{}
		}
	}

	score := 0
	if requests > m.cfg.VolumeThreshold {
		score += riskWeightVolume
	}
	if requests > 0 && failures*100 > requests*m.cfg.FailureRatePercent {
		score += riskWeightFailureRate
	}
	if len(sessions) > m.cfg.SessionFanoutCap {
		score += riskWeightFanout
	}
	if state.record.FailedAttempts > riskFailuresFloor {
		score += riskWeightFailures
	}
	if len(endpoints) > scanEndpointThreshold && requests > scanRequestThreshold {
		score += riskWeightScanning
	}

	crossed := score > riskAlertScore && !state.wasAlerts
	state.wasAlerts = score > riskAlertScore
	return score, crossed
}

func (m *SecurityMonitor) pruneLogLocked(state *callerState, now time.Time) {
	cutoff := now.Add(-m.cfg.CleanupAge)
	kept := state.record.RequestLog[:0]
	for _, entry := range state.record.RequestLog {
		if entry.At.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	state.record.RequestLog = kept
}

// failOpen admits the request despite a monitor storage failure. Control is
// best-effort observability; availability wins, and the failure itself is
// surfaced as a high-severity event.
func (m *SecurityMonitor) failOpen(ctx context.Context, callerID, op string, err error) domain.Admission {
	m.logger.Error("security monitor storage failure, admitting request",
		zap.String("op", op),
		zap.String("caller_id", callerID),
		zap.Error(err),
	)

	m.recordEvent(ctx, domain.SecurityEvent{
		Type:     domain.EventMonitorError,
		CallerID: callerID,
		At:       m.now(),
		Severity: domain.SeverityHigh,
		Details:  map[string]any{"op": op, "error": err.Error()},
	})

	return domain.Admission{Allowed: true, Remaining: m.cfg.RateCap - 1}
}

// recordEvent appends to the bounded ring and mirrors the event to the
// configured publisher and audit store, best-effort.
func (m *SecurityMonitor) recordEvent(ctx context.Context, event domain.SecurityEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	m.mu.Lock()
	m.events = append(m.events, event)
	if overflow := len(m.events) - m.cfg.MaxEvents; overflow > 0 {
		m.events = append(m.events[:0], m.events[overflow:]...)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SecurityEvents.WithLabelValues(string(event.Severity)).Inc()
	}

	if m.publisher != nil && (event.Severity == domain.SeverityHigh || event.Severity == domain.SeverityCritical) {
		if err := m.publisher.PublishSecurityEvent(ctx, event); err != nil {
			m.logger.Warn("publish security event failed", zap.Error(err))
		}
	}

	if m.audit != nil {
		if err := m.audit.Insert(ctx, event); err != nil {
			m.logger.Warn("audit security event failed", zap.Error(err))
		}
	}
}
