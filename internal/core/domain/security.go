package domain

import "time"

// EventSeverity classifies security events for retention and alerting.
type EventSeverity string

const (
	SeverityLow      EventSeverity = "low"
	SeverityMedium   EventSeverity = "medium"
	SeverityHigh     EventSeverity = "high"
	SeverityCritical EventSeverity = "critical"
)

// SecurityEventType names the recognised event categories.
type SecurityEventType string

const (
	EventRateLimited   SecurityEventType = "rate_limited"
	EventCallerBlocked SecurityEventType = "caller_blocked"
	EventHighRiskScore SecurityEventType = "high_risk_score"
	EventMonitorError  SecurityEventType = "monitor_error"
)

// SecurityEvent is an append-only observability record. Events are retained
// for a bounded window and count, oldest evicted first.
type SecurityEvent struct {
	ID       string            `json:"id"`
	Type     SecurityEventType `json:"type"`
	CallerID string            `json:"caller_id"`
	At       time.Time         `json:"at"`
	Severity EventSeverity     `json:"severity"`
	Details  map[string]any    `json:"details,omitempty"`
}

// RequestRecord is one entry in a caller's rolling request log.
type RequestRecord struct {
	At        time.Time
	Endpoint  string
	Success   bool
	SessionID string
}

// CallerRecord tracks per-caller request history and lockout state. The
// caller id is a hash of network address and client signature.
type CallerRecord struct {
	CallerID       string
	RequestLog     []RequestRecord
	FailedAttempts int
	BlockedUntil   time.Time
	RiskScore      int
}

// Blocked reports whether the caller is inside an active lockout.
func (c CallerRecord) Blocked(at time.Time) bool {
	return c.BlockedUntil.After(at)
}

// Admission is the outcome of a security admission check. Blocked
// distinguishes brute-force lockout from plain rate limiting so transports
// can surface the right error.
type Admission struct {
	Allowed    bool
	Blocked    bool
	RetryAfter time.Duration
	Remaining  int
}
