package port

import (
	"context"
	"time"
)

// AttemptStore persists request attempts for sliding-window admission
// decisions. Keys are caller identities; the store only counts, it holds no
// policy.
type AttemptStore interface {
	// Record stores one attempt at the supplied timestamp.
	Record(ctx context.Context, key string, at time.Time) error
	// CountInWindow returns attempts inside the window ending at reference time.
	CountInWindow(ctx context.Context, key string, window time.Duration, reference time.Time) (int, error)
	// Trim drops attempts older than the window relative to reference time.
	Trim(ctx context.Context, key string, window time.Duration, reference time.Time) error
	// OldestInWindow returns the oldest attempt remaining inside the window.
	OldestInWindow(ctx context.Context, key string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
