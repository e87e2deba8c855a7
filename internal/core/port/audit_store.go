package port

import (
	"context"
	"time"

	"github.com/passgage/auth-gateway/internal/core/domain"
)

// SecurityEventAuditStore durably records security events for later review.
// Optional: when not configured the monitor keeps only its in-memory ring.
type SecurityEventAuditStore interface {
	Insert(ctx context.Context, event domain.SecurityEvent) error
	// Prune deletes events recorded before the cutoff and reports how many.
	Prune(ctx context.Context, before time.Time) (int64, error)
}
