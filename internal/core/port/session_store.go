package port

import (
	"context"
	"time"

	"github.com/passgage/auth-gateway/internal/core/domain"
)

// SessionStore abstracts session persistence so the gateway logic is written
// once against the interface and the backend (in-process map or external
// durable store) is selected at startup.
//
// Concurrent writers to the same session id resolve last-writer-wins on the
// external backend. This is an accepted consistency relaxation; callers must
// not assume serializable read-modify-write.
type SessionStore interface {
	// Get returns the stored session or repository.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Put creates or replaces the session record.
	Put(ctx context.Context, session domain.Session) error
	// Delete removes the session, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// Count returns the number of stored sessions, for coarse observability only.
	Count(ctx context.Context) (int, error)
	// Sweep evicts sessions expired at the reference time and reports how many.
	// Backends with store-level expiry may make this a no-op.
	Sweep(ctx context.Context, at time.Time) (int, error)
}
