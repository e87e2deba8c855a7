package port

import (
	"context"

	"github.com/passgage/auth-gateway/internal/core/domain"
)

// SecurityEventPublisher fans security events out to an external broker.
// Publishing is best-effort observability; implementations must not block
// request handling on broker availability.
type SecurityEventPublisher interface {
	PublishSecurityEvent(ctx context.Context, event domain.SecurityEvent) error
	Close() error
}
