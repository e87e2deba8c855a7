package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/core/port"
)

// StubPublisher logs security events instead of sending them to Kafka.
// Useful for development environments and the single-process shape.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

// PublishSecurityEvent logs the event at a level matching its severity.
func (p *StubPublisher) PublishSecurityEvent(_ context.Context, event domain.SecurityEvent) error {
	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	fields := []zap.Field{
		zap.String("event_type", string(event.Type)),
		zap.String("caller_id", event.CallerID),
		zap.String("severity", string(event.Severity)),
		zap.Time("timestamp", at.UTC()),
		zap.Any("details", event.Details),
	}

	switch event.Severity {
	case domain.SeverityHigh, domain.SeverityCritical:
		p.logger.Warn("security event", fields...)
	default:
		p.logger.Info("security event", fields...)
	}
	return nil
}

// Close is a no-op for the stub.
func (p *StubPublisher) Close() error { return nil }

var _ port.SecurityEventPublisher = (*StubPublisher)(nil)
