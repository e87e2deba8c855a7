package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/core/port"
)

// Execer is the slice of pgxpool.Pool the audit store needs. Kept narrow so
// tests can substitute a mock connection.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SecurityEventStore durably records security events for later review.
//
// Expected schema:
//
//	CREATE TABLE security_events (
//	    id         TEXT PRIMARY KEY,
//	    event_type TEXT NOT NULL,
//	    caller_id  TEXT NOT NULL,
//	    severity   TEXT NOT NULL,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    details    JSONB
//	);
type SecurityEventStore struct {
	db      Execer
	builder sq.StatementBuilderType
}

// NewSecurityEventStore constructs the audit store over the provided connection.
func NewSecurityEventStore(db Execer) *SecurityEventStore {
	return &SecurityEventStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert appends one security event.
func (s *SecurityEventStore) Insert(ctx context.Context, event domain.SecurityEvent) error {
	if event.ID == "" {
		return fmt.Errorf("event id is required")
	}

	var details []byte
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal event details: %w", err)
		}
		details = raw
	}

	query, args, err := s.builder.
		Insert("security_events").
		Columns("id", "event_type", "caller_id", "severity", "occurred_at", "details").
		Values(event.ID, string(event.Type), event.CallerID, string(event.Severity), event.At.UTC(), details).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}

	return nil
}

// Prune deletes events recorded before the cutoff and reports how many.
func (s *SecurityEventStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := s.builder.
		Delete("security_events").
		Where(sq.Lt{"occurred_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune security events: %w", err)
	}

	return tag.RowsAffected(), nil
}

var _ port.SecurityEventAuditStore = (*SecurityEventStore)(nil)
