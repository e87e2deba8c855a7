package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/core/port"
	"github.com/passgage/auth-gateway/internal/repository"
)

// SessionStore persists sessions as JSON values with a store-level TTL
// matching the session's fixed expiry. One key per session id.
//
// Concurrent writers to the same key resolve last-writer-wins; the gateway
// accepts this relaxation instead of attempting distributed locking.
type SessionStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewSessionStore constructs a Redis-backed session store.
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the TTL reference clock for deterministic tests.
func (s *SessionStore) WithClock(clock func() time.Time) *SessionStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Get returns the stored session or repository.ErrNotFound. Expired keys
// vanish via TTL, so a miss covers both absence and expiry.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, repository.ErrNotFound
	}

	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &session, nil
}

// Put creates or replaces the session record with a TTL derived from its
// expiry. Already-expired sessions are not written.
func (s *SessionStore) Put(ctx context.Context, session domain.Session) error {
	if session.ID == "" {
		return errors.New("session id is required")
	}

	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(session.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}

	return nil
}

// Delete removes the session, reporting whether it existed.
func (s *SessionStore) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	removed, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del session: %w", err)
	}

	return removed > 0, nil
}

// Count scans the session keyspace. Coarse observability only; a SCAN over
// a large keyspace is approximate by nature.
func (s *SessionStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.key("*"), 200).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan sessions: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Sweep is a no-op: Redis evicts expired sessions via key TTL.
func (s *SessionStore) Sweep(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func (s *SessionStore) key(id string) string {
	if s.prefix == "" {
		return id
	}
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

var _ port.SessionStore = (*SessionStore)(nil)
