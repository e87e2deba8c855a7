package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/passgage/auth-gateway/internal/core/port"
)

// AttemptStoreConfig configures the sliding-window attempt store.
type AttemptStoreConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// AttemptStore persists request attempts in Redis sorted sets, scored by
// timestamp. Shared across stateless workers, it keeps the admission window
// globally accurate.
type AttemptStore struct {
	client *redis.Client
	cfg    AttemptStoreConfig
}

// NewAttemptStore constructs a store using the provided Redis client and config.
func NewAttemptStore(client *redis.Client, cfg AttemptStoreConfig) *AttemptStore {
	return &AttemptStore{client: client, cfg: cfg}
}

// Record stores one attempt within the window and refreshes the key TTL.
// Members carry a random suffix so attempts landing on the same nanosecond
// are still counted individually.
func (s *AttemptStore) Record(ctx context.Context, key string, at time.Time) error {
	member := fmt.Sprintf("%d:%s", at.UnixNano(), uuid.NewString())
	z := redis.Z{Score: float64(at.UnixNano()), Member: member}

	if err := s.client.ZAdd(ctx, s.key(key), z).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}

	if s.cfg.TTL > 0 {
		if err := s.client.Expire(ctx, s.key(key), s.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("redis expire: %w", err)
		}
	}

	return nil
}

// CountInWindow returns how many attempts occurred within the window ending
// at reference time.
func (s *AttemptStore) CountInWindow(ctx context.Context, key string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	min := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)
	max := strconv.FormatInt(reference.UnixNano(), 10)

	count, err := s.client.ZCount(ctx, s.key(key), min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}

	return int(count), nil
}

// Trim removes attempts older than the window relative to reference time.
func (s *AttemptStore) Trim(ctx context.Context, key string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	threshold := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)

	if err := s.client.ZRemRangeByScore(ctx, s.key(key), "-inf", "("+threshold).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyscore: %w", err)
	}

	return nil
}

// OldestInWindow returns the oldest attempt remaining inside the window.
func (s *AttemptStore) OldestInWindow(ctx context.Context, key string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	values, err := s.client.ZRangeByScore(ctx, s.key(key), &redis.ZRangeBy{
		Min:    strconv.FormatInt(reference.Add(-window).UnixNano(), 10),
		Max:    strconv.FormatInt(reference.UnixNano(), 10),
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis zrangebyscore: %w", err)
	}

	if len(values) == 0 {
		return time.Time{}, false, nil
	}

	nanos, _, _ := strings.Cut(values[0], ":")
	ts, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse attempt timestamp: %w", err)
	}

	return time.Unix(0, ts), true, nil
}

func (s *AttemptStore) key(identifier string) string {
	if s.cfg.KeyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", s.cfg.KeyPrefix, identifier)
}

var _ port.AttemptStore = (*AttemptStore)(nil)
