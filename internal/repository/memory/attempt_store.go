package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/passgage/auth-gateway/internal/core/port"
)

// AttemptStore keeps per-key attempt timestamps in memory for
// sliding-window admission checks.
type AttemptStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewAttemptStore constructs an empty in-memory attempt store.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string][]time.Time)}
}

// Record stores one attempt at the supplied timestamp.
func (s *AttemptStore) Record(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	s.attempts[key] = append(s.attempts[key], at)
	s.mu.Unlock()
	return nil
}

// CountInWindow returns attempts inside the window ending at reference time.
func (s *AttemptStore) CountInWindow(_ context.Context, key string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	cutoff := reference.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, at := range s.attempts[key] {
		if at.After(cutoff) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

// Trim drops attempts older than the window relative to reference time.
func (s *AttemptStore) Trim(_ context.Context, key string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	cutoff := reference.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.attempts[key][:0]
	for _, at := range s.attempts[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) == 0 {
		delete(s.attempts, key)
		return nil
	}
	s.attempts[key] = kept
	return nil
}

// OldestInWindow returns the oldest attempt remaining inside the window.
func (s *AttemptStore) OldestInWindow(_ context.Context, key string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	cutoff := reference.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	inWindow := make([]time.Time, 0)
	for _, at := range s.attempts[key] {
		if at.After(cutoff) && !at.After(reference) {
			inWindow = append(inWindow, at)
		}
	}

	if len(inWindow) == 0 {
		return time.Time{}, false, nil
	}

	sort.Slice(inWindow, func(i, j int) bool { return inWindow[i].Before(inWindow[j]) })
	return inWindow[0], true, nil
}

var _ port.AttemptStore = (*AttemptStore)(nil)
