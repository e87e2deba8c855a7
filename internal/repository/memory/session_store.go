package memory

import (
	"context"
	"sync"
	"time"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/core/port"
	"github.com/passgage/auth-gateway/internal/repository"
)

// SessionStore keeps sessions in an in-process map. Suitable for the
// long-lived single-server shape; state does not survive a restart.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewSessionStore constructs an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

// Get returns a copy of the stored session or repository.ErrNotFound.
func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, repository.ErrNotFound
	}

	copy := session
	return &copy, nil
}

// Put creates or replaces the session record.
func (s *SessionStore) Put(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return nil
}

// Delete removes the session, reporting whether it existed.
func (s *SessionStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return ok, nil
}

// Count returns the number of stored sessions.
func (s *SessionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	n := len(s.sessions)
	s.mu.RUnlock()
	return n, nil
}

// Sweep evicts sessions expired at the reference time. Expired ids are
// collected under the read lock and evicted in one short write-locked pass
// so concurrent readers are never held up for long.
func (s *SessionStore) Sweep(_ context.Context, at time.Time) (int, error) {
	s.mu.RLock()
	expired := make([]string, 0)
	for id, session := range s.sessions {
		if session.IsExpired(at) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	if len(expired) == 0 {
		return 0, nil
	}

	removed := 0
	s.mu.Lock()
	for _, id := range expired {
		if session, ok := s.sessions[id]; ok && session.IsExpired(at) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.mu.Unlock()

	return removed, nil
}

var _ port.SessionStore = (*SessionStore)(nil)
