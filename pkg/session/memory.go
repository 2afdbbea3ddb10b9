package session

import (
	"context"
	"sync"
	"time"

	"github.com/matzehuels/detour/pkg/errors"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
}

// NewMemoryStore returns a store holding at most max sessions. A
// non-positive max selects DefaultMaxSessions.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &MemoryStore{sessions: make(map[string]*Session), max: max}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	if sess.IsExpired() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session %s expired", id)
	}
	return sess, nil
}

// Set stores sess. When the store is full, expired sessions are dropped
// first; if it is still full, Set fails.
func (s *MemoryStore) Set(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok && len(s.sessions) >= s.max {
		s.cleanupLocked(time.Now())
		if len(s.sessions) >= s.max {
			return errors.New(errors.ErrCodeInvalidInput, "too many sessions (max %d)", s.max)
		}
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return errors.New(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked(time.Now()), nil
}

func (s *MemoryStore) cleanupLocked(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt()) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ Store = (*MemoryStore)(nil)
