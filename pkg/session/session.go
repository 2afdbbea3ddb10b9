// Package session keeps long-lived routers for the HTTP API.
//
// A session owns one [router.Router] and serialises access to it: the
// router itself is not safe for concurrent use, while requests for one
// session may arrive concurrently. Sessions expire after a period without
// use.
//
// # Usage
//
//	store := session.NewMemoryStore(session.DefaultMaxSessions)
//
//	sess, err := session.New(params, session.DefaultTTL, router.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	store.Set(ctx, sess)
//
//	report, err := sess.Commit(func(r *router.Router) error {
//	    return r.AddShape(router.Shape{ID: "a", Rect: geom.R(0, 0, 100, 100)})
//	}, nil)
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/router"
)

// Default limits.
const (
	// DefaultTTL is how long an idle session is kept.
	DefaultTTL = 30 * time.Minute

	// DefaultMaxSessions bounds the number of live sessions.
	DefaultMaxSessions = 64
)

// Session is a router with an identity and an expiry.
type Session struct {
	ID        string
	CreatedAt time.Time

	ttl time.Duration

	mu        sync.Mutex
	router    *router.Router
	expiresAt time.Time
	commits   int
}

// New creates a session with a fresh router.
func New(params router.Parameters, ttl time.Duration, opts ...router.Option) (*Session, error) {
	r, err := router.New(params, opts...)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ttl:       ttl,
		router:    r,
		expiresAt: now.Add(ttl),
	}, nil
}

// Do runs fn with exclusive access to the router and extends the expiry.
func (s *Session) Do(fn func(r *router.Router) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Now().After(s.expiresAt) {
		return errors.New(errors.ErrCodeSessionNotFound, "session %s expired", s.ID)
	}
	s.expiresAt = time.Now().Add(s.ttl)
	return fn(s.router)
}

// Commit runs queue and commits the transaction it queued. If queue fails,
// whatever it already queued is discarded. If view is not nil it is called
// with the report before the router is released.
func (s *Session) Commit(queue func(r *router.Router) error, view func(r *router.Router, rep *router.Report)) (*router.Report, error) {
	var rep *router.Report
	err := s.Do(func(r *router.Router) error {
		if err := queue(r); err != nil {
			r.Discard()
			return err
		}
		rep = r.ProcessTransaction()
		s.commits++
		if view != nil {
			view(r, rep)
		}
		return nil
	})
	return rep, err
}

// Commits returns the number of committed transactions.
func (s *Session) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// ExpiresAt returns when the session expires unless used again.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// IsExpired reports whether the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt())
}

// Store holds sessions.
type Store interface {
	// Get returns the session with the given id. Missing and expired
	// sessions are SESSION_NOT_FOUND errors.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, s *Session) error

	// Delete removes a session. Deleting a missing session is an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)

	// Len returns the number of stored sessions.
	Len() int
}
