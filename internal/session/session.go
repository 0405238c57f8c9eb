// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session serializes generation runs per project. A run checks out
// a token before streaming and checks it back in when done; tokens expire,
// so a crashed holder never leaves a project permanently locked.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL bounds a session that never heartbeats.
const DefaultTTL = 5 * time.Minute

var (
	// ErrProjectBusy indicates another live session holds the project.
	ErrProjectBusy = errors.New("a generation session is already active for this project")

	// ErrNotHeld indicates the presented token does not hold the project,
	// either because it expired and was reclaimed or was never issued.
	ErrNotHeld = errors.New("session token does not hold this project")
)

// Session is a checked-out generation slot for one project.
type Session struct {
	ProjectID string
	Token     string
	ExpiresAt time.Time
}

type entry struct {
	token   string
	expires time.Time
}

// Registry tracks at most one live session per project.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]entry
	now      func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

// Acquire checks out the project for ttl (DefaultTTL when zero). An expired
// previous session is reclaimed silently.
func (r *Registry) Acquire(projectID string, ttl time.Duration) (Session, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.sessions[projectID]; ok && now.Before(e.expires) {
		return Session{}, fmt.Errorf("%w (expires %s)", ErrProjectBusy, e.expires.Format(time.RFC3339))
	}

	s := Session{
		ProjectID: projectID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	}
	r.sessions[projectID] = entry{token: s.Token, expires: s.ExpiresAt}
	return s, nil
}

// Heartbeat extends a held session by ttl (DefaultTTL when zero).
func (r *Registry) Heartbeat(s Session, ttl time.Duration) (Session, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.sessions[s.ProjectID]
	if !ok || e.token != s.Token || !now.Before(e.expires) {
		return Session{}, ErrNotHeld
	}

	s.ExpiresAt = now.Add(ttl)
	r.sessions[s.ProjectID] = entry{token: s.Token, expires: s.ExpiresAt}
	return s, nil
}

// Release checks the project back in. Releasing a session that no longer
// holds the project is a no-op: the slot already belongs to someone else.
func (r *Registry) Release(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[s.ProjectID]; ok && e.token == s.Token {
		delete(r.sessions, s.ProjectID)
	}
}
