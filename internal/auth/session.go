// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const defaultSessionTTL = 24 * time.Hour

// Session is the server-side state of one browser.
type Session struct {
	ID string

	// State is the pending login's anti-forgery value.
	State string

	// Token is set once the callback completes.
	Token *oauth2.Token

	expires time.Time
}

// SessionStore keeps sessions in memory. Sessions idle for longer than the
// TTL are dropped.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]Session
	now      func() time.Time
}

// NewSessionStore returns an empty store. A non-positive ttl selects 24h.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		sessions: map[string]Session{},
		now:      time.Now,
	}
}

// TTL returns the idle lifetime of a session.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Create starts a new session with a random ID.
func (s *SessionStore) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := Session{ID: uuid.NewString(), expires: s.now().Add(s.ttl)}
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the session with id and extends its lifetime.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	if s.now().After(sess.expires) {
		delete(s.sessions, id)
		return Session{}, false
	}
	sess.expires = s.now().Add(s.ttl)
	s.sessions[id] = sess
	return sess, true
}

// Save stores sess, replacing the session with the same ID.
func (s *SessionStore) Save(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.expires = s.now().Add(s.ttl)
	s.sessions[sess.ID] = sess
}

// Delete removes the session with id.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep removes expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
