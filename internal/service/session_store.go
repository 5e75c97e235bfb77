package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an idle editing session is kept.
const DefaultSessionTTL = 2 * time.Hour

// Session is an open order editing session.
type Session struct {
	ID        uuid.UUID
	Editor    *OrderEditor
	CreatedAt time.Time
	LastUsed  time.Time
}

// SessionStore keeps open editing sessions in memory. Sessions are discarded on
// commit, on close, or after sitting idle for longer than the TTL.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates an empty store. A non-positive ttl uses
// DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers editor under a fresh session id.
func (s *SessionStore) Create(editor *OrderEditor) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ID:        uuid.New(),
		Editor:    editor,
		CreatedAt: now,
		LastUsed:  now,
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the session and marks it as used.
func (s *SessionStore) Get(id uuid.UUID) (*Session, error) {
	const op = "session.get"

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, opError(op, ErrSessionNotFound)
	}

	now := s.now()
	if now.Sub(sess.LastUsed) > s.ttl {
		delete(s.sessions, id)
		return nil, opError(op, ErrSessionExpired)
	}

	sess.LastUsed = now
	return sess, nil
}

// Delete discards a session.
func (s *SessionStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return opError("session.delete", ErrSessionNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// Sweep removes every session idle for longer than the TTL and returns how many
// were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastUsed) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of open sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
