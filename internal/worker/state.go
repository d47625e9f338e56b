package worker

import (
	"sync"
	"time"

	"promptcoach/internal/broker"
)

type sessionEntry struct {
	session  *broker.Session
	lastSeen time.Time
}

// sessionStore is the in-process cache of live broker sessions.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*sessionEntry)}
}

func (s *sessionStore) get(id string) *broker.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[id]; ok {
		return e.session
	}
	return nil
}

func (s *sessionStore) put(session *broker.Session) {
	if session == nil {
		return
	}
	s.mu.Lock()
	s.sessions[session.ID] = &sessionEntry{session: session, lastSeen: time.Now()}
	s.mu.Unlock()
}

func (s *sessionStore) drop(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *sessionStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// pruneIdle drops sessions not used for longer than idle and reports how many were removed.
func (s *sessionStore) pruneIdle(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
