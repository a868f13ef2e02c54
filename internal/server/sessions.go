package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemma-health/go-onboarding/pkg/workflow"
)

const sessionCookie = "onboarding_session"

// sessionStore keeps one workflow machine per browser session. Entries are
// evicted after the idle TTL so abandoned applications do not accumulate.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*session
	factory  func() *workflow.Machine
}

type session struct {
	machine  *workflow.Machine
	lastSeen time.Time
}

func newSessionStore(ttl time.Duration, factory func() *workflow.Machine) *sessionStore {
	return &sessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
		factory:  factory,
	}
}

// machineFor returns the session machine, creating a session when the
// request has none, and refreshes the cookie.
func (s *sessionStore) machineFor(w http.ResponseWriter, r *http.Request) *workflow.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked()

	var id string
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		id = cookie.Value
	}
	entry, ok := s.sessions[id]
	if !ok {
		id = uuid.NewString()
		entry = &session{machine: s.factory()}
		s.sessions[id] = entry
	}
	entry.lastSeen = s.now()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return entry.machine
}

func (s *sessionStore) evictLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, entry := range s.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
