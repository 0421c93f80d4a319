package apiapp

import (
	"sync"
	"time"

	"github.com/phillip-england/punchaudit/internal/attendance"
)

// upload is everything kept between preview and export for one session.
type upload struct {
	ID        string
	FileName  string
	Headers   []string
	Results   []attendance.Result
	Dropped   int
	CreatedAt time.Time
}

// sessionStore holds at most one upload per session; a new upload replaces
// the old one. Entries expire after ttl.
type sessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	uploads map[string]*upload
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		ttl:     ttl,
		now:     time.Now,
		uploads: make(map[string]*upload),
	}
}

func (s *sessionStore) put(sessionID string, u *upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	u.CreatedAt = s.now()
	s.uploads[sessionID] = u
}

func (s *sessionStore) get(sessionID string) (*upload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[sessionID]
	if !ok {
		return nil, false
	}
	if s.expired(u) {
		delete(s.uploads, sessionID)
		return nil, false
	}
	return u, true
}

func (s *sessionStore) delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.uploads[sessionID]
	delete(s.uploads, sessionID)
	return ok
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

func (s *sessionStore) evictLocked() {
	for id, u := range s.uploads {
		if s.expired(u) {
			delete(s.uploads, id)
		}
	}
}

func (s *sessionStore) expired(u *upload) bool {
	return s.now().Sub(u.CreatedAt) > s.ttl
}
