package wallet

import (
	"sync"
	"time"
)

// Session holds the donor's provider session for the life of the process.
// It is created once and passed to the adapter.
type Session struct {
	mu          sync.RWMutex
	accessToken string
	userID      string
	expiresAt   time.Time
}

func NewSession() *Session {
	return &Session{}
}

// Init stores a verified access token.
func (s *Session) Init(accessToken, userID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	s.userID = userID
	s.expiresAt = expiresAt
}

// Teardown forgets the session on logout.
func (s *Session) Teardown() {
	s.Init("", "", time.Time{})
}

// Active reports whether the session holds a token that has not expired at now.
func (s *Session) Active(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.accessToken == "" {
		return false
	}
	return s.expiresAt.IsZero() || now.Before(s.expiresAt)
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}
