package amis

import (
	"net/http"
	"net/http/cookiejar"
	"sync"
)

// SessionState describes the lifecycle of an authenticated session.
type SessionState string

const (
	SessionAuthenticated SessionState = "authenticated"
	SessionExpired       SessionState = "expired"
	SessionClosed        SessionState = "closed"
)

// Session holds authentication state for one pipeline run. It is created by
// Client.Login, owns its cookie jar, and is never shared across runs.
type Session struct {
	mu    sync.Mutex
	state SessionState
	jar   http.CookieJar
}

func newSession() (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Session{state: SessionAuthenticated, jar: jar}, nil
}

// State reports the current session state.
func (s *Session) State() SessionState {
	if s == nil {
		return SessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Valid reports whether the session can still back retrieval calls.
func (s *Session) Valid() bool {
	return s.State() == SessionAuthenticated
}

// Close invalidates the session. Subsequent retrieval calls fail with
// ErrSessionExpired.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionAuthenticated {
		s.state = SessionClosed
	}
}

func (s *Session) expire() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionAuthenticated {
		s.state = SessionExpired
	}
}
