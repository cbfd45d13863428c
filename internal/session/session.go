// Package session keeps the cashier's gateway credentials for the lifetime of
// a login. The token file is the only credential stored on the terminal.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const fileName = "session.json"

// State mirrors what a login returns. Zero value means logged out.
type State struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (s State) Active() bool { return s.Token != "" }

// Store holds the current session in memory and mirrors it to disk so a
// terminal restart does not force a re-login. Implements gateway.TokenSource.
type Store struct {
	mu    sync.RWMutex
	path  string
	state State
}

func NewStore(dataDir string) *Store {
	st := &Store{path: filepath.Join(dataDir, fileName)}
	if raw, err := os.ReadFile(st.path); err == nil {
		var s State
		if json.Unmarshal(raw, &s) == nil {
			st.state = s
		}
	}
	return st
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces the session after a successful login.
func (s *Store) Set(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

// Clear wipes token, role and identity together. Clearing only some of them
// would leave the UI claiming a user that can no longer call the gateway.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
	os.Remove(s.path)
}

// Expired reports whether the stored token carries an exp claim in the past.
// The signature is not checked here; the gateway remains the authority and
// this only lets the terminal prompt for a re-login before a request fails.
func (s *Store) Expired(now time.Time) bool {
	s.mu.RLock()
	token := s.state.Token
	s.mu.RUnlock()
	if token == "" {
		return true
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
