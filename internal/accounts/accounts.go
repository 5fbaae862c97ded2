// Package accounts is the in-process identity collaborator: registration,
// login, and online/offline bookkeeping with a short reconnect grace window.
// Credential hashing policy lives with the deployment; the stored verifier
// is treated as opaque here.
package accounts

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUsernameTaken signals a registration for an existing username.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrBadCredentials signals a failed login.
	ErrBadCredentials = errors.New("invalid username or password")
)

type account struct {
	username   string
	verifier   string
	role       string
	online     bool
	graceUntil time.Time
}

// Store keeps accounts in memory and serialises all mutation.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*account
	grace    time.Duration
	now      func() time.Time
}

// Option configures optional store behaviour.
type Option func(*Store)

// WithClock injects a deterministic clock, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// New constructs a store with the given reconnect grace window.
func New(grace time.Duration, opts ...Option) *Store {
	store := &Store{
		accounts: make(map[string]*account),
		grace:    grace,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Register creates an account. Role distinguishes players from developers.
func (s *Store) Register(username, verifier, role string) error {
	if username == "" || verifier == "" {
		return errors.New("username and password must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[username]; exists {
		return ErrUsernameTaken
	}
	s.accounts[username] = &account{username: username, verifier: verifier, role: role}
	return nil
}

// Login validates credentials and marks the account online. Logging in again
// from a new connection simply refreshes the session.
func (s *Store) Login(username, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	if !ok || acct.verifier != verifier {
		return ErrBadCredentials
	}
	acct.online = true
	acct.graceUntil = time.Time{}
	return nil
}

// Logout marks the account offline immediately, bypassing the grace window.
func (s *Store) Logout(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[username]; ok {
		acct.online = false
		acct.graceUntil = time.Time{}
	}
}

// Disconnected records a connection drop. The account stays visible as
// online until the grace window elapses, so a quick reconnect is seamless.
func (s *Store) Disconnected(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	if !ok || !acct.online {
		return
	}
	acct.online = false
	if s.grace > 0 {
		acct.graceUntil = s.now().Add(s.grace)
	}
}

// Reconnected restores a session that returned inside its grace window and
// reports whether the account counts as online afterwards.
func (s *Store) Reconnected(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	if !ok {
		return false
	}
	if acct.online {
		return true
	}
	if !acct.graceUntil.IsZero() && !s.now().After(acct.graceUntil) {
		acct.online = true
		acct.graceUntil = time.Time{}
		return true
	}
	return false
}

// IsOnline reports whether the account is online or within its grace window.
func (s *Store) IsOnline(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	if !ok {
		return false
	}
	return s.onlineLocked(acct)
}

// Online lists online usernames, optionally filtered by role.
func (s *Store) Online(role string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, acct := range s.accounts {
		if !s.onlineLocked(acct) {
			continue
		}
		if role != "" && acct.role != role {
			continue
		}
		out = append(out, acct.username)
	}
	sort.Strings(out)
	return out
}

// Role reports the role registered for the account.
func (s *Store) Role(username string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	if !ok {
		return "", false
	}
	return acct.role, true
}

func (s *Store) onlineLocked(acct *account) bool {
	if acct.online {
		return true
	}
	return !acct.graceUntil.IsZero() && !s.now().After(acct.graceUntil)
}
