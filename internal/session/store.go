// Package session holds the authenticated identity and bearer credential for
// one user surface, and gates everything behind it. Frontends construct one
// Store per surface and pass it by reference; nothing else reads or writes
// the persisted credential.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"nutrietary-client/internal/api"
	"nutrietary-client/internal/storage"
)

// ErrAuthInProgress is returned when a login or register call is issued while
// another one is still outstanding. Callers are expected to disable
// re-submission; this guard backs that up.
var ErrAuthInProgress = fmt.Errorf("another authentication attempt is in progress")

// Store is the session store for a single user surface.
type Store struct {
	client api.Client
	tokens *storage.TokenStore
	key    string

	mu           sync.Mutex
	bootstrapped bool
	authInFlight bool
	token        string
	user         *api.User
}

// NewStore creates a session store persisting its credential under key.
func NewStore(client api.Client, tokens *storage.TokenStore, key string) *Store {
	return &Store{
		client: client,
		tokens: tokens,
		key:    key,
	}
}

// Bootstrap restores the session from the persisted credential, verifying it
// against the server. It runs once per store; later calls are no-ops. On any
// verification failure the persisted credential is cleared and the store is
// left unauthenticated; that outcome is not an error to the caller.
func (s *Store) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	if s.bootstrapped {
		s.mu.Unlock()
		return nil
	}
	s.bootstrapped = true
	s.mu.Unlock()

	cred, err := s.tokens.Load(s.key)
	if err != nil {
		return fmt.Errorf("failed to load persisted credential: %w", err)
	}
	if cred == nil {
		return nil
	}

	// A token that is already expired by its own claims would only earn a
	// 401 round-trip; clear it locally.
	if info := parseTokenInfo(cred.Token); info.Parsed && !info.ExpiresAt.IsZero() && info.ExpiresAt.Before(time.Now()) {
		log.Printf("session %s: persisted credential expired at %s, clearing", s.key, info.ExpiresAt)
		return s.tokens.Clear(s.key)
	}

	user, err := s.client.Me(ctx, cred.Token)
	if err != nil {
		log.Printf("session %s: verification failed (%v), clearing credential", s.key, err)
		return s.tokens.Clear(s.key)
	}

	s.mu.Lock()
	s.token = cred.Token
	s.user = user
	s.mu.Unlock()
	return nil
}

// Login authenticates with the server and, on success, persists the returned
// credential and sets the identity. On failure the existing session state is
// left untouched and the API error is returned.
func (s *Store) Login(ctx context.Context, username, password string) error {
	return s.authenticate(ctx, username, password, s.client.Login)
}

// Register creates a new account; success and failure behave as Login.
func (s *Store) Register(ctx context.Context, username, password string) error {
	return s.authenticate(ctx, username, password, s.client.Register)
}

func (s *Store) authenticate(ctx context.Context, username, password string, call func(context.Context, string, string) (*api.AuthResponse, error)) error {
	s.mu.Lock()
	if s.authInFlight {
		s.mu.Unlock()
		return ErrAuthInProgress
	}
	s.authInFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.authInFlight = false
		s.mu.Unlock()
	}()

	resp, err := call(ctx, username, password)
	if err != nil {
		return err
	}

	cred := storage.Credential{
		Token:    resp.Token,
		UserID:   resp.UserID,
		Username: resp.Username,
	}
	if err := s.tokens.Save(s.key, cred); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	s.mu.Lock()
	s.token = resp.Token
	s.user = &api.User{ID: resp.UserID, Username: resp.Username}
	s.mu.Unlock()
	return nil
}

// Logout clears the identity and the persisted credential. No server
// round-trip is made; the operation is irreversible.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
	return s.tokens.Clear(s.key)
}

// Authenticated reports whether the store currently holds a verified session.
// This is the route-guard predicate for protected views.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.user != nil
}

// CurrentUser returns the authenticated identity, if any.
func (s *Store) CurrentUser() (api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return api.User{}, false
	}
	return *s.user, true
}

// Token returns the bearer credential for outgoing requests, or "" when
// unauthenticated. The credential is immutable between login and logout.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}
