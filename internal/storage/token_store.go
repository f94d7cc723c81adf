package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Credential is the persisted bearer token and the identity it was issued
// for. It is the only durable client-side state; its presence across process
// restarts is what keeps a user logged in.
type Credential struct {
	Token    string    `json:"token"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	SavedAt  time.Time `json:"saved_at"`
}

// TokenStore provides file-based storage for credentials, one file per key.
// The CLI uses a single fixed key; the bot keys by chat ID.
type TokenStore struct {
	basePath string
}

// NewTokenStore creates a new TokenStore and ensures the base directory exists.
func NewTokenStore(basePath string) (*TokenStore, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory %s: %w", basePath, err)
	}
	return &TokenStore{basePath: basePath}, nil
}

// sanitizeKey makes the key safe for filenames.
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "..", "-")
	return replacer.Replace(key)
}

func (s *TokenStore) pathFor(key string) string {
	return filepath.Join(s.basePath, fmt.Sprintf("credential_%s.json", sanitizeKey(key)))
}

// Save persists a credential under the given key.
func (s *TokenStore) Save(key string, cred Credential) error {
	if cred.SavedAt.IsZero() {
		cred.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := os.WriteFile(s.pathFor(key), data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

// Load retrieves the credential stored under key. A missing file is an
// unauthenticated start, not an error: it returns (nil, nil).
func (s *TokenStore) Load(key string) (*Credential, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	if cred.Token == "" {
		return nil, nil
	}
	return &cred, nil
}

// Clear removes the credential stored under key. Clearing an absent
// credential is a no-op.
func (s *TokenStore) Clear(key string) error {
	err := os.Remove(s.pathFor(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

// Exists reports whether a credential file is present for key.
func (s *TokenStore) Exists(key string) bool {
	_, err := os.Stat(s.pathFor(key))
	return !os.IsNotExist(err)
}
