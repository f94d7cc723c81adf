package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTokenStore(t *testing.T) {
	// Create a temporary directory for testing
	tempDir, err := os.MkdirTemp("", "token_store_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	store, err := NewTokenStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create TokenStore: %v", err)
	}

	key := "default"
	cred := Credential{
		Token:    "header.payload.signature",
		UserID:   42,
		Username: "alice",
	}

	t.Run("LoadMissing", func(t *testing.T) {
		loaded, err := store.Load(key)
		if err != nil {
			t.Fatalf("Expected no error for a missing credential, got %v", err)
		}
		if loaded != nil {
			t.Errorf("Expected nil credential for a missing file, got %+v", loaded)
		}
	})

	t.Run("Save", func(t *testing.T) {
		if err := store.Save(key, cred); err != nil {
			t.Fatalf("Failed to save credential: %v", err)
		}

		filePath := filepath.Join(tempDir, "credential_default.json")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			t.Errorf("Expected file '%s' to be created, but it wasn't", filePath)
		}
	})

	t.Run("Load", func(t *testing.T) {
		loaded, err := store.Load(key)
		if err != nil {
			t.Fatalf("Failed to load credential: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected a credential, got nil")
		}
		if loaded.Token != cred.Token {
			t.Errorf("Expected token '%s', got '%s'", cred.Token, loaded.Token)
		}
		if loaded.UserID != 42 {
			t.Errorf("Expected user ID 42, got %d", loaded.UserID)
		}
		if loaded.Username != "alice" {
			t.Errorf("Expected username 'alice', got '%s'", loaded.Username)
		}
		if loaded.SavedAt.IsZero() {
			t.Error("Expected SavedAt to be stamped on save")
		}
	})

	t.Run("Exists", func(t *testing.T) {
		if !store.Exists(key) {
			t.Error("Expected credential to exist")
		}
		if store.Exists("other") {
			t.Error("Expected no credential under 'other'")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := store.Clear(key); err != nil {
			t.Fatalf("Failed to clear credential: %v", err)
		}
		loaded, err := store.Load(key)
		if err != nil {
			t.Fatalf("Load after clear failed: %v", err)
		}
		if loaded != nil {
			t.Error("Expected credential to be gone after Clear")
		}
	})

	t.Run("ClearMissing", func(t *testing.T) {
		if err := store.Clear(key); err != nil {
			t.Errorf("Clearing an absent credential should be a no-op, got %v", err)
		}
	})

	t.Run("KeySanitized", func(t *testing.T) {
		weird := "../etc:passwd"
		if err := store.Save(weird, cred); err != nil {
			t.Fatalf("Failed to save under hostile key: %v", err)
		}
		entries, err := os.ReadDir(tempDir)
		if err != nil {
			t.Fatalf("Failed to read temp dir: %v", err)
		}
		for _, entry := range entries {
			if filepath.Dir(filepath.Join(tempDir, entry.Name())) != tempDir {
				t.Errorf("Credential escaped the base directory: %s", entry.Name())
			}
		}
	})
}
