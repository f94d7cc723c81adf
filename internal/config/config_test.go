package config

import (
	"os"
	"testing"
	"time"
)

func TestNewFromEnv(t *testing.T) {
	// Helper function to set environment variables for a test
	setEnv := func(key, value string) {
		t.Helper()
		t.Setenv(key, value)
	}

	t.Run("Success", func(t *testing.T) {
		setEnv("NUTRIETARY_API_URL", "http://backend.test/")
		setEnv("NUTRIETARY_DATA_DIR", "/tmp/nutrietary-test")
		setEnv("TELEGRAM_BOT_TOKEN", "bot-token")
		setEnv("TELEGRAM_ALLOWED_USER_IDS", "123, 456")
		setEnv("TELEGRAM_ADMIN_ID", "123")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.APIBaseURL != "http://backend.test" {
			t.Errorf("Expected APIBaseURL to be 'http://backend.test' (trailing slash trimmed), got '%s'", cfg.APIBaseURL)
		}
		if cfg.DataDir != "/tmp/nutrietary-test" {
			t.Errorf("Expected DataDir to be '/tmp/nutrietary-test', got '%s'", cfg.DataDir)
		}
		if cfg.DBPath != "/tmp/nutrietary-test/nutrietary-client.db" {
			t.Errorf("Expected DBPath to default under DataDir, got '%s'", cfg.DBPath)
		}
		if cfg.HTTPTimeout != 30*time.Second {
			t.Errorf("Expected default HTTPTimeout of 30s, got %v", cfg.HTTPTimeout)
		}
		if len(cfg.TelegramAllowedUserIDs) != 2 || cfg.TelegramAllowedUserIDs[0] != 123 || cfg.TelegramAllowedUserIDs[1] != 456 {
			t.Errorf("Expected allowed user IDs [123 456], got %v", cfg.TelegramAllowedUserIDs)
		}
		if cfg.AdminTelegramID != 123 {
			t.Errorf("Expected AdminTelegramID 123, got %d", cfg.AdminTelegramID)
		}
	})

	t.Run("MissingAPIURL", func(t *testing.T) {
		setEnv("NUTRIETARY_DATA_DIR", "/tmp/nutrietary-test")
		os.Unsetenv("NUTRIETARY_API_URL")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing NUTRIETARY_API_URL, got nil")
		}
		expectedError := "NUTRIETARY_API_URL environment variable not set"
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("DefaultDataDir", func(t *testing.T) {
		setEnv("NUTRIETARY_API_URL", "http://backend.test")
		os.Unsetenv("NUTRIETARY_DATA_DIR")
		os.Unsetenv("NUTRIETARY_DB_PATH")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.DataDir != "data" {
			t.Errorf("Expected default DataDir 'data', got '%s'", cfg.DataDir)
		}
	})

	t.Run("CustomTimeout", func(t *testing.T) {
		setEnv("NUTRIETARY_API_URL", "http://backend.test")
		setEnv("NUTRIETARY_HTTP_TIMEOUT_SECONDS", "5")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.HTTPTimeout != 5*time.Second {
			t.Errorf("Expected HTTPTimeout of 5s, got %v", cfg.HTTPTimeout)
		}
	})

	t.Run("InvalidTimeout", func(t *testing.T) {
		setEnv("NUTRIETARY_API_URL", "http://backend.test")
		setEnv("NUTRIETARY_HTTP_TIMEOUT_SECONDS", "soon")

		if _, err := NewFromEnv(); err == nil {
			t.Fatal("Expected an error for invalid timeout, got nil")
		}
	})

	t.Run("InvalidAllowedUserID", func(t *testing.T) {
		setEnv("NUTRIETARY_API_URL", "http://backend.test")
		setEnv("TELEGRAM_ALLOWED_USER_IDS", "123,abc")

		if _, err := NewFromEnv(); err == nil {
			t.Fatal("Expected an error for invalid allowed user ID, got nil")
		}
	})
}
