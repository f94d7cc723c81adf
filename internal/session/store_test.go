package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nutrietary-client/internal/api"
	"nutrietary-client/internal/config"
	"nutrietary-client/internal/storage"
)

// newBackend builds a client pointed at a stub server and a token store in a
// temp dir, the two collaborators every session test needs.
func newBackend(t *testing.T, handler http.Handler) (api.Client, *storage.TokenStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := api.NewClient(&config.Config{
		APIBaseURL:  srv.URL,
		HTTPTimeout: 5 * time.Second,
	}, nil)

	tokens, err := storage.NewTokenStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create token store: %v", err)
	}
	return client, tokens
}

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":      "42",
		"username": "alice",
		"iat":      time.Now().Add(-time.Hour).Unix(),
		"exp":      expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return token
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["username"] != "alice" || req["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(api.AuthResponse{Token: "tok-1", UserID: 42, Username: "alice"})
	})

	client, tokens := newBackend(t, mux)
	store := NewStore(client, tokens, "default")

	t.Run("Success", func(t *testing.T) {
		if err := store.Login(context.Background(), "alice", "secret"); err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if !store.Authenticated() {
			t.Error("Expected store to be authenticated after login")
		}
		user, ok := store.CurrentUser()
		if !ok || user.Username != "alice" || user.ID != 42 {
			t.Errorf("Unexpected current user: %+v ok=%v", user, ok)
		}
		if store.Token() != "tok-1" {
			t.Errorf("Expected token 'tok-1', got '%s'", store.Token())
		}

		cred, err := tokens.Load("default")
		if err != nil || cred == nil {
			t.Fatalf("Expected a persisted credential, got %+v err=%v", cred, err)
		}
		if cred.Token != "tok-1" || cred.Username != "alice" {
			t.Errorf("Unexpected persisted credential: %+v", cred)
		}
	})

	t.Run("BadCredentials", func(t *testing.T) {
		fresh := NewStore(client, tokens, "fresh")
		err := fresh.Login(context.Background(), "alice", "wrong")
		if err == nil {
			t.Fatal("Expected login to fail")
		}
		var authErr *api.AuthError
		if !errors.As(err, &authErr) {
			t.Errorf("Expected *api.AuthError, got %T: %v", err, err)
		}
		if fresh.Authenticated() {
			t.Error("Expected store to stay unauthenticated after failed login")
		}
		if tokens.Exists("fresh") {
			t.Error("Expected no credential persisted after failed login")
		}
	})
}

func TestLogout(t *testing.T) {
	client, tokens := newBackend(t, http.NewServeMux())
	store := NewStore(client, tokens, "default")

	if err := tokens.Save("default", storage.Credential{Token: "tok", UserID: 1, Username: "a"}); err != nil {
		t.Fatalf("Failed to seed credential: %v", err)
	}
	store.token = "tok"
	store.user = &api.User{ID: 1, Username: "a"}

	if err := store.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if store.Authenticated() {
		t.Error("Expected store to be unauthenticated after logout")
	}
	if tokens.Exists("default") {
		t.Error("Expected persisted credential to be cleared")
	}
}

func TestBootstrap(t *testing.T) {
	t.Run("NoCredential", func(t *testing.T) {
		client, tokens := newBackend(t, http.NewServeMux())
		store := NewStore(client, tokens, "default")
		if err := store.Bootstrap(context.Background()); err != nil {
			t.Fatalf("Bootstrap failed: %v", err)
		}
		if store.Authenticated() {
			t.Error("Expected an empty store to stay unauthenticated")
		}
	})

	t.Run("ValidCredential", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-valid" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(api.User{ID: 42, Username: "alice"})
		})
		client, tokens := newBackend(t, mux)
		if err := tokens.Save("default", storage.Credential{Token: "tok-valid", UserID: 42, Username: "alice"}); err != nil {
			t.Fatalf("Failed to seed credential: %v", err)
		}

		store := NewStore(client, tokens, "default")
		if err := store.Bootstrap(context.Background()); err != nil {
			t.Fatalf("Bootstrap failed: %v", err)
		}
		if !store.Authenticated() {
			t.Fatal("Expected a restored session")
		}
		user, _ := store.CurrentUser()
		if user.Username != "alice" {
			t.Errorf("Expected username 'alice', got '%s'", user.Username)
		}
	})

	t.Run("RejectedCredentialCleared", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
		})
		client, tokens := newBackend(t, mux)
		if err := tokens.Save("default", storage.Credential{Token: "tok-stale", UserID: 42, Username: "alice"}); err != nil {
			t.Fatalf("Failed to seed credential: %v", err)
		}

		store := NewStore(client, tokens, "default")
		if err := store.Bootstrap(context.Background()); err != nil {
			t.Fatalf("Bootstrap should swallow verification failures, got %v", err)
		}
		if store.Authenticated() {
			t.Error("Expected a rejected credential to leave the store unauthenticated")
		}
		if tokens.Exists("default") {
			t.Error("Expected the rejected credential to be cleared from disk")
		}
	})

	t.Run("LocallyExpiredSkipsNetwork", func(t *testing.T) {
		meCalled := false
		mux := http.NewServeMux()
		mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
			meCalled = true
			w.WriteHeader(http.StatusUnauthorized)
		})
		client, tokens := newBackend(t, mux)
		expired := signedToken(t, time.Now().Add(-time.Hour))
		if err := tokens.Save("default", storage.Credential{Token: expired, UserID: 42, Username: "alice"}); err != nil {
			t.Fatalf("Failed to seed credential: %v", err)
		}

		store := NewStore(client, tokens, "default")
		if err := store.Bootstrap(context.Background()); err != nil {
			t.Fatalf("Bootstrap failed: %v", err)
		}
		if meCalled {
			t.Error("Expected an expired token to be cleared without a round-trip")
		}
		if store.Authenticated() || tokens.Exists("default") {
			t.Error("Expected the expired credential to be cleared")
		}
	})

	t.Run("RunsOnce", func(t *testing.T) {
		calls := 0
		mux := http.NewServeMux()
		mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
			calls++
			json.NewEncoder(w).Encode(api.User{ID: 1, Username: "a"})
		})
		client, tokens := newBackend(t, mux)
		if err := tokens.Save("default", storage.Credential{Token: signedToken(t, time.Now().Add(time.Hour))}); err != nil {
			t.Fatalf("Failed to seed credential: %v", err)
		}

		store := NewStore(client, tokens, "default")
		store.Bootstrap(context.Background())
		store.Bootstrap(context.Background())
		if calls != 1 {
			t.Errorf("Expected exactly one verification call, got %d", calls)
		}
	})
}

func TestParseTokenInfo(t *testing.T) {
	t.Run("WellFormed", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		info := parseTokenInfo(signedToken(t, exp))
		if !info.Parsed {
			t.Fatal("Expected the token to parse")
		}
		if info.Subject != "42" {
			t.Errorf("Expected subject '42', got '%s'", info.Subject)
		}
		if info.Username != "alice" {
			t.Errorf("Expected username 'alice', got '%s'", info.Username)
		}
		if !info.ExpiresAt.Equal(exp) {
			t.Errorf("Expected expiry %s, got %s", exp, info.ExpiresAt)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if parseTokenInfo("not-a-jwt").Parsed {
			t.Error("Expected garbage input to fail parsing")
		}
	})
}
