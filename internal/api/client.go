package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"nutrietary-client/internal/config"
)

// Client is an interface for the Nutrietary backend API.
type Client interface {
	Login(ctx context.Context, username, password string) (*AuthResponse, error)
	Register(ctx context.Context, username, password string) (*AuthResponse, error)
	Me(ctx context.Context, token string) (*User, error)
	GetPreferences(ctx context.Context, token string) (*PreferencesResponse, error)
	SavePreferences(ctx context.Context, token string, req SavePreferencesRequest) error
	GenerateMealPlan(ctx context.Context, token string, req GenerateRequest) (*GenerateResponse, error)
	ListMealPlans(ctx context.Context, token string, page, perPage int) (*PlanListResponse, error)
	DeleteMealPlan(ctx context.Context, token string, id int64) error
	Health(ctx context.Context) (*HealthResponse, error)
}

// Observer receives the outcome of every API request. Implementations must
// not block; the client calls it inline.
type Observer interface {
	ObserveRequest(method, path, requestID string, statusCode int, latency time.Duration)
}

// httpClient is the concrete implementation of the API client.
type httpClient struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
}

// NewClient creates a new API client. observer may be nil.
func NewClient(cfg *config.Config, observer Observer) Client {
	return &httpClient{
		baseURL: cfg.APIBaseURL,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		observer: observer,
	}
}

// errorBody is the uniform failure shape of the backend.
type errorBody struct {
	Error string `json:"error"`
}

// do issues one JSON request. token may be empty for public endpoints, body
// and out may be nil. All failures map to the AuthError / ValidationError /
// NetworkError taxonomy.
func (c *httpClient) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.observe(method, path, requestID, 0, latency)
		log.Printf("api: %s %s rid=%s transport error after %s: %v", method, path, requestID, latency, err)
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	c.observe(method, path, requestID, resp.StatusCode, latency)
	log.Printf("api: %s %s rid=%s status=%d in %s", method, path, requestID, resp.StatusCode, latency)

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{Message: decodeErrorMessage(resp.Body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ValidationError{
			StatusCode: resp.StatusCode,
			Message:    decodeErrorMessage(resp.Body),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *httpClient) observe(method, path, requestID string, statusCode int, latency time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, path, requestID, statusCode, latency)
	}
}

func decodeErrorMessage(r io.Reader) string {
	var eb errorBody
	if err := json.NewDecoder(r).Decode(&eb); err != nil {
		return ""
	}
	return eb.Error
}

func (c *httpClient) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	payload := map[string]string{"username": username, "password": password}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/login", "", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) Register(ctx context.Context, username, password string) (*AuthResponse, error) {
	payload := map[string]string{"username": username, "password": password}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/register", "", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) Me(ctx context.Context, token string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) GetPreferences(ctx context.Context, token string) (*PreferencesResponse, error) {
	var out PreferencesResponse
	if err := c.do(ctx, http.MethodGet, "/preferences", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) SavePreferences(ctx context.Context, token string, req SavePreferencesRequest) error {
	return c.do(ctx, http.MethodPut, "/preferences", token, req, nil)
}

func (c *httpClient) GenerateMealPlan(ctx context.Context, token string, req GenerateRequest) (*GenerateResponse, error) {
	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/generate_mealplan", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) ListMealPlans(ctx context.Context, token string, page, perPage int) (*PlanListResponse, error) {
	path := fmt.Sprintf("/mealplans?page=%d&per_page=%d", page, perPage)
	var out PlanListResponse
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) DeleteMealPlan(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/mealplans/%d", id), token, nil, nil)
}

func (c *httpClient) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
