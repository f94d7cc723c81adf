package api

import (
	"bytes"
	"encoding/json"
)

// User is the authenticated identity returned by GET /me.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// AuthResponse is returned by POST /login and POST /register.
type AuthResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// FlexString tolerates JSON strings and numbers alike. The backend stores
// some numeric columns loosely, so a field saved as "50" may come back as 50.
// Any other shape decodes to the empty string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// Preferences mirrors the server-side stored dietary settings.
type Preferences struct {
	Dietary   string     `json:"dietary_preferences"`
	Budget    FlexString `json:"budget"`
	Days      int        `json:"days"`
	MealTypes string     `json:"meal_types"`
	Custom    string     `json:"custom_preferences"`
	UpdatedAt string     `json:"updated_at"`
}

// PreferencesResponse is returned by GET /preferences. Preferences is nil
// when the user has never saved any.
type PreferencesResponse struct {
	Preferences *Preferences `json:"preferences"`
	CustomMax   int          `json:"custom_preferences_max_length"`
}

// SavePreferencesRequest carries only the fields being changed; the server
// keeps existing values for omitted fields.
type SavePreferencesRequest struct {
	Dietary   string `json:"dietary_preferences,omitempty"`
	Budget    string `json:"budget,omitempty"`
	Days      int    `json:"days,omitempty"`
	MealTypes string `json:"meal_types,omitempty"`
	Custom    string `json:"custom_preferences,omitempty"`
}

// GenerateRequest carries per-generation overrides for POST /generate_mealplan.
// Unset fields must be omitted entirely; the server falls back to the saved
// preferences on its own. An empty string must never be sent as "clear".
type GenerateRequest struct {
	Days        int               `json:"days,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// GenerateResponse is returned by POST /generate_mealplan.
type GenerateResponse struct {
	PlanID        int64  `json:"plan_id"`
	AITextSnippet string `json:"ai_text_snippet"`
}

// MealPlan is a stored plan as returned by GET /mealplans. Plan and
// GroceryList are untrusted payloads produced by the AI on the server side;
// they are kept raw here and structurally validated at render time.
type MealPlan struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Plan        json.RawMessage `json:"plan"`
	GroceryList json.RawMessage `json:"grocery_list"`
	CreatedAt   string          `json:"created_at"`
}

// PlanListResponse is the paginated response of GET /mealplans.
type PlanListResponse struct {
	Page    int        `json:"page"`
	PerPage int        `json:"per_page"`
	Total   int        `json:"total"`
	Plans   []MealPlan `json:"plans"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp"`
	GeminiConfigured bool   `json:"gemini_configured"`
}
