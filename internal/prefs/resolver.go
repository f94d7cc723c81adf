// Package prefs resolves saved preferences and per-generation overrides into
// the effective settings for one generation request. Everything here is pure;
// the caller owns all I/O.
package prefs

import (
	"strconv"
	"strings"

	"nutrietary-client/internal/api"
)

// Defaults applied when neither an override nor a saved value exists.
const (
	DefaultDays      = 3
	DefaultMealTypes = "breakfast,lunch,dinner"

	// Display-only placeholders; never sent to the server.
	NoBudgetLabel  = "no limit"
	NoDietaryLabel = "not set"

	MinDays = 1
	MaxDays = 7
)

var validMealTypes = map[string]bool{
	"breakfast": true,
	"lunch":     true,
	"dinner":    true,
	"snack":     true,
}

// Overrides are the per-generation transient values. All fields are strings;
// the empty string means "unset, fall through to the saved preference".
type Overrides struct {
	Dietary   string
	Budget    string
	Days      string
	MealTypes string
	Custom    string
}

// Effective is the fully resolved set of generation settings.
type Effective struct {
	Dietary   string
	Budget    string
	Days      int
	MealTypes string
	Custom    string
}

// Resolve merges overrides over saved preferences over defaults, per field.
// An override counts as set only when it is a non-empty string. MealTypes and
// Days always resolve to a usable value, saved preferences or not.
func Resolve(saved *api.Preferences, o Overrides) Effective {
	var eff Effective

	eff.Dietary = firstNonEmpty(o.Dietary, savedDietary(saved), NoDietaryLabel)
	eff.Budget = firstNonEmpty(o.Budget, savedBudget(saved), NoBudgetLabel)
	eff.Custom = firstNonEmpty(o.Custom, savedCustom(saved), "")

	eff.Days = DefaultDays
	if saved != nil && saved.Days > 0 {
		eff.Days = clampDays(saved.Days)
	}
	if d, ok := parseDays(o.Days); ok {
		eff.Days = d
	}

	eff.MealTypes = DefaultMealTypes
	if saved != nil && saved.MealTypes != "" {
		eff.MealTypes = saved.MealTypes
	}
	if mt := NormalizeMealTypes(o.MealTypes); mt != "" {
		eff.MealTypes = mt
	}

	return eff
}

// GenerateRequest serializes only the set overrides into the outbound
// generation payload. Fields falling through to saved preferences are omitted
// entirely; the server applies its own fallback. An empty string is never
// sent, so the server cannot read an unset override as "clear this field".
func GenerateRequest(o Overrides) api.GenerateRequest {
	var req api.GenerateRequest

	if d, ok := parseDays(o.Days); ok {
		req.Days = d
	}

	prefs := map[string]string{}
	if o.Dietary != "" {
		prefs["dietary_preferences"] = o.Dietary
	}
	if o.Budget != "" {
		prefs["budget"] = o.Budget
	}
	if mt := NormalizeMealTypes(o.MealTypes); mt != "" {
		prefs["meal_types"] = mt
	}
	if o.Custom != "" {
		prefs["custom_preferences"] = o.Custom
	}
	if len(prefs) > 0 {
		req.Preferences = prefs
	}
	return req
}

// NormalizeMealTypes lowercases, trims, deduplicates and filters a
// comma-joined meal type list down to the known set, preserving order.
// Anything that leaves no valid entries normalizes to "".
func NormalizeMealTypes(raw string) string {
	if raw == "" {
		return ""
	}
	var kept []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		mt := strings.ToLower(strings.TrimSpace(part))
		if !validMealTypes[mt] || seen[mt] {
			continue
		}
		seen[mt] = true
		kept = append(kept, mt)
	}
	return strings.Join(kept, ",")
}

func parseDays(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	d, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return clampDays(d), true
}

func clampDays(d int) int {
	if d < MinDays || d > MaxDays {
		return DefaultDays
	}
	return d
}

func savedDietary(p *api.Preferences) string {
	if p == nil {
		return ""
	}
	return p.Dietary
}

func savedBudget(p *api.Preferences) string {
	if p == nil {
		return ""
	}
	return string(p.Budget)
}

func savedCustom(p *api.Preferences) string {
	if p == nil {
		return ""
	}
	return p.Custom
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
