// Package plans manages the meal-plan collection view: fetching pages,
// deletion with local reconciliation, expansion state, and rendering of the
// untrusted plan payloads the backend stores verbatim from its AI engine.
package plans

import (
	"bytes"
	"encoding/json"

	"nutrietary-client/internal/api"
)

// Day is a single well-formed day within a plan.
type Day struct {
	Label string
	Meals []Meal
}

// Meal is one meal within a day. Every field is optional on the wire.
type Meal struct {
	Type        string
	Name        string
	Servings    string
	PrepMinutes string
	Recipe      string
	Ingredients []Ingredient
}

// Ingredient is a single ingredient of a meal.
type Ingredient struct {
	Name string
	Qty  string
}

// GroceryItem is one entry of the flat grocery list.
type GroceryItem struct {
	Item  string
	Qty   string
	Notes string
}

// PlanDetails is the structural-validation verdict on a raw plan payload,
// decided once at ingestion. Renderers branch on OK instead of probing
// shapes; a false OK means "details unavailable", never a crash.
type PlanDetails struct {
	OK   bool
	Days []Day
}

type wireMeal struct {
	Type        api.FlexString    `json:"type"`
	Name        api.FlexString    `json:"name"`
	Servings    api.FlexString    `json:"servings"`
	PrepMinutes api.FlexString    `json:"approx_prep_time_minutes"`
	Recipe      api.FlexString    `json:"recipe"`
	Ingredients []json.RawMessage `json:"ingredients"`
}

type wireIngredient struct {
	Name api.FlexString `json:"name"`
	Qty  api.FlexString `json:"qty"`
}

type wireGroceryItem struct {
	Item  api.FlexString `json:"item"`
	Qty   api.FlexString `json:"qty"`
	Notes api.FlexString `json:"notes"`
}

// ParsePlan validates a raw plan payload. The guard is: the payload is a JSON
// object carrying a "days" array. Null, scalars, arrays, objects without
// days, or unparseable bytes all yield the fallback variant. Malformed
// entries inside the days array are skipped individually.
func ParsePlan(raw json.RawMessage) PlanDetails {
	if isEmptyJSON(raw) {
		return PlanDetails{}
	}

	var envelope struct {
		Days *[]json.RawMessage `json:"days"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Days == nil {
		return PlanDetails{}
	}

	details := PlanDetails{OK: true, Days: []Day{}}
	for _, rawDay := range *envelope.Days {
		var wd struct {
			Day   api.FlexString    `json:"day"`
			Meals []json.RawMessage `json:"meals"`
		}
		if err := json.Unmarshal(rawDay, &wd); err != nil {
			continue
		}
		day := Day{Label: string(wd.Day)}
		for _, rawMeal := range wd.Meals {
			var wm wireMeal
			if err := json.Unmarshal(rawMeal, &wm); err != nil {
				continue
			}
			meal := Meal{
				Type:        string(wm.Type),
				Name:        string(wm.Name),
				Servings:    string(wm.Servings),
				PrepMinutes: string(wm.PrepMinutes),
				Recipe:      string(wm.Recipe),
			}
			for _, rawIng := range wm.Ingredients {
				if ing, ok := parseIngredient(rawIng); ok {
					meal.Ingredients = append(meal.Ingredients, ing)
				}
			}
			day.Meals = append(day.Meals, meal)
		}
		details.Days = append(details.Days, day)
	}
	return details
}

func parseIngredient(raw json.RawMessage) (Ingredient, bool) {
	// The AI sometimes emits bare strings instead of {name, qty} objects.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return Ingredient{}, false
		}
		return Ingredient{Name: s}, true
	}
	var wi wireIngredient
	if err := json.Unmarshal(raw, &wi); err != nil || wi.Name == "" {
		return Ingredient{}, false
	}
	return Ingredient{Name: string(wi.Name), Qty: string(wi.Qty)}, true
}

// ParseGroceryList validates the flat grocery payload. Anything other than an
// array yields nil, which suppresses the grocery section entirely.
func ParseGroceryList(raw json.RawMessage) []GroceryItem {
	if isEmptyJSON(raw) {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	var items []GroceryItem
	for _, entry := range entries {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			if s != "" {
				items = append(items, GroceryItem{Item: s})
			}
			continue
		}
		var wg wireGroceryItem
		if err := json.Unmarshal(entry, &wg); err != nil || wg.Item == "" {
			continue
		}
		items = append(items, GroceryItem{
			Item:  string(wg.Item),
			Qty:   string(wg.Qty),
			Notes: string(wg.Notes),
		})
	}
	return items
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}
