package prefs

import (
	"testing"

	"nutrietary-client/internal/api"
)

func savedFixture() *api.Preferences {
	return &api.Preferences{
		Dietary:   "vegetarian",
		Budget:    "100",
		Days:      3,
		MealTypes: "breakfast,dinner",
		Custom:    "no peanuts",
	}
}

func TestResolve(t *testing.T) {
	t.Run("OverridesWin", func(t *testing.T) {
		eff := Resolve(savedFixture(), Overrides{
			Dietary:   "vegan",
			Budget:    "50",
			Days:      "5",
			MealTypes: "lunch,snack",
		})
		if eff.Dietary != "vegan" {
			t.Errorf("Expected dietary 'vegan', got '%s'", eff.Dietary)
		}
		if eff.Budget != "50" {
			t.Errorf("Expected budget '50', got '%s'", eff.Budget)
		}
		if eff.Days != 5 {
			t.Errorf("Expected days 5, got %d", eff.Days)
		}
		if eff.MealTypes != "lunch,snack" {
			t.Errorf("Expected meal types 'lunch,snack', got '%s'", eff.MealTypes)
		}
		if eff.Custom != "no peanuts" {
			t.Errorf("Expected custom to fall through to saved, got '%s'", eff.Custom)
		}
	})

	t.Run("EmptyOverridesFallThrough", func(t *testing.T) {
		eff := Resolve(savedFixture(), Overrides{})
		if eff.Dietary != "vegetarian" || eff.Budget != "100" || eff.Days != 3 || eff.MealTypes != "breakfast,dinner" {
			t.Errorf("Expected saved values to apply, got %+v", eff)
		}
	})

	t.Run("NoSavedUsesDefaults", func(t *testing.T) {
		eff := Resolve(nil, Overrides{})
		if eff.Days != DefaultDays {
			t.Errorf("Expected default days %d, got %d", DefaultDays, eff.Days)
		}
		if eff.MealTypes != DefaultMealTypes {
			t.Errorf("Expected default meal types '%s', got '%s'", DefaultMealTypes, eff.MealTypes)
		}
		if eff.Budget != NoBudgetLabel {
			t.Errorf("Expected budget label '%s', got '%s'", NoBudgetLabel, eff.Budget)
		}
		if eff.Dietary != NoDietaryLabel {
			t.Errorf("Expected dietary label '%s', got '%s'", NoDietaryLabel, eff.Dietary)
		}
	})

	t.Run("NeverEmptyWithSaved", func(t *testing.T) {
		// Even a sparse saved record resolves to usable days and meal types.
		eff := Resolve(&api.Preferences{Dietary: "halal"}, Overrides{})
		if eff.Days == 0 {
			t.Error("Days must never resolve to zero")
		}
		if eff.MealTypes == "" {
			t.Error("MealTypes must never resolve to empty")
		}
	})

	t.Run("InvalidDaysOverrideClamped", func(t *testing.T) {
		eff := Resolve(savedFixture(), Overrides{Days: "12"})
		if eff.Days != DefaultDays {
			t.Errorf("Expected out-of-range override to clamp to %d, got %d", DefaultDays, eff.Days)
		}
	})

	t.Run("UnparseableDaysFallsThrough", func(t *testing.T) {
		eff := Resolve(savedFixture(), Overrides{Days: "soon"})
		if eff.Days != 3 {
			t.Errorf("Expected unparseable override to fall through to saved 3, got %d", eff.Days)
		}
	})
}

func TestGenerateRequest(t *testing.T) {
	t.Run("OnlySetOverridesSerialized", func(t *testing.T) {
		req := GenerateRequest(Overrides{Days: "5"})
		if req.Days != 5 {
			t.Errorf("Expected days 5 in payload, got %d", req.Days)
		}
		if req.Preferences != nil {
			t.Errorf("Expected untouched preference fields to be omitted, got %v", req.Preferences)
		}
	})

	t.Run("EmptyOverridesEmptyPayload", func(t *testing.T) {
		req := GenerateRequest(Overrides{})
		if req.Days != 0 || req.Preferences != nil {
			t.Errorf("Expected empty payload for unset overrides, got %+v", req)
		}
	})

	t.Run("PreferenceOverridesMapped", func(t *testing.T) {
		req := GenerateRequest(Overrides{
			Dietary:   "vegan",
			Budget:    "75",
			MealTypes: "breakfast, LUNCH",
			Custom:    "more spice",
		})
		expected := map[string]string{
			"dietary_preferences": "vegan",
			"budget":              "75",
			"meal_types":          "breakfast,lunch",
			"custom_preferences":  "more spice",
		}
		for k, want := range expected {
			if got := req.Preferences[k]; got != want {
				t.Errorf("Expected %s=%q, got %q", k, want, got)
			}
		}
		if len(req.Preferences) != len(expected) {
			t.Errorf("Expected %d preference fields, got %d", len(expected), len(req.Preferences))
		}
	})
}

func TestNormalizeMealTypes(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"Valid", "breakfast,dinner", "breakfast,dinner"},
		{"TrimAndLower", " Breakfast , DINNER ", "breakfast,dinner"},
		{"Dedupe", "lunch,lunch,snack", "lunch,snack"},
		{"DropUnknown", "breakfast,brunch", "breakfast"},
		{"AllUnknown", "brunch,supper", ""},
		{"Empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeMealTypes(tc.in); got != tc.want {
				t.Errorf("NormalizeMealTypes(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
