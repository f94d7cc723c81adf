package plans

import (
	"fmt"
	"strings"
	"time"

	"nutrietary-client/internal/api"
)

// maxIngredientLines bounds how many ingredients are rendered per meal.
// Longer lists get a "+N more" line; the underlying data is untouched.
const maxIngredientLines = 4

// RenderPlanList renders the collection page as Markdown.
func RenderPlanList(v View) string {
	var sb strings.Builder
	sb.WriteString("🗂 *Your Meal Plans*\n")

	if v.Phase == PhaseErrored {
		sb.WriteString("\n⚠️ Could not load meal plans. Showing the last known state.\n")
	}

	if len(v.Items) == 0 {
		sb.WriteString("\n_No meal plans yet. Use /generate to create one._\n")
		return sb.String()
	}

	tp := v.TotalPages()
	sb.WriteString(fmt.Sprintf("_Page %d of %d — %d total_\n\n", v.Page, tp, v.Total))

	for i, p := range v.Items {
		sb.WriteString(fmt.Sprintf("%d. *%s* — %s\n", i+1, planTitle(p), formatCreatedAt(p.CreatedAt)))
	}
	return sb.String()
}

// RenderPlanDetails renders one plan's nested structure. A payload failing
// the shape guard renders the fallback instead of details; a well-formed day
// without meals gets an explicit "no meals planned" line.
func RenderPlanDetails(p api.MealPlan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *%s*\n_%s_\n\n", planTitle(p), formatCreatedAt(p.CreatedAt)))

	details := ParsePlan(p.Plan)
	if !details.OK {
		sb.WriteString("⚠️ _Plan details unavailable._\n")
		return sb.String()
	}

	for _, day := range details.Days {
		label := day.Label
		if label == "" {
			label = "Day"
		}
		sb.WriteString(fmt.Sprintf("*%s*\n", label))
		if len(day.Meals) == 0 {
			sb.WriteString("_No meals planned for this day._\n\n")
			continue
		}
		for _, meal := range day.Meals {
			sb.WriteString(renderMeal(meal))
		}
		sb.WriteString("\n")
	}

	if grocery := ParseGroceryList(p.GroceryList); len(grocery) > 0 {
		sb.WriteString("🛒 *Grocery List*\n")
		for _, item := range grocery {
			sb.WriteString("• " + item.Item)
			if item.Qty != "" {
				sb.WriteString(" — " + item.Qty)
			}
			if item.Notes != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", item.Notes))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func renderMeal(meal Meal) string {
	var sb strings.Builder

	name := meal.Name
	if name == "" {
		name = "Unnamed dish"
	}
	sb.WriteString("• ")
	if meal.Type != "" {
		sb.WriteString(fmt.Sprintf("_%s_: ", meal.Type))
	}
	sb.WriteString(name)

	var extras []string
	if meal.Servings != "" {
		extras = append(extras, "serves "+meal.Servings)
	}
	if meal.PrepMinutes != "" {
		extras = append(extras, "~"+meal.PrepMinutes+" min")
	}
	if len(extras) > 0 {
		sb.WriteString(fmt.Sprintf(" (%s)", strings.Join(extras, ", ")))
	}
	sb.WriteString("\n")

	shown := meal.Ingredients
	hidden := 0
	if len(shown) > maxIngredientLines {
		hidden = len(shown) - maxIngredientLines
		shown = shown[:maxIngredientLines]
	}
	for _, ing := range shown {
		sb.WriteString("    · " + ing.Name)
		if ing.Qty != "" {
			sb.WriteString(" — " + ing.Qty)
		}
		sb.WriteString("\n")
	}
	if hidden > 0 {
		sb.WriteString(fmt.Sprintf("    · _+%d more_\n", hidden))
	}
	return sb.String()
}

func planTitle(p api.MealPlan) string {
	if strings.TrimSpace(p.Title) == "" {
		return "Untitled plan"
	}
	return p.Title
}

var createdAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
}

func formatCreatedAt(raw string) string {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2 Jan 2006 15:04")
		}
	}
	if raw == "" {
		return "unknown date"
	}
	return raw
}
