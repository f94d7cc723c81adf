package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"nutrietary-client/internal/api"
	"nutrietary-client/internal/config"
	"nutrietary-client/internal/database"
	"nutrietary-client/internal/metrics"
	"nutrietary-client/internal/plans"
	"nutrietary-client/internal/prefs"
	"nutrietary-client/internal/session"
	"nutrietary-client/internal/storage"
)

// credentialKey is the fixed name the CLI persists its credential under.
const credentialKey = "default"

func main() {
	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	metricsStore := metrics.NewStore(db.SQL)
	client := api.NewClient(cfg, metricsStore)

	tokenStore, err := storage.NewTokenStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize credential store: %v", err)
	}

	sess := session.NewStore(client, tokenStore, credentialKey)
	if err := sess.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to restore session: %v", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "login":
		runAuth(ctx, sess, os.Args[2:], false)
	case "register":
		runAuth(ctx, sess, os.Args[2:], true)
	case "logout":
		if err := sess.Logout(); err != nil {
			log.Fatalf("Logout failed: %v", err)
		}
		fmt.Println("Logged out.")
	case "whoami":
		runWhoami(sess)
	case "prefs":
		runPrefs(ctx, client, sess)
	case "setpref":
		runSetPref(ctx, client, sess, os.Args[2:])
	case "generate":
		runGenerate(ctx, client, sess, os.Args[2:])
	case "plans":
		runPlans(ctx, client, sess, os.Args[2:])
	case "delete":
		runDelete(ctx, client, sess, os.Args[2:])
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := metricsStore.Cleanup(*days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// ensureLoggedOut refuses to authenticate over an existing session; the
// persisted credential only changes through an explicit logout.
func ensureLoggedOut(sess *session.Store) error {
	if user, ok := sess.CurrentUser(); ok {
		return fmt.Errorf("already logged in as %s, run 'nutrietary logout' first", user.Username)
	}
	return nil
}

// requireAuth is the CLI route guard for protected commands.
func requireAuth(sess *session.Store) {
	if !sess.Authenticated() {
		fmt.Println("You are not logged in. Run: nutrietary login -u <username> -p <password>")
		os.Exit(1)
	}
}

func runAuth(ctx context.Context, sess *session.Store, args []string, register bool) {
	name := "login"
	if register {
		name = "register"
	}
	if err := ensureLoggedOut(sess); err != nil {
		log.Fatalf("%v", err)
	}

	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	username := cmd.String("u", "", "username")
	password := cmd.String("p", "", "password")
	cmd.Parse(args)

	if *username == "" || *password == "" {
		fmt.Printf("Usage: nutrietary %s -u <username> -p <password>\n", name)
		os.Exit(1)
	}

	var err error
	if register {
		err = sess.Register(ctx, *username, *password)
	} else {
		err = sess.Login(ctx, *username, *password)
	}
	if err != nil {
		log.Fatalf("Authentication failed: %v", err)
	}

	user, _ := sess.CurrentUser()
	fmt.Printf("Logged in as %s.\n", user.Username)
}

func runWhoami(sess *session.Store) {
	requireAuth(sess)
	user, _ := sess.CurrentUser()
	fmt.Printf("%s (id %d)\n", user.Username, user.ID)
	if info := sess.TokenInfo(); info.Parsed && !info.ExpiresAt.IsZero() {
		fmt.Printf("Session valid until %s\n", info.ExpiresAt.Local().Format("2 Jan 2006 15:04"))
	}
}

func runPrefs(ctx context.Context, client api.Client, sess *session.Store) {
	requireAuth(sess)

	var saved *api.Preferences
	resp, err := client.GetPreferences(ctx, sess.Token())
	if err != nil {
		log.Printf("Could not fetch preferences, showing defaults: %v", err)
	} else {
		saved = resp.Preferences
	}

	eff := prefs.Resolve(saved, prefs.Overrides{})
	fmt.Printf("Dietary: %s\nBudget:  %s\nDays:    %d\nMeals:   %s\n", eff.Dietary, eff.Budget, eff.Days, eff.MealTypes)
	if eff.Custom != "" {
		fmt.Printf("Custom:  %s\n", eff.Custom)
	}
}

func runSetPref(ctx context.Context, client api.Client, sess *session.Store, args []string) {
	requireAuth(sess)

	cmd := flag.NewFlagSet("setpref", flag.ExitOnError)
	dietary := cmd.String("dietary", "", "dietary preferences")
	budget := cmd.String("budget", "", "budget")
	days := cmd.Int("days", 0, "plan length in days (1-7)")
	meals := cmd.String("meals", "", "comma list of breakfast,lunch,dinner,snack")
	custom := cmd.String("custom", "", "custom preferences")
	cmd.Parse(args)

	req := api.SavePreferencesRequest{
		Dietary: *dietary,
		Budget:  *budget,
		Custom:  *custom,
	}
	if *days != 0 {
		if *days < prefs.MinDays || *days > prefs.MaxDays {
			log.Fatalf("days must be between %d and %d", prefs.MinDays, prefs.MaxDays)
		}
		req.Days = *days
	}
	if *meals != "" {
		mt := prefs.NormalizeMealTypes(*meals)
		if mt == "" {
			log.Fatalf("meals must be a comma list of: breakfast, lunch, dinner, snack")
		}
		req.MealTypes = mt
	}

	if err := client.SavePreferences(ctx, sess.Token(), req); err != nil {
		log.Fatalf("Could not save preferences: %v", err)
	}
	fmt.Println("Preferences saved.")
}

func runGenerate(ctx context.Context, client api.Client, sess *session.Store, args []string) {
	requireAuth(sess)

	cmd := flag.NewFlagSet("generate", flag.ExitOnError)
	days := cmd.String("days", "", "override plan length for this generation")
	dietary := cmd.String("dietary", "", "override dietary preferences")
	budget := cmd.String("budget", "", "override budget")
	meals := cmd.String("meals", "", "override meal types")
	custom := cmd.String("custom", "", "override custom preferences")
	cmd.Parse(args)

	overrides := prefs.Overrides{
		Days:      *days,
		Dietary:   *dietary,
		Budget:    *budget,
		MealTypes: *meals,
		Custom:    *custom,
	}

	var saved *api.Preferences
	if resp, err := client.GetPreferences(ctx, sess.Token()); err == nil {
		saved = resp.Preferences
	}
	eff := prefs.Resolve(saved, overrides)
	fmt.Printf("Generating a %d-day plan (%s)...\n", eff.Days, eff.MealTypes)

	result, err := client.GenerateMealPlan(ctx, sess.Token(), prefs.GenerateRequest(overrides))
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}
	fmt.Printf("Done. Saved as plan #%d. Run 'nutrietary plans' to browse it.\n", result.PlanID)
}

func runPlans(ctx context.Context, client api.Client, sess *session.Store, args []string) {
	requireAuth(sess)

	cmd := flag.NewFlagSet("plans", flag.ExitOnError)
	page := cmd.Int("page", 1, "page number")
	expand := cmd.Int64("expand", 0, "plan ID to show in full")
	cmd.Parse(args)

	collection := plans.NewCollection(client, sess)
	if err := collection.FetchPage(ctx, *page); err != nil {
		log.Fatalf("Could not load plans: %v", err)
	}
	if *expand != 0 {
		collection.ToggleExpand(*expand)
	}

	v := collection.Snapshot()
	fmt.Println(stripMarkdown(plans.RenderPlanList(v)))
	if expanded, ok := snapshotPlan(v, *expand); ok {
		fmt.Println(stripMarkdown(plans.RenderPlanDetails(expanded)))
	}
}

func runDelete(ctx context.Context, client api.Client, sess *session.Store, args []string) {
	requireAuth(sess)

	cmd := flag.NewFlagSet("delete", flag.ExitOnError)
	id := cmd.Int64("id", 0, "plan ID to delete")
	page := cmd.Int("page", 1, "page the plan is listed on")
	yes := cmd.Bool("y", false, "skip confirmation")
	cmd.Parse(args)

	if *id == 0 {
		fmt.Println("Usage: nutrietary delete -id <plan-id> [-page N] [-y]")
		os.Exit(1)
	}

	collection := plans.NewCollection(client, sess)
	if err := collection.FetchPage(ctx, *page); err != nil {
		log.Fatalf("Could not load plans: %v", err)
	}
	if err := collection.RequestDelete(*id); err != nil {
		log.Fatalf("Cannot delete: %v", err)
	}

	if !*yes && !confirm(fmt.Sprintf("Delete plan #%d? This cannot be undone", *id)) {
		collection.CancelDelete()
		fmt.Println("Kept.")
		return
	}

	refetch, err := collection.ConfirmDelete(ctx)
	if err != nil {
		log.Fatalf("Delete failed: %v", err)
	}
	fmt.Println("Plan deleted.")
	if refetch {
		fmt.Printf("Page %d is now empty; showing page %d.\n", *page, collection.Snapshot().Page)
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func snapshotPlan(v plans.View, id int64) (api.MealPlan, bool) {
	for _, p := range v.Items {
		if p.ID == id {
			return p, true
		}
	}
	return api.MealPlan{}, false
}

// stripMarkdown removes the Telegram Markdown markers for terminal output.
func stripMarkdown(s string) string {
	replacer := strings.NewReplacer("*", "", "_", "", "`", "")
	return replacer.Replace(s)
}

func printUsage() {
	fmt.Println("Usage: nutrietary <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  login -u <user> -p <pass>     Log in and persist the session")
	fmt.Println("  register -u <user> -p <pass>  Create an account")
	fmt.Println("  logout                        Clear the persisted session")
	fmt.Println("  whoami                        Show the current session")
	fmt.Println("  prefs                         Show saved preferences")
	fmt.Println("  setpref [flags]               Save preferences")
	fmt.Println("  generate [flags]              Generate a meal plan")
	fmt.Println("  plans [-page N] [-expand ID]  Browse meal plans")
	fmt.Println("  delete -id <plan-id>          Delete a meal plan")
	fmt.Println("  metrics-cleanup [-days N]     Remove old request metrics")
}
