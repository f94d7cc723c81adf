package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"nutrietary-client/internal/api"
	"nutrietary-client/internal/config"
	"nutrietary-client/internal/metrics"
	"nutrietary-client/internal/plans"
	"nutrietary-client/internal/prefs"
	"nutrietary-client/internal/session"
	"nutrietary-client/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot wraps the Telegram API and the Nutrietary client core. Each chat gets
// its own session store and collection, created lazily on first contact.
type Bot struct {
	api          *tgbotapi.BotAPI
	client       api.Client
	tokens       *storage.TokenStore
	metricsStore *metrics.Store
	cfg          *config.Config
	states       *ChatStates

	mu    sync.Mutex
	chats map[int64]*chatContext
}

// chatContext is the per-chat client state: one session store gating the
// chat, and one collection view over that session.
type chatContext struct {
	session    *session.Store
	collection *plans.Collection
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, client api.Client, tokens *storage.TokenStore, metricsStore *metrics.Store) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	webhookURL := cfg.TelegramWebhookURL
	wh, _ := tgbotapi.NewWebhook(webhookURL)
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", webhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return &Bot{
		api:          bot,
		client:       client,
		tokens:       tokens,
		metricsStore: metricsStore,
		cfg:          cfg,
		states:       NewChatStates(),
		chats:        make(map[int64]*chatContext),
	}, nil
}

// RegisterHandlers registers the webhook handler with the default HTTP mux.
func (b *Bot) RegisterHandlers() {
	http.HandleFunc("/webhook", b.handleWebhook)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.CallbackQuery != nil {
		if !b.userAllowed(update.CallbackQuery.From.ID) {
			return
		}
		go b.handleCallbackQuery(update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	if !b.userAllowed(update.Message.From.ID) {
		log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", update.Message.From.ID, update.Message.From.UserName)
		return
	}

	go b.processMessage(update.Message)
}

// userAllowed applies the allow-list; an empty list admits everyone.
func (b *Bot) userAllowed(userID int64) bool {
	if len(b.cfg.TelegramAllowedUserIDs) == 0 {
		return true
	}
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if userID == id {
			return true
		}
	}
	return false
}

// chatFor returns the context for a chat, creating and bootstrapping it on
// first contact. Bootstrap resolves before any protected command runs.
func (b *Bot) chatFor(ctx context.Context, chatID int64) *chatContext {
	b.mu.Lock()
	cc, ok := b.chats[chatID]
	b.mu.Unlock()
	if ok {
		return cc
	}

	sess := session.NewStore(b.client, b.tokens, strconv.FormatInt(chatID, 10))
	if err := sess.Bootstrap(ctx); err != nil {
		log.Printf("chat %d: bootstrap error: %v", chatID, err)
	}
	cc = &chatContext{
		session:    sess,
		collection: plans.NewCollection(b.client, sess),
	}

	b.mu.Lock()
	// Another goroutine may have raced us here; keep the first one.
	if existing, ok := b.chats[chatID]; ok {
		cc = existing
	} else {
		b.chats[chatID] = cc
	}
	b.mu.Unlock()
	return cc
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx := context.Background()
	chatID := msg.Chat.ID
	cc := b.chatFor(ctx, chatID)

	// A pending prompt consumes the next plain message.
	if state, ok := b.states.GetActive(chatID); ok && !strings.HasPrefix(msg.Text, "/") {
		b.handleCredentialsInput(ctx, cc, chatID, state, msg.Text)
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	command := fields[0]
	args := fields[1:]

	switch command {
	case "/start", "/help":
		b.handleStart(cc, chatID)
	case "/login":
		b.promptCredentials(cc, chatID, StateAwaitLogin)
	case "/register":
		b.promptCredentials(cc, chatID, StateAwaitRegister)
	case "/logout":
		b.handleLogout(cc, chatID)
	case "/whoami":
		b.handleWhoami(cc, chatID)
	case "/prefs":
		b.handlePrefs(ctx, cc, chatID)
	case "/setpref":
		b.handleSetPref(ctx, cc, chatID, args)
	case "/generate":
		b.handleGenerate(ctx, cc, chatID, args)
	case "/plans":
		b.handlePlans(ctx, cc, chatID)
	case "/metrics":
		b.handleMetricsRequest(msg)
	default:
		b.send(chatID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleStart(cc *chatContext, chatID int64) {
	var sb strings.Builder
	sb.WriteString("🥗 *Nutrietary* — your AI dietary planner.\n\n")
	if user, ok := cc.session.CurrentUser(); ok {
		sb.WriteString(fmt.Sprintf("Logged in as *%s*.\n\n", user.Username))
	} else {
		sb.WriteString("You are not logged in. Use /login or /register first.\n\n")
	}
	sb.WriteString("Commands:\n")
	sb.WriteString("/login — log in to your account\n")
	sb.WriteString("/register — create an account\n")
	sb.WriteString("/logout — log out\n")
	sb.WriteString("/whoami — show your session\n")
	sb.WriteString("/prefs — show saved preferences\n")
	sb.WriteString("/setpref <field> <value> — save a preference\n")
	sb.WriteString("/generate [days=N diet=... budget=... meals=...] — generate a meal plan\n")
	sb.WriteString("/plans — browse your meal plans\n")
	b.send(chatID, sb.String())
}

// requireAuth is the route guard: protected commands run only behind an
// authenticated session.
func (b *Bot) requireAuth(cc *chatContext, chatID int64) bool {
	if cc.session.Authenticated() {
		return true
	}
	b.send(chatID, "🔒 You need to log in first. Use /login or /register.")
	return false
}

func (b *Bot) promptCredentials(cc *chatContext, chatID int64, kind StateKind) {
	if cc.session.Authenticated() && kind == StateAwaitLogin {
		user, _ := cc.session.CurrentUser()
		b.send(chatID, fmt.Sprintf("Already logged in as *%s*. Use /logout first to switch accounts.", user.Username))
		return
	}
	b.states.Set(chatID, kind)
	verb := "log in"
	if kind == StateAwaitRegister {
		verb = "register"
	}
	b.send(chatID, fmt.Sprintf("To %s, send your username and password in one message:\n`username password`", verb))
}

func (b *Bot) handleCredentialsInput(ctx context.Context, cc *chatContext, chatID int64, state ChatState, text string) {
	defer b.states.Clear(chatID)

	parts := strings.Fields(text)
	if len(parts) != 2 {
		b.send(chatID, "That doesn't look right. Send exactly: `username password`")
		return
	}
	username, password := parts[0], parts[1]

	var err error
	if state.Kind == StateAwaitRegister {
		err = cc.session.Register(ctx, username, password)
	} else {
		err = cc.session.Login(ctx, username, password)
	}
	if err != nil {
		safeErr := strings.ReplaceAll(err.Error(), "`", "'")
		b.send(chatID, fmt.Sprintf("❌ *Authentication failed:* %s", safeErr))
		return
	}

	user, _ := cc.session.CurrentUser()
	b.send(chatID, fmt.Sprintf("✅ Welcome, *%s*! You are logged in.\nUse /generate to create a meal plan or /plans to browse old ones.", user.Username))
}

func (b *Bot) handleLogout(cc *chatContext, chatID int64) {
	if !cc.session.Authenticated() {
		b.send(chatID, "You are not logged in.")
		return
	}
	if err := cc.session.Logout(); err != nil {
		log.Printf("chat %d: logout: %v", chatID, err)
	}
	b.send(chatID, "👋 Logged out. Your credential has been removed from this device.")
}

func (b *Bot) handleWhoami(cc *chatContext, chatID int64) {
	if !b.requireAuth(cc, chatID) {
		return
	}
	user, _ := cc.session.CurrentUser()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👤 *%s* (id %d)\n", user.Username, user.ID))
	if info := cc.session.TokenInfo(); info.Parsed && !info.ExpiresAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Session valid until %s", info.ExpiresAt.Local().Format("2 Jan 2006 15:04")))
	}
	b.send(chatID, sb.String())
}

func (b *Bot) handlePrefs(ctx context.Context, cc *chatContext, chatID int64) {
	if !b.requireAuth(cc, chatID) {
		return
	}

	// A failed fetch falls back to defaults rather than surfacing an error;
	// preferences are display data here.
	var saved *api.Preferences
	customMax := 0
	resp, err := b.client.GetPreferences(ctx, cc.session.Token())
	if err != nil {
		log.Printf("chat %d: get preferences failed, showing defaults: %v", chatID, err)
	} else {
		saved = resp.Preferences
		customMax = resp.CustomMax
	}

	eff := prefs.Resolve(saved, prefs.Overrides{})
	var sb strings.Builder
	sb.WriteString("⚙️ *Your preferences*\n\n")
	sb.WriteString(fmt.Sprintf("• Dietary: %s\n", eff.Dietary))
	sb.WriteString(fmt.Sprintf("• Budget: %s\n", eff.Budget))
	sb.WriteString(fmt.Sprintf("• Days: %d\n", eff.Days))
	sb.WriteString(fmt.Sprintf("• Meals: %s\n", eff.MealTypes))
	if eff.Custom != "" {
		sb.WriteString(fmt.Sprintf("• Custom: %s\n", eff.Custom))
	}
	if customMax > 0 {
		sb.WriteString(fmt.Sprintf("\n_Custom preferences are limited to %d characters._\n", customMax))
	}
	sb.WriteString("\nChange one with /setpref, e.g. `/setpref days 5` or `/setpref diet vegetarian`")
	b.send(chatID, sb.String())
}

func (b *Bot) handleSetPref(ctx context.Context, cc *chatContext, chatID int64, args []string) {
	if !b.requireAuth(cc, chatID) {
		return
	}
	if len(args) < 2 {
		b.send(chatID, "Usage: `/setpref <dietary|budget|days|meals|custom> <value>`")
		return
	}
	field := strings.ToLower(args[0])
	value := strings.Join(args[1:], " ")

	var req api.SavePreferencesRequest
	switch field {
	case "dietary", "diet":
		req.Dietary = value
	case "budget":
		req.Budget = value
	case "days":
		d, err := strconv.Atoi(value)
		if err != nil || d < prefs.MinDays || d > prefs.MaxDays {
			b.send(chatID, fmt.Sprintf("Days must be a number between %d and %d.", prefs.MinDays, prefs.MaxDays))
			return
		}
		req.Days = d
	case "meals", "meal_types":
		mt := prefs.NormalizeMealTypes(value)
		if mt == "" {
			b.send(chatID, "Meals must be a comma list of: breakfast, lunch, dinner, snack.")
			return
		}
		req.MealTypes = mt
	case "custom":
		req.Custom = value
	default:
		b.send(chatID, fmt.Sprintf("Unknown field %q. Use dietary, budget, days, meals or custom.", field))
		return
	}

	if err := b.client.SavePreferences(ctx, cc.session.Token(), req); err != nil {
		safeErr := strings.ReplaceAll(err.Error(), "`", "'")
		b.send(chatID, fmt.Sprintf("❌ *Could not save:* %s", safeErr))
		return
	}
	b.send(chatID, "✅ Preference saved.")
}

func (b *Bot) handleGenerate(ctx context.Context, cc *chatContext, chatID int64, args []string) {
	if !b.requireAuth(cc, chatID) {
		return
	}

	overrides := parseOverrideArgs(args)

	statusMsg := tgbotapi.NewMessage(chatID, "🧑‍🍳 *Thinking...* \n(Generating your meal plan)")
	statusMsg.ParseMode = "Markdown"
	sentMsg, err := b.api.Send(statusMsg)
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	// Saved preferences are fetched only to show what the generation will
	// effectively use; the payload carries the set overrides alone.
	var saved *api.Preferences
	if resp, err := b.client.GetPreferences(ctx, cc.session.Token()); err == nil {
		saved = resp.Preferences
	}
	eff := prefs.Resolve(saved, overrides)

	req := prefs.GenerateRequest(overrides)
	result, err := b.client.GenerateMealPlan(ctx, cc.session.Token(), req)

	var finalText string
	if err != nil {
		safeErr := strings.ReplaceAll(err.Error(), "`", "'")
		finalText = fmt.Sprintf("❌ *Error generating plan:*\n```\n%v\n```", safeErr)
	} else {
		var sb strings.Builder
		sb.WriteString("✅ *Meal plan generated!*\n\n")
		sb.WriteString(fmt.Sprintf("• Days: %d\n", eff.Days))
		sb.WriteString(fmt.Sprintf("• Meals: %s\n", eff.MealTypes))
		sb.WriteString(fmt.Sprintf("• Dietary: %s\n", eff.Dietary))
		sb.WriteString(fmt.Sprintf("• Budget: %s\n", eff.Budget))
		if result.PlanID != 0 {
			sb.WriteString(fmt.Sprintf("\nSaved as plan #%d. ", result.PlanID))
		}
		sb.WriteString("\nBrowse it with /plans.")
		finalText = sb.String()
	}

	edit := tgbotapi.NewEditMessageText(chatID, sentMsg.MessageID, finalText)
	edit.ParseMode = "Markdown"
	b.api.Send(edit)
}

// parseOverrideArgs reads `key=value` tokens from the /generate arguments.
// Unknown keys are ignored; `custom=` consumes the rest of the line.
func parseOverrideArgs(args []string) prefs.Overrides {
	var o prefs.Overrides
	for i, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found {
			continue
		}
		switch strings.ToLower(key) {
		case "days":
			o.Days = value
		case "diet", "dietary":
			o.Dietary = value
		case "budget":
			o.Budget = value
		case "meals", "meal_types":
			o.MealTypes = value
		case "custom":
			o.Custom = strings.TrimSpace(value + " " + strings.Join(args[i+1:], " "))
			return o
		}
	}
	return o
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminTelegramID {
		b.send(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	b.handleMetricsCommand(msg.Chat.ID)
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	summary, err := b.metricsStore.GetDailySummary(7)
	if err != nil {
		b.send(chatID, "❌ Error fetching metrics.")
		return
	}

	health := metrics.GetSysHealth(b.cfg.DataDir)

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent API Activity*\n")
	if len(summary) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range summary {
		sb.WriteString(fmt.Sprintf("• *%s*: %d requests, %d failed, avg %dms\n", d.Date, d.Requests, d.Failures, d.AvgLatencyMS))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))

	b.send(chatID, sb.String())
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("chat %d: send failed: %v", chatID, err)
	}
}
