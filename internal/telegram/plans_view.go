package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"nutrietary-client/internal/api"
	"nutrietary-client/internal/plans"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data actions for the plans view. Data is "action|argument".
const (
	cbPage          = "page"
	cbExpand        = "expand"
	cbAskDelete     = "askdel"
	cbConfirmDelete = "confirmdel"
	cbCancelDelete  = "canceldel"
)

func (b *Bot) handlePlans(ctx context.Context, cc *chatContext, chatID int64) {
	if !b.requireAuth(cc, chatID) {
		return
	}

	page := cc.collection.Snapshot().Page
	if err := cc.collection.FetchPage(ctx, page); err != nil {
		// First load of an empty collection may race the server; page 1
		// always exists as a view.
		if errors.Is(err, plans.ErrPageOutOfRange) {
			err = cc.collection.FetchPage(ctx, 1)
		}
		if err != nil {
			safeErr := strings.ReplaceAll(err.Error(), "`", "'")
			b.send(chatID, fmt.Sprintf("❌ *Could not load plans:* %s", safeErr))
			return
		}
	}

	v := cc.collection.Snapshot()
	msg := tgbotapi.NewMessage(chatID, renderPlansMessage(v))
	msg.ParseMode = "Markdown"
	keyboard := buildPlansKeyboard(v)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("chat %d: send plans failed: %v", chatID, err)
	}
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Telegram omits Message when the button's message is too old to be
	// replied to.
	if query.Message == nil {
		b.answerCallback(query.ID, "This view has expired, run /plans again.")
		return
	}

	ctx := context.Background()
	chatID := query.Message.Chat.ID
	cc := b.chatFor(ctx, chatID)

	action, arg, _ := strings.Cut(query.Data, "|")

	if !cc.session.Authenticated() {
		b.answerCallback(query.ID, "Session expired, please /login again.")
		return
	}

	var notice string
	switch action {
	case cbPage:
		page, err := strconv.Atoi(arg)
		if err != nil {
			return
		}
		if err := cc.collection.FetchPage(ctx, page); err != nil {
			notice = fetchNotice(err)
		}
	case cbExpand:
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return
		}
		cc.collection.ToggleExpand(id)
	case cbAskDelete:
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return
		}
		if err := cc.collection.RequestDelete(id); err != nil {
			notice = err.Error()
		}
	case cbConfirmDelete:
		refetch, err := cc.collection.ConfirmDelete(ctx)
		switch {
		case err != nil:
			notice = "Delete failed: " + err.Error()
		case refetch:
			// The sole item of this page was removed; reload the page the
			// reducer rolled back to.
			if err := cc.collection.FetchPage(ctx, cc.collection.Snapshot().Page); err != nil {
				notice = fetchNotice(err)
			}
			notice = "Plan deleted."
		default:
			notice = "Plan deleted."
		}
	case cbCancelDelete:
		cc.collection.CancelDelete()
	default:
		return
	}

	b.answerCallback(query.ID, notice)
	b.refreshPlansMessage(chatID, query.Message.MessageID, cc)
}

func fetchNotice(err error) string {
	if errors.Is(err, plans.ErrPageOutOfRange) {
		return "No such page."
	}
	return "Could not load that page."
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("answer callback failed: %v", err)
	}
}

func (b *Bot) refreshPlansMessage(chatID int64, messageID int, cc *chatContext) {
	v := cc.collection.Snapshot()
	edit := tgbotapi.NewEditMessageText(chatID, messageID, renderPlansMessage(v))
	edit.ParseMode = "Markdown"
	edit.ReplyMarkup = buildPlansKeyboard(v)
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("chat %d: refresh plans failed: %v", chatID, err)
	}
}

// renderPlansMessage renders the page listing, the expanded plan's details if
// any, and the delete confirmation prompt if one is pending.
func renderPlansMessage(v plans.View) string {
	var sb strings.Builder
	sb.WriteString(plans.RenderPlanList(v))

	if expanded, ok := findPlan(v.Items, v.Expanded); ok {
		sb.WriteString("\n")
		sb.WriteString(plans.RenderPlanDetails(expanded))
	}

	if pending, ok := findPlan(v.Items, v.PendingDelete); ok {
		sb.WriteString(fmt.Sprintf("\n⚠️ *Delete \"%s\"?* This cannot be undone.\n", planButtonTitle(pending)))
	}
	return sb.String()
}

// buildPlansKeyboard builds the inline keyboard for the plans view. While a
// deletion awaits confirmation only the confirm/cancel pair is offered.
func buildPlansKeyboard(v plans.View) *tgbotapi.InlineKeyboardMarkup {
	if v.PendingDelete != 0 {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Delete", cbConfirmDelete+"|"+strconv.FormatInt(v.PendingDelete, 10)),
				tgbotapi.NewInlineKeyboardButtonData("✖️ Keep", cbCancelDelete+"|"),
			),
		)
		return &kb
	}

	if len(v.Items) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton

	// One expand/collapse button per listed plan, five per row.
	var row []tgbotapi.InlineKeyboardButton
	for i, p := range v.Items {
		label := strconv.Itoa(i + 1)
		if p.ID == v.Expanded {
			label = "▾ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cbExpand+"|"+strconv.FormatInt(p.ID, 10)))
		if len(row) == 5 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}

	// The expanded plan gets its delete button.
	if v.Expanded != 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete expanded plan", cbAskDelete+"|"+strconv.FormatInt(v.Expanded, 10)),
		))
	}

	if nav := buildPageRow(v); len(nav) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(nav...))
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// buildPageRow renders prev/next plus the first-5 numbered window. Pages past
// the window stay reachable through prev/next.
func buildPageRow(v plans.View) []tgbotapi.InlineKeyboardButton {
	tp := v.TotalPages()
	if tp <= 1 {
		return nil
	}

	var nav []tgbotapi.InlineKeyboardButton
	if v.Page > 1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", cbPage+"|"+strconv.Itoa(v.Page-1)))
	}
	for _, p := range plans.PageWindow(tp) {
		label := strconv.Itoa(p)
		if p == v.Page {
			label = "·" + label + "·"
		}
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(label, cbPage+"|"+strconv.Itoa(p)))
	}
	if v.Page < tp {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", cbPage+"|"+strconv.Itoa(v.Page+1)))
	}
	return nav
}

func findPlan(items []api.MealPlan, id int64) (api.MealPlan, bool) {
	if id == 0 {
		return api.MealPlan{}, false
	}
	for _, p := range items {
		if p.ID == id {
			return p, true
		}
	}
	return api.MealPlan{}, false
}

func planButtonTitle(p api.MealPlan) string {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return fmt.Sprintf("plan #%d", p.ID)
	}
	return title
}
