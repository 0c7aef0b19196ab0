package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"chalet-planner/internal/app"
	"chalet-planner/internal/config"
	"chalet-planner/internal/quantity"
	"chalet-planner/internal/shopping"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram limits callback data to 64 bytes.
const maxCallbackKey = 60

// Bot wraps the Telegram API around the shopping list application.
type Bot struct {
	api *tgbotapi.BotAPI
	app *app.App
	cfg *config.Config
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, application *app.App) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	wh, _ := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return &Bot{
		api: bot,
		app: application,
		cfg: cfg,
	}, nil
}

// RegisterHandlers registers the webhook handler with the given mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.CallbackQuery != nil {
		b.handleCallbackQuery(update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	isAllowed := false
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if update.Message.From.ID == id {
			isAllowed = true
			break
		}
	}

	if !isAllowed {
		log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", update.Message.From.ID, update.Message.From.UserName)
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	switch {
	case msg.Text == "/list" || msg.Text == "/start":
		b.handleListRequest(msg.Chat.ID)
	case msg.Text == "/refresh":
		b.handleRefreshRequest(msg.Chat.ID)
	case strings.HasPrefix(msg.Text, "http://") || strings.HasPrefix(msg.Text, "https://"):
		b.handleImportRequest(msg)
	default:
		help := "Send /list for the shopping list, /refresh to regroup it, or a recipe URL to import its ingredients."
		b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, help))
	}
}

func (b *Bot) handleListRequest(chatID int64) {
	ctx := context.Background()

	groups, err := b.app.ConsolidatedList(ctx)
	if err != nil {
		log.Printf("Failed to build shopping list: %v", err)
		b.api.Send(tgbotapi.NewMessage(chatID, "❌ Could not load the shopping list."))
		return
	}

	text, keyboard := formatList(groups)
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = "Markdown"
	if keyboard != nil {
		reply.ReplyMarkup = keyboard
	}
	b.api.Send(reply)
}

func (b *Bot) handleRefreshRequest(chatID int64) {
	statusMsg := tgbotapi.NewMessage(chatID, "🧠 *Regrouping items...*")
	statusMsg.ParseMode = "Markdown"
	sent, err := b.api.Send(statusMsg)
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	ctx := context.Background()
	if err := b.app.RefreshGrouping(ctx); err != nil {
		log.Printf("Grouping refresh failed: %v", err)
		// Previous grouping stays visible.
		edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, "❌ Regrouping failed, keeping the previous grouping.")
		b.api.Send(edit)
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, "✅ Items regrouped.")
	b.api.Send(edit)
	b.handleListRequest(chatID)
}

func (b *Bot) handleImportRequest(msg *tgbotapi.Message) {
	statusMsg := tgbotapi.NewMessage(msg.Chat.ID, "✂️ *Importing ingredients...*")
	statusMsg.ParseMode = "Markdown"
	sent, err := b.api.Send(statusMsg)
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	ctx := context.Background()
	date := time.Now().Format("2006-01-02")

	added, err := b.app.ImportRecipe(ctx, msg.Text, date, "Imported")
	var finalText string
	if err != nil {
		log.Printf("Error importing recipe: %v", err)
		safeErr := strings.ReplaceAll(err.Error(), "`", "'")
		finalText = fmt.Sprintf("❌ *Import failed:*\n```\n%v\n```", safeErr)
	} else {
		finalText = fmt.Sprintf("✅ *Imported %d ingredients* into %s.", len(added), date)
	}
	edit := tgbotapi.NewEditMessageText(msg.Chat.ID, sent.MessageID, finalText)
	edit.ParseMode = "Markdown"
	b.api.Send(edit)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	ctx := context.Background()
	data := query.Data // "t|<groupKey>"

	parts := strings.SplitN(data, "|", 2)
	if len(parts) < 2 || parts[0] != "t" {
		return
	}

	groupKey, err := b.resolveGroupKey(ctx, parts[1])
	if err != nil {
		log.Printf("Failed to resolve group key %q: %v", parts[1], err)
		b.api.Request(tgbotapi.NewCallback(query.ID, "Group no longer exists"))
		return
	}

	report, err := b.app.ToggleGroup(ctx, groupKey)
	if err != nil {
		log.Printf("Toggle of group %q failed: %v", groupKey, err)
		b.api.Request(tgbotapi.NewCallback(query.ID, fmt.Sprintf("Applied %d of %d", report.Applied, report.Attempted)))
	} else {
		b.api.Request(tgbotapi.NewCallback(query.ID, ""))
	}

	// Re-render from the live source collection, not from the toggle result.
	groups, err := b.app.ConsolidatedList(ctx)
	if err != nil {
		log.Printf("Failed to rebuild shopping list: %v", err)
		return
	}
	text, keyboard := formatList(groups)
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, text)
	edit.ParseMode = "Markdown"
	edit.ReplyMarkup = keyboard
	b.api.Send(edit)
}

// resolveGroupKey maps a possibly truncated callback key back to the full
// group key of the current list.
func (b *Bot) resolveGroupKey(ctx context.Context, key string) (string, error) {
	if len(key) < maxCallbackKey {
		return key, nil
	}
	groups, err := b.app.ConsolidatedList(ctx)
	if err != nil {
		return "", err
	}
	for _, g := range groups {
		if strings.HasPrefix(g.GroupKey, key) {
			return g.GroupKey, nil
		}
	}
	return "", fmt.Errorf("no group with prefix %q", key)
}

// formatList renders the consolidated list as Markdown with one toggle
// button per group.
func formatList(groups []shopping.ConsolidatedItem) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(groups) == 0 {
		return "🛒 The shopping list is empty.", nil
	}

	var sb strings.Builder
	sb.WriteString("🛒 *Shopping list*\n\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, g := range groups {
		sb.WriteString(fmt.Sprintf("%s *%s*%s _(%d entries)_\n",
			checkbox(g), g.CanonicalName, formatQuantity(g.Quantity), len(g.Sources)))

		key := g.GroupKey
		if len(key) > maxCallbackKey {
			key = key[:maxCallbackKey]
		}
		label := checkbox(g) + " " + g.CanonicalName
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "t|"+key),
		))
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return sb.String(), &keyboard
}

func checkbox(g shopping.ConsolidatedItem) string {
	switch {
	case g.Checked:
		return "✅"
	case g.PartiallyChecked:
		return "🔶"
	default:
		return "⬜"
	}
}

// formatQuantity renders the aggregated quantity, empty when absent.
func formatQuantity(q quantity.Result) string {
	switch q.Kind {
	case quantity.KindSingle:
		return fmt.Sprintf(" — %g %s", q.Single.Total, q.Single.Unit)
	case quantity.KindBreakdown:
		parts := make([]string, 0, len(q.Breakdown))
		for _, a := range q.Breakdown {
			parts = append(parts, fmt.Sprintf("%g %s", a.Total, a.Unit))
		}
		return " — " + strings.Join(parts, " + ")
	default:
		return ""
	}
}
