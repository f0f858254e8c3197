// Package notify tells the user about applications waiting for review.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/models"
)

// maxListed keeps the message well below the Telegram length limit.
const maxListed = 20

type Config struct {
	Enabled   bool   `mapstructure:"enabled"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	ChatID    int64  `mapstructure:"chat-id"`
}

// Item is one application in the review queue.
type Item struct {
	ApplicationID string
	Company       string
	Role          string
	FitScore      *int
}

type Notifier interface {
	ReviewQueue(ctx context.Context, items []Item) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) ReviewQueue(context.Context, []Item) error { return nil }

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts the review queue into a chat.
type Telegram struct {
	bot    sender
	chatID int64
	logger *zap.Logger
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return newTelegram(bot, chatID, log), nil
}

func newTelegram(bot sender, chatID int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, chatID: chatID, logger: log}
}

// ReviewQueue sends a summary. An empty queue sends nothing.
func (t *Telegram) ReviewQueue(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatReviewQueue(items))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	t.logger.Info("review queue notification sent", zap.Int("applications", len(items)))
	return nil
}

// FormatReviewQueue renders items as Telegram HTML, best fit first.
func FormatReviewQueue(items []Item) string {
	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d application(s) waiting for review</b>\n", len(sorted))
	for i, item := range sorted {
		if i == maxListed {
			fmt.Fprintf(&b, "… and %d more\n", len(sorted)-maxListed)
			break
		}
		fit := "n/a"
		if item.FitScore != nil {
			fit = fmt.Sprintf("%d/100", *item.FitScore)
		}
		fmt.Fprintf(&b, "\n• <b>%s</b> at %s (fit %s)\n  <code>%s</code>\n",
			html.EscapeString(item.Role),
			html.EscapeString(item.Company),
			fit,
			html.EscapeString(item.ApplicationID),
		)
	}
	b.WriteString("\nApprove with: <code>bewerbungs-agent application approve --id &lt;id&gt;</code>")
	return b.String()
}

func score(item Item) int {
	if item.FitScore == nil {
		return -1
	}
	return *item.FitScore
}

type JobGetter interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
}

// Items joins applications with their jobs. Applications whose job cannot be
// loaded are listed without company and role.
func Items(ctx context.Context, jobs JobGetter, apps []models.Application) []Item {
	items := make([]Item, 0, len(apps))
	for _, app := range apps {
		item := Item{ApplicationID: app.ID, FitScore: app.FitScore}
		if job, err := jobs.GetJob(ctx, app.JobID); err == nil {
			item.Company = job.Company
			item.Role = job.Role
		}
		items = append(items, item)
	}
	return items
}
