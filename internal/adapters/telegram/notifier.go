// Package telegram delivers user and admin notifications over a Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/covest/covest-service/internal/domain/services/notify"
	"github.com/covest/covest-service/internal/infrastructure/config"
	"github.com/covest/covest-service/pkg/logger"
)

// Notifier sends event messages to the user's chat and to the admin channel.
// Delivery is best effort: a failed send is logged and dropped, it never
// blocks or fails the operation that raised the event.
type Notifier struct {
	bot         *tgbotapi.BotAPI
	adminChatID int64
	log         *logger.Logger
}

// New creates a Telegram notifier. When the bot is disabled in config a
// no-op notifier is returned, so callers never need to nil-check.
func New(cfg config.TelegramConfig, log *logger.Logger) (notify.Notifier, error) {
	if !cfg.Enabled || cfg.BotToken == "" {
		log.Info("telegram notifications disabled")
		return notify.Nop{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	log.Info("telegram notifier ready", "bot", bot.Self.UserName)
	return &Notifier{
		bot:         bot,
		adminChatID: cfg.AdminChatID,
		log:         log,
	}, nil
}

func (n *Notifier) Notify(ctx context.Context, userID int64, eventKind string, data map[string]interface{}) {
	n.send(ctx, userID, formatEvent(eventKind, data))
}

func (n *Notifier) NotifyAdmin(ctx context.Context, eventKind string, data map[string]interface{}) {
	if n.adminChatID == 0 {
		return
	}
	n.send(ctx, n.adminChatID, formatEvent(eventKind, data))
}

func (n *Notifier) send(ctx context.Context, chatID int64, text string) {
	if ctx.Err() != nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn("telegram send failed", "chat_id", chatID, "error", err)
	}
}

var eventTitles = map[string]string{
	notify.EventWithdrawalRequested: "💸 Withdrawal requested",
	notify.EventWithdrawalPaid:      "✅ Withdrawal paid",
	notify.EventWithdrawalFailed:    "⚠️ Withdrawal failed",
	notify.EventWithdrawalRejected:  "🚫 Withdrawal rejected",
	notify.EventPlanActivated:       "🎉 Plan activated",
	notify.EventReferralBonus:       "💰 Referral bonus",
	notify.EventFreePlanUnlocked:    "🔓 Free plan unlocked",
	notify.EventTradingGain:         "📈 Trading gain",
	notify.EventLedgerInconsistency: "🔥 Ledger inconsistency",
}

func formatEvent(eventKind string, data map[string]interface{}) string {
	title, ok := eventTitles[eventKind]
	if !ok {
		title = eventKind
	}

	var b strings.Builder
	b.WriteString(title)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(strings.ReplaceAll(k, "_", " "))
		b.WriteString(": ")
		b.WriteString(fmt.Sprintf("%v", data[k]))
	}
	return b.String()
}
