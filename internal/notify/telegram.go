package notify

import (
	"fmt"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/metrics"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var severityIcons = map[models.Severity]string{
	models.SeverityInfo:    "ℹ️",
	models.SeveritySuccess: "✅",
	models.SeverityWarning: "⚠️",
	models.SeverityError:   "❌",
}

// TelegramChannel posts notifications to Telegram chats, used for the
// operations team and for technicians who linked a chat.
type TelegramChannel struct {
	bot          domain.TelegramSender
	adminChatIDs []int64
	logger       *zerolog.Logger
}

func NewTelegramChannel(bot domain.TelegramSender, adminChatIDs []int64, logger *zerolog.Logger) *TelegramChannel {
	return &TelegramChannel{bot: bot, adminChatIDs: adminChatIDs, logger: logger}
}

// NewBotAPI connects to the Telegram Bot API.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

func formatMessage(title, message string, severity models.Severity) string {
	icon := severityIcons[severity]
	if icon == "" {
		icon = severityIcons[models.SeverityInfo]
	}
	return fmt.Sprintf("%s *%s*\n%s", icon, tgbotapi.EscapeText(tgbotapi.ModeMarkdown, title), tgbotapi.EscapeText(tgbotapi.ModeMarkdown, message))
}

func (t *TelegramChannel) Send(chatID int64, title, message string, severity models.Severity) error {
	msg := tgbotapi.NewMessage(chatID, formatMessage(title, message, severity))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		metrics.IncNotification("telegram", "error")
		return fmt.Errorf("send telegram message to %d: %w", chatID, err)
	}
	metrics.IncNotification("telegram", "sent")
	return nil
}

// Broadcast posts to every admin chat, logging individual failures.
func (t *TelegramChannel) Broadcast(title, message string, severity models.Severity) {
	for _, chatID := range t.adminChatIDs {
		if err := t.Send(chatID, title, message, severity); err != nil && t.logger != nil {
			t.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Admin chat delivery failed")
		}
	}
}
