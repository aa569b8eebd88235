package notifications

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink sends notifications as Telegram messages. For private chats
// the chat id equals the user id, so no chat lookup is needed.
type TelegramSink struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewTelegramSink creates a TelegramSink on top of an initialized bot API.
func NewTelegramSink(api *tgbotapi.BotAPI, logger *slog.Logger) *TelegramSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramSink{api: api, logger: logger}
}

// Notify sends a Markdown message to the user's private chat.
func (s *TelegramSink) Notify(ctx context.Context, userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := s.api.Send(msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send telegram notification",
			"user_id", userID,
			"error", err,
		)
		return err
	}
	return nil
}
