package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/dailybackup/internal/config"
	"github.com/semmidev/dailybackup/internal/domain"
)

// TelegramAlerter posts alerts into a single chat. The alert recipient
// address is ignored.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(cfg *config.TelegramConfig, resolver domain.SecretResolver) (*TelegramAlerter, error) {
	token, err := resolver.Resolve(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve telegram bot token: %w", err)
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return newTelegram(bot, chatID), nil
}

func newTelegram(bot *tgbotapi.BotAPI, chatID int64) *TelegramAlerter {
	return &TelegramAlerter{bot: bot, chatID: chatID}
}

func (t *TelegramAlerter) SendAlert(ctx context.Context, a domain.Alert) error {
	text := fmt.Sprintf("⚠️ %s\n\n%s", a.Subject, a.Body)

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}
