package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"future-self-ai/internal/domain/ports/adapter"
)

var _ adapter.JobNotifier = (*FailureNotifier)(nil)

// sender is the part of *tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// FailureNotifier posts failed jobs to an operator chat.
type FailureNotifier struct {
	bot    sender
	chatID int64
}

func NewFailureNotifier(token string, chatID int64) (*FailureNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram token empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &FailureNotifier{bot: bot, chatID: chatID}, nil
}

func (n *FailureNotifier) NotifyFailure(ctx context.Context, jobID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("Job %s failed\n%s", jobID, truncate(reason, 3500)))
	msg.DisableWebPagePreview = true
	_, err := n.bot.Send(msg)
	return err
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
