package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// TelegramSender posts notifications through the Telegram Bot API.
type TelegramSender struct {
	chatID string
	client *resty.Client
}

// NewTelegramSender creates a sender for the given bot token and chat ID.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		chatID: chatID,
		client: resty.New().
			SetBaseURL("https://api.telegram.org/bot" + token).
			SetTimeout(10 * time.Second),
	}
}

// Send posts the message via sendMessage with the title rendered in bold.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       fmt.Sprintf("*%s*\n%s", title, message),
			"parse_mode": "Markdown",
		}).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string { return "telegram" }
