package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/pricewatch/internal/models"
)

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// TelegramChannel sends messages through the Bot API
type TelegramChannel struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramChannel creates a Telegram channel
func NewTelegramChannel(apiBase, botToken, chatID string, client *http.Client) *TelegramChannel {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &TelegramChannel{
		apiBase:  strings.TrimSuffix(apiBase, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   client,
	}
}

func (c *TelegramChannel) Name() string {
	return models.ChannelTelegram
}

func (c *TelegramChannel) text(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", alert.Subject())
	fmt.Fprintf(&b, "Current: %s\n", alert.CurrentPrice())
	fmt.Fprintf(&b, "Target: %s\n", alert.TargetPrice())
	fmt.Fprintf(&b, "Change: %s\n", alert.Change())
	if alert.Stat.IsLowestEver {
		b.WriteString("\nLOWEST EVER!\n")
	}
	fmt.Fprintf(&b, "\n[View Product](%s)", alert.Item.URL)
	return b.String()
}

func (c *TelegramChannel) Send(ctx context.Context, alert Alert) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	err := postJSON(ctx, c.client, url, telegramMessage{
		ChatID:    c.chatID,
		Text:      c.text(alert),
		ParseMode: "Markdown",
	})
	if err != nil && c.botToken != "" {
		// Transport errors quote the request URL, which embeds the token
		return errors.New(strings.ReplaceAll(err.Error(), c.botToken, "<redacted>"))
	}
	return err
}
