package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/pricewatch/internal/models"
)

const (
	discordColorLowest = 16711680 // red
	discordColorAlert  = 65280    // green
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	URL       string         `json:"url"`
	Timestamp string         `json:"timestamp"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordChannel posts an embed to a Discord webhook
type DiscordChannel struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewDiscordChannel creates a Discord channel
func NewDiscordChannel(webhookURL string, client *http.Client) *DiscordChannel {
	return &DiscordChannel{webhookURL: webhookURL, client: client, now: time.Now}
}

func (c *DiscordChannel) Name() string {
	return models.ChannelDiscord
}

func (c *DiscordChannel) payload(alert Alert) discordPayload {
	color := discordColorAlert
	if alert.Stat.IsLowestEver {
		color = discordColorLowest
	}

	return discordPayload{Embeds: []discordEmbed{{
		Title: alert.Subject(),
		Color: color,
		Fields: []discordField{
			{Name: "Current Price", Value: alert.CurrentPrice(), Inline: true},
			{Name: "Target Price", Value: alert.TargetPrice(), Inline: true},
			{Name: "Change", Value: alert.Change(), Inline: true},
			{Name: "Lowest Ever", Value: alert.LowestPrice(), Inline: true},
		},
		URL:       alert.Item.URL,
		Timestamp: c.now().UTC().Format(time.RFC3339),
	}}}
}

func (c *DiscordChannel) Send(ctx context.Context, alert Alert) error {
	return postJSON(ctx, c.client, c.webhookURL, c.payload(alert))
}
