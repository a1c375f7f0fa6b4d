package notify

import (
	"context"
	"net/http"

	"github.com/ternarybob/pricewatch/internal/models"
)

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
	URL  string    `json:"url"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// SlackChannel posts Block Kit messages to a Slack incoming webhook
type SlackChannel struct {
	webhookURL string
	client     *http.Client
}

// NewSlackChannel creates a Slack channel
func NewSlackChannel(webhookURL string, client *http.Client) *SlackChannel {
	return &SlackChannel{webhookURL: webhookURL, client: client}
}

func (c *SlackChannel) Name() string {
	return models.ChannelSlack
}

func (c *SlackChannel) payload(alert Alert) slackPayload {
	emoji := ":arrow_down:"
	if alert.Stat.IsLowestEver {
		emoji = ":fire:"
	}

	return slackPayload{
		Text: alert.Subject(),
		Blocks: []slackBlock{
			{
				Type: "header",
				Text: &slackText{Type: "plain_text", Text: emoji + " " + alert.Item.Name},
			},
			{
				Type: "section",
				Fields: []slackText{
					{Type: "mrkdwn", Text: "*Current Price:*\n" + alert.CurrentPrice()},
					{Type: "mrkdwn", Text: "*Target:*\n" + alert.TargetPrice()},
					{Type: "mrkdwn", Text: "*Change:*\n" + alert.Change()},
					{Type: "mrkdwn", Text: "*Lowest Ever:*\n" + alert.LowestPrice()},
				},
			},
			{
				Type: "actions",
				Elements: []slackElement{{
					Type: "button",
					Text: slackText{Type: "plain_text", Text: "View Product"},
					URL:  alert.Item.URL,
				}},
			},
		},
	}
}

func (c *SlackChannel) Send(ctx context.Context, alert Alert) error {
	return postJSON(ctx, c.client, c.webhookURL, c.payload(alert))
}
