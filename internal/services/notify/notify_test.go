package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/models"
)

func testAlert(lowest bool, changePercent float64) Alert {
	previous := &models.PriceObservation{Price: 70}
	return Alert{
		Item: &models.TrackedItem{
			ID:          "item_1",
			Name:        "Noise Cancelling Headphones",
			URL:         "https://shop.example.com/headphones",
			Currency:    "$",
			TargetPrice: 60,
		},
		Price: 55,
		Stat: &models.ComparisonStat{
			Current:       models.PriceObservation{Price: 55},
			Previous:      previous,
			Lowest:        models.PriceObservation{Price: 55},
			ChangePercent: changePercent,
			IsLowestEver:  lowest,
		},
	}
}

func TestAlert_Subject(t *testing.T) {
	assert.Equal(t, "LOWEST EVER: Noise Cancelling Headphones", testAlert(true, -21.43).Subject())
	assert.Equal(t, "Price Drop: Noise Cancelling Headphones", testAlert(false, -3).Subject())
	assert.Equal(t, "Price Alert: Noise Cancelling Headphones", testAlert(false, 2).Subject())
}

func TestAlert_Formatting(t *testing.T) {
	alert := testAlert(true, -21.43)
	assert.Equal(t, "$55.00", alert.CurrentPrice())
	assert.Equal(t, "$60.00", alert.TargetPrice())
	assert.Equal(t, "$70.00", alert.PreviousPrice())
	assert.Equal(t, "-21.43%", alert.Change())
	assert.Equal(t, "LOWEST EVER!", alert.Status())

	alert.Stat.Previous = nil
	assert.Equal(t, "N/A", alert.PreviousPrice())

	html, err := alert.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, `href="https://shop.example.com/headphones"`)
}

type capturedRequest struct {
	path string
	body map[string]interface{}
}

func captureServer(t *testing.T, status int) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		requests <- capturedRequest{path: r.URL.Path, body: body}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func TestDiscordChannel_Send(t *testing.T) {
	server, requests := captureServer(t, http.StatusNoContent)
	channel := NewDiscordChannel(server.URL+"/webhook", server.Client())

	require.NoError(t, channel.Send(context.Background(), testAlert(true, -21.43)))

	req := <-requests
	embeds := req.body["embeds"].([]interface{})
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]interface{})
	assert.Equal(t, "LOWEST EVER: Noise Cancelling Headphones", embed["title"])
	assert.Equal(t, float64(discordColorLowest), embed["color"])
	assert.Len(t, embed["fields"], 4)

	require.NoError(t, channel.Send(context.Background(), testAlert(false, -3)))
	embed = (<-requests).body["embeds"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(discordColorAlert), embed["color"])
}

func TestSlackChannel_Send(t *testing.T) {
	server, requests := captureServer(t, http.StatusOK)
	channel := NewSlackChannel(server.URL, server.Client())

	require.NoError(t, channel.Send(context.Background(), testAlert(false, -3)))

	req := <-requests
	assert.Equal(t, "Price Drop: Noise Cancelling Headphones", req.body["text"])
	blocks := req.body["blocks"].([]interface{})
	require.Len(t, blocks, 3)
	assert.Equal(t, "header", blocks[0].(map[string]interface{})["type"])
	assert.Equal(t, "actions", blocks[2].(map[string]interface{})["type"])
}

func TestTelegramChannel_Send(t *testing.T) {
	server, requests := captureServer(t, http.StatusOK)
	channel := NewTelegramChannel(server.URL+"/", "123:abc", "42", server.Client())

	require.NoError(t, channel.Send(context.Background(), testAlert(true, -21.43)))

	req := <-requests
	assert.Equal(t, "/bot123:abc/sendMessage", req.path)
	assert.Equal(t, "42", req.body["chat_id"])
	assert.Equal(t, "Markdown", req.body["parse_mode"])
	assert.Contains(t, req.body["text"], "LOWEST EVER!")
	assert.Contains(t, req.body["text"], "[View Product](https://shop.example.com/headphones)")
}

func TestTelegramChannel_RedactsToken(t *testing.T) {
	channel := NewTelegramChannel("http://127.0.0.1:1", "secret-token", "42", &http.Client{Timeout: time.Second})

	err := channel.Send(context.Background(), testAlert(false, 1))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestWebhook_NonSuccessStatusFails(t *testing.T) {
	server, _ := captureServer(t, http.StatusInternalServerError)
	err := NewSlackChannel(server.URL, server.Client()).Send(context.Background(), testAlert(false, -3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestEmailChannel_ComposesMultipartMessage(t *testing.T) {
	var sent []byte
	channel := NewEmailChannel(common.EmailConfig{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		From:     "tracker@example.com",
		To:       []string{"me@example.com"},
	})
	channel.send = func(ctx context.Context, config common.EmailConfig, msg []byte) error {
		sent = msg
		return nil
	}

	require.NoError(t, channel.Send(context.Background(), testAlert(true, -21.43)))

	reader, err := mail.CreateReader(bytes.NewReader(sent))
	require.NoError(t, err)

	subject, err := reader.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "LOWEST EVER: Noise Cancelling Headphones", subject)

	to, err := reader.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "me@example.com", to[0].Address)

	var types []string
	var bodies []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if header, ok := part.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := header.ContentType()
			types = append(types, contentType)
			body, _ := io.ReadAll(part.Body)
			bodies = append(bodies, string(body))
		}
	}
	assert.Equal(t, []string{"text/plain", "text/html"}, types)
	assert.Contains(t, bodies[0], "$55.00")
	assert.Contains(t, bodies[1], "<strong>Current Price</strong>")
}

func TestEmailChannel_RequiresConfiguration(t *testing.T) {
	channel := NewEmailChannel(common.EmailConfig{Enabled: true})
	assert.Error(t, channel.Send(context.Background(), testAlert(false, -3)))
}

// funcChannel adapts a function to a Channel
type funcChannel struct {
	name string
	send func(ctx context.Context) error
}

func (c funcChannel) Name() string {
	return c.name
}

func (c funcChannel) Send(ctx context.Context, alert Alert) error {
	return c.send(ctx)
}

func TestDispatch_IsolatesChannels(t *testing.T) {
	var delivered atomic.Int32
	channels := []Channel{
		funcChannel{name: "broken", send: func(context.Context) error { return errors.New("boom") }},
		funcChannel{name: "panics", send: func(context.Context) error { panic("bad payload") }},
		funcChannel{name: "slow", send: func(context.Context) error {
			time.Sleep(30 * time.Millisecond)
			delivered.Add(1)
			return nil
		}},
		funcChannel{name: "fast", send: func(context.Context) error {
			delivered.Add(1)
			return nil
		}},
	}
	svc := NewServiceWithChannels(channels, time.Second, arbor.NewLogger())
	alert := testAlert(false, -3)

	results := svc.Dispatch(context.Background(), alert.Item, alert.Price, alert.Stat)

	require.Len(t, results, 4)
	assert.Equal(t, "broken", results[0].Channel)
	assert.False(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, strings.Contains(results[1].Err.Error(), "panic"))
	assert.True(t, results[2].OK())
	assert.True(t, results[3].OK())
	assert.Equal(t, int32(2), delivered.Load())
}

func TestDispatch_AppliesTimeout(t *testing.T) {
	channels := []Channel{
		funcChannel{name: "hangs", send: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	}
	svc := NewServiceWithChannels(channels, 20*time.Millisecond, arbor.NewLogger())
	alert := testAlert(false, -3)

	results := svc.Dispatch(context.Background(), alert.Item, alert.Price, alert.Stat)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestNewService_EnablesConfiguredChannels(t *testing.T) {
	svc := NewService(common.NotificationsConfig{
		Email:    common.EmailConfig{Enabled: true, SMTPHost: "smtp.example.com", To: []string{"a@example.com"}},
		Discord:  common.WebhookConfig{Enabled: true, WebhookURL: "https://discord.example.com/hook"},
		Slack:    common.WebhookConfig{Enabled: true},
		Telegram: common.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "1"},
	}, arbor.NewLogger())

	assert.Equal(t, []string{models.ChannelEmail, models.ChannelDiscord, models.ChannelTelegram}, svc.Channels())

	none := NewService(common.NotificationsConfig{}, arbor.NewLogger())
	assert.Empty(t, none.Channels())
	assert.Empty(t, none.Dispatch(context.Background(), &models.TrackedItem{}, 1, &models.ComparisonStat{}))
}
