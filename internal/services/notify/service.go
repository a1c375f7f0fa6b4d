// Package notify delivers price alerts over email, Discord, Slack and Telegram.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/models"
)

var (
	deliveriesTotal *prometheus.CounterVec
	metricsOnce     sync.Once
)

func deliveries() *prometheus.CounterVec {
	metricsOnce.Do(func() {
		deliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pricewatch",
				Name:      "deliveries_total",
				Help:      "Alert deliveries per channel and result",
			},
			[]string{"channel", "result"},
		)
	})
	return deliveriesTotal
}

// Channel delivers one alert to one destination
type Channel interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// Service fans an alert out to every configured channel
type Service struct {
	channels []Channel
	timeout  time.Duration
	logger   arbor.ILogger
}

// NewService creates a notifier with the channels enabled in config
func NewService(config common.NotificationsConfig, logger arbor.ILogger) *Service {
	timeout := common.ParseDurationOr(config.Timeout, 15*time.Second)
	client := &http.Client{Timeout: timeout}

	var channels []Channel
	if config.Email.Enabled && config.Email.SMTPHost != "" && len(config.Email.To) > 0 {
		channels = append(channels, NewEmailChannel(config.Email))
	}
	if config.Discord.Enabled && config.Discord.WebhookURL != "" {
		channels = append(channels, NewDiscordChannel(config.Discord.WebhookURL, client))
	}
	if config.Slack.Enabled && config.Slack.WebhookURL != "" {
		channels = append(channels, NewSlackChannel(config.Slack.WebhookURL, client))
	}
	if config.Telegram.Enabled && config.Telegram.BotToken != "" && config.Telegram.ChatID != "" {
		channels = append(channels, NewTelegramChannel(config.Telegram.APIBase, config.Telegram.BotToken, config.Telegram.ChatID, client))
	}

	s := NewServiceWithChannels(channels, timeout, logger)
	logger.Info().Strs("channels", s.Channels()).Msg("Notifier initialized")
	return s
}

// NewServiceWithChannels creates a notifier over explicit channels
func NewServiceWithChannels(channels []Channel, timeout time.Duration, logger arbor.ILogger) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{channels: channels, timeout: timeout, logger: logger}
}

// Channels returns the enabled channel names
func (s *Service) Channels() []string {
	names := make([]string, len(s.channels))
	for i, channel := range s.channels {
		names[i] = channel.Name()
	}
	return names
}

// Dispatch sends the alert on every channel concurrently and waits for all.
// A failing channel never affects the others.
func (s *Service) Dispatch(ctx context.Context, item *models.TrackedItem, price float64, stat *models.ComparisonStat) []models.ChannelResult {
	alert := Alert{Item: item, Price: price, Stat: stat}
	results := make([]models.ChannelResult, len(s.channels))

	var wg sync.WaitGroup
	for i, channel := range s.channels {
		wg.Add(1)
		go func(i int, channel Channel) {
			defer wg.Done()
			results[i] = s.deliver(ctx, channel, alert)
		}(i, channel)
	}
	wg.Wait()

	return results
}

func (s *Service) deliver(ctx context.Context, channel Channel, alert Alert) (result models.ChannelResult) {
	result.Channel = channel.Name()

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic in %s channel: %v", result.Channel, r)
		}
		outcome := "success"
		if result.Err != nil {
			outcome = "failure"
			s.logger.Warn().Str("channel", result.Channel).Str("item_id", alert.Item.ID).Err(result.Err).Msg("Alert delivery failed")
		} else {
			s.logger.Debug().Str("channel", result.Channel).Str("item_id", alert.Item.ID).Msg("Alert delivered")
		}
		deliveries().WithLabelValues(result.Channel, outcome).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result.Err = channel.Send(ctx, alert)
	return result
}
