package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment   string              `toml:"environment"` // "development" or "production"
	Server        ServerConfig        `toml:"server"`
	Storage       StorageConfig       `toml:"storage"`
	Logging       LoggingConfig       `toml:"logging"`
	Scheduler     SchedulerConfig     `toml:"scheduler"`
	Catalog       CatalogConfig       `toml:"catalog"`
	Fetcher       FetcherConfig       `toml:"fetcher"`
	Alerting      AlertingConfig      `toml:"alerting"`
	Notifications NotificationsConfig `toml:"notifications"`
	Search        SearchConfig        `toml:"search"`
	Tracker       TrackerConfig       `toml:"tracker"`
	WebSocket     WebSocketConfig     `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level         string   `toml:"level"`           // "debug", "info", "warn", "error"
	Output        []string `toml:"output"`          // "stdout", "file"
	MinEventLevel string   `toml:"min_event_level"` // Minimum level of cycle logs streamed to websocket clients
}

// SchedulerConfig controls when tracking cycles run
type SchedulerConfig struct {
	CheckInterval string `toml:"check_interval"` // Cron expression (default: "0 * * * *")
	RunOnStartup  bool   `toml:"run_on_startup"`
}

// CatalogConfig points at the tracked item import file
type CatalogConfig struct {
	ItemsFile string `toml:"items_file"` // .toml or .yaml file of items upserted at startup
}

// RandomDelayConfig is the pre-fetch jitter window
type RandomDelayConfig struct {
	Enabled bool `toml:"enabled"`
	MinMs   int  `toml:"min_ms"`
	MaxMs   int  `toml:"max_ms"`
}

// ProxyConfig describes an optional outbound proxy
type ProxyConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// FetcherConfig contains page fetching configuration
type FetcherConfig struct {
	Mode               string            `toml:"mode"` // "browser" (chromedp) or "http"
	UserAgents         []string          `toml:"user_agents"`
	UserAgentRotation  bool              `toml:"user_agent_rotation"`
	RandomDelay        RandomDelayConfig `toml:"random_delay"`
	RequestTimeout     string            `toml:"request_timeout"` // e.g. "30s"
	JavaScriptWaitTime string            `toml:"javascript_wait_time"`
	MaxSessions        int               `toml:"max_sessions"` // Concurrent browser sessions
	Headless           bool              `toml:"headless"`
	Proxy              ProxyConfig       `toml:"proxy"`
}

// AlertingConfig holds the global alert defaults
type AlertingConfig struct {
	DropThreshold     float64 `toml:"drop_threshold"` // Percent, used when an item sets none
	NotifyOnAnyChange bool    `toml:"notify_on_any_change"`
}

type EmailConfig struct {
	Enabled  bool     `toml:"enabled"`
	SMTPHost string   `toml:"smtp_host"`
	SMTPPort int      `toml:"smtp_port"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	From     string   `toml:"from"`
	To       []string `toml:"to"`
}

type WebhookConfig struct {
	Enabled    bool   `toml:"enabled"`
	WebhookURL string `toml:"webhook_url"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
	APIBase  string `toml:"api_base"` // default: https://api.telegram.org
}

// NotificationsConfig lists outbound alert channels
type NotificationsConfig struct {
	Timeout  string         `toml:"timeout"`
	Email    EmailConfig    `toml:"email"`
	Discord  WebhookConfig  `toml:"discord"`
	Slack    WebhookConfig  `toml:"slack"`
	Telegram TelegramConfig `toml:"telegram"`
}

// SearchConfig contains marketplace aggregation configuration
type SearchConfig struct {
	RenderAPIURL      string  `toml:"render_api_url"` // Rendering proxy endpoint; empty uses the page fetcher
	RenderAPIKey      string  `toml:"render_api_key"`
	RenderJS          bool    `toml:"render_js"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	SourceDelay       string  `toml:"source_delay"` // Pause between successive sources
	Concurrent        bool    `toml:"concurrent"`
	FailureCeiling    int     `toml:"failure_ceiling"` // Breaker opens once failures exceed this
	PerSourceLimit    int     `toml:"per_source_limit"`
	ResultLimit       int     `toml:"result_limit"`
	Currency          string  `toml:"currency"`
	BucketWidth       int64   `toml:"bucket_width"`
	Sources           []string `toml:"sources"` // Enabled source names; empty enables all
}

// TrackerConfig controls cycle execution
type TrackerConfig struct {
	MaxConcurrency int `toml:"max_concurrency"` // Items scraped in parallel per cycle
}

// WebSocketConfig contains configuration for live event streaming
type WebSocketConfig struct {
	AllowedEvents     []string          `toml:"allowed_events"`     // Empty allows all
	ThrottleIntervals map[string]string `toml:"throttle_intervals"` // Event type -> duration string
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "production",
		Server: ServerConfig{
			Port: 8086,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/pricewatch",
			},
		},
		Logging: LoggingConfig{
			Level:         "info",
			Output:        []string{"stdout", "file"},
			MinEventLevel: "info",
		},
		Scheduler: SchedulerConfig{
			CheckInterval: "0 * * * *",
			RunOnStartup:  true,
		},
		Catalog: CatalogConfig{
			ItemsFile: "./config/items.toml",
		},
		Fetcher: FetcherConfig{
			Mode: "browser",
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			},
			UserAgentRotation: true,
			RandomDelay: RandomDelayConfig{
				Enabled: true,
				MinMs:   1000,
				MaxMs:   5000,
			},
			RequestTimeout:     "30s",
			JavaScriptWaitTime: "3s",
			MaxSessions:        3,
			Headless:           true,
		},
		Alerting: AlertingConfig{
			DropThreshold: 5,
		},
		Notifications: NotificationsConfig{
			Timeout: "15s",
			Email: EmailConfig{
				SMTPPort: 587,
			},
			Telegram: TelegramConfig{
				APIBase: "https://api.telegram.org",
			},
		},
		Search: SearchConfig{
			RenderAPIURL:      "https://api.scraperapi.com/",
			RenderJS:          true,
			RequestsPerSecond: 2,
			SourceDelay:       "500ms",
			FailureCeiling:    5,
			PerSourceLimit:    10,
			ResultLimit:       20,
			Currency:          "IDR",
			BucketWidth:       50000,
		},
		Tracker: TrackerConfig{
			MaxConcurrency: 4,
		},
		WebSocket: WebSocketConfig{
			ThrottleIntervals: map[string]string{
				"item_checked": "250ms",
			},
		},
	}
}

// LoadFromFile loads configuration from a single file
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier files
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := ValidateSchedule(config.Scheduler.CheckInterval); err != nil {
		return nil, fmt.Errorf("scheduler.check_interval: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PRICEWATCH_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("PRICEWATCH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("PRICEWATCH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("PRICEWATCH_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("PRICEWATCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("PRICEWATCH_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitString(output, ",")
	}

	// Scheduler configuration
	if interval := os.Getenv("PRICEWATCH_CHECK_INTERVAL"); interval != "" {
		config.Scheduler.CheckInterval = interval
	}
	if runOnStartup := os.Getenv("PRICEWATCH_RUN_ON_STARTUP"); runOnStartup != "" {
		if b, err := strconv.ParseBool(runOnStartup); err == nil {
			config.Scheduler.RunOnStartup = b
		}
	}

	if itemsFile := os.Getenv("PRICEWATCH_ITEMS_FILE"); itemsFile != "" {
		config.Catalog.ItemsFile = itemsFile
	}

	// Fetcher configuration
	if mode := os.Getenv("PRICEWATCH_FETCHER_MODE"); mode != "" {
		config.Fetcher.Mode = mode
	}
	if timeout := os.Getenv("PRICEWATCH_FETCHER_REQUEST_TIMEOUT"); timeout != "" {
		config.Fetcher.RequestTimeout = timeout
	}
	if headless := os.Getenv("PRICEWATCH_FETCHER_HEADLESS"); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			config.Fetcher.Headless = b
		}
	}
	if proxyHost := os.Getenv("PRICEWATCH_PROXY_HOST"); proxyHost != "" {
		config.Fetcher.Proxy.Enabled = true
		config.Fetcher.Proxy.Host = proxyHost
	}
	if proxyPort := os.Getenv("PRICEWATCH_PROXY_PORT"); proxyPort != "" {
		if p, err := strconv.Atoi(proxyPort); err == nil {
			config.Fetcher.Proxy.Port = p
		}
	}
	if proxyUser := os.Getenv("PRICEWATCH_PROXY_USERNAME"); proxyUser != "" {
		config.Fetcher.Proxy.Username = proxyUser
	}
	if proxyPass := os.Getenv("PRICEWATCH_PROXY_PASSWORD"); proxyPass != "" {
		config.Fetcher.Proxy.Password = proxyPass
	}

	// Alerting configuration
	if threshold := os.Getenv("PRICEWATCH_DROP_THRESHOLD"); threshold != "" {
		if f, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Alerting.DropThreshold = f
		}
	}
	if anyChange := os.Getenv("PRICEWATCH_NOTIFY_ON_ANY_CHANGE"); anyChange != "" {
		if b, err := strconv.ParseBool(anyChange); err == nil {
			config.Alerting.NotifyOnAnyChange = b
		}
	}

	// Notification secrets
	if password := os.Getenv("PRICEWATCH_SMTP_PASSWORD"); password != "" {
		config.Notifications.Email.Password = password
	}
	if webhook := os.Getenv("PRICEWATCH_DISCORD_WEBHOOK_URL"); webhook != "" {
		config.Notifications.Discord.Enabled = true
		config.Notifications.Discord.WebhookURL = webhook
	}
	if webhook := os.Getenv("PRICEWATCH_SLACK_WEBHOOK_URL"); webhook != "" {
		config.Notifications.Slack.Enabled = true
		config.Notifications.Slack.WebhookURL = webhook
	}
	if token := os.Getenv("PRICEWATCH_TELEGRAM_BOT_TOKEN"); token != "" {
		config.Notifications.Telegram.BotToken = token
	}
	if chatID := os.Getenv("PRICEWATCH_TELEGRAM_CHAT_ID"); chatID != "" {
		config.Notifications.Telegram.ChatID = chatID
	}

	// Search configuration
	if apiKey := os.Getenv("PRICEWATCH_RENDER_API_KEY"); apiKey != "" {
		config.Search.RenderAPIKey = apiKey
	}
	if apiURL := os.Getenv("PRICEWATCH_RENDER_API_URL"); apiURL != "" {
		config.Search.RenderAPIURL = apiURL
	}
	if concurrent := os.Getenv("PRICEWATCH_SEARCH_CONCURRENT"); concurrent != "" {
		if b, err := strconv.ParseBool(concurrent); err == nil {
			config.Search.Concurrent = b
		}
	}
	if sources := os.Getenv("PRICEWATCH_SEARCH_SOURCES"); sources != "" {
		config.Search.Sources = splitString(sources, ",")
	}

	if maxConcurrency := os.Getenv("PRICEWATCH_TRACKER_MAX_CONCURRENCY"); maxConcurrency != "" {
		if n, err := strconv.Atoi(maxConcurrency); err == nil && n > 0 {
			config.Tracker.MaxConcurrency = n
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

func splitString(s, sep string) []string {
	var result []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParseDurationOr parses a duration string, returning fallback when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ValidateSchedule checks a standard 5-field cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
