package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("PriceWatch", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("host", config.Server.Host).
		Int("port", config.Server.Port).
		Str("schedule", config.Scheduler.CheckInterval).
		Str("fetcher", config.Fetcher.Mode).
		Str("storage", config.Storage.Badger.Path).
		Msg("PriceWatch starting")
}
