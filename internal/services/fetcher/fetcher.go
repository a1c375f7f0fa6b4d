// Package fetcher provides the page fetching capability: headless browser,
// plain HTTP and rendering proxy implementations behind interfaces.PageFetcher.
package fetcher

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
)

// New creates the page fetcher selected by config.Mode
func New(config common.FetcherConfig, logger arbor.ILogger) (interfaces.PageFetcher, error) {
	switch config.Mode {
	case "", "browser":
		pool := NewSessionPool(SessionPoolConfig{
			MaxSessions: config.MaxSessions,
			Headless:    config.Headless,
			NoSandbox:   true,
			DisableGPU:  true,
		}, logger)
		return NewBrowserFetcher(pool, common.ParseDurationOr(config.JavaScriptWaitTime, 3*time.Second), logger), nil
	case "http":
		return NewHTTPFetcher(logger), nil
	default:
		return nil, fmt.Errorf("unknown fetcher mode: %s", config.Mode)
	}
}
