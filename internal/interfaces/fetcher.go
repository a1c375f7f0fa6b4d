package interfaces

import (
	"context"

	"github.com/ternarybob/pricewatch/internal/models"
)

// PageFetcher retrieves page content. Failures are *fetcher.FetchError values.
type PageFetcher interface {
	// FetchText returns the text of the first element matching selector
	FetchText(ctx context.Context, url, selector string, opts models.FetchOptions) (string, error)
	// FetchHTML returns the rendered document
	FetchHTML(ctx context.Context, url string, opts models.FetchOptions) (string, error)
	Close() error
}

// FetchPolicy chooses identity and timing for each fetch
type FetchPolicy interface {
	Next() models.FetchOptions
}
