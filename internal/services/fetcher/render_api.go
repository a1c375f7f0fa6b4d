package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/models"
	"golang.org/x/time/rate"
)

// RenderAPIConfig configures a hosted rendering proxy
type RenderAPIConfig struct {
	Endpoint          string
	APIKey            string
	RenderJS          bool
	RequestsPerSecond float64
	Timeout           time.Duration
}

// RenderAPIFetcher fetches script-heavy pages through a rendering proxy API
type RenderAPIFetcher struct {
	config  RenderAPIConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewRenderAPIFetcher creates a rate-limited rendering proxy fetcher
func NewRenderAPIFetcher(config RenderAPIConfig, logger arbor.ILogger) *RenderAPIFetcher {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &RenderAPIFetcher{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

func (f *RenderAPIFetcher) requestURL(target string) string {
	params := url.Values{}
	params.Set("api_key", f.config.APIKey)
	params.Set("url", target)
	if f.config.RenderJS {
		params.Set("render", "true")
	}

	sep := "?"
	if strings.Contains(f.config.Endpoint, "?") {
		sep = "&"
	}
	return f.config.Endpoint + sep + params.Encode()
}

// providerError extracts {"error": "..."} from a JSON body, if present
func providerError(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return ""
	}
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil || len(payload.Error) == 0 || string(payload.Error) == "null" {
		return ""
	}
	var message string
	if err := json.Unmarshal(payload.Error, &message); err == nil {
		return message
	}
	return string(payload.Error)
}

// FetchHTML returns the rendered document for target
func (f *RenderAPIFetcher) FetchHTML(ctx context.Context, target string, opts models.FetchOptions) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", classify(target, err)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.requestURL(target), nil)
	if err != nil {
		return "", newFetchError(KindNetwork, target, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classify(target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", classify(target, err)
	}

	if resp.StatusCode >= 500 {
		return "", statusError(target, resp.StatusCode)
	}
	if message := providerError(body); message != "" {
		return "", &FetchError{Kind: KindUpstream, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("provider error: %s", message)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(target, resp.StatusCode)
	}

	f.logger.Debug().Str("url", target).Int("bytes", len(body)).Msg("Render API fetch completed")
	return string(body), nil
}

// FetchText returns the text of the first element matching selector
func (f *RenderAPIFetcher) FetchText(ctx context.Context, target, selector string, opts models.FetchOptions) (string, error) {
	html, err := f.FetchHTML(ctx, target, opts)
	if err != nil {
		return "", err
	}
	text, ok := SelectText(html, selector)
	if !ok {
		return "", newFetchError(KindNotFound, target, fmt.Errorf("selector %q not found", selector))
	}
	return text, nil
}

// Close is a no-op
func (f *RenderAPIFetcher) Close() error {
	return nil
}
