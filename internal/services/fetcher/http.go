package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/models"
)

const maxBodySize = 10 * 1024 * 1024

// HTTPFetcher fetches pages with a plain GET; no script execution
type HTTPFetcher struct {
	logger arbor.ILogger
}

// NewHTTPFetcher creates a new HTTP fetcher
func NewHTTPFetcher(logger arbor.ILogger) *HTTPFetcher {
	return &HTTPFetcher{logger: logger}
}

func (f *HTTPFetcher) client(opts models.FetchOptions) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != nil {
		proxyURL := &url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", opts.Proxy.Host, opts.Proxy.Port)}
		if opts.Proxy.Username != "" {
			proxyURL.User = url.UserPassword(opts.Proxy.Username, opts.Proxy.Password)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{Timeout: timeout, Transport: transport}
}

// FetchHTML returns the response body of a GET to pageURL
func (f *HTTPFetcher) FetchHTML(ctx context.Context, pageURL string, opts models.FetchOptions) (string, error) {
	if err := sleep(ctx, opts.Delay); err != nil {
		return "", classify(pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", newFetchError(KindNetwork, pageURL, err)
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client(opts).Do(req)
	if err != nil {
		return "", classify(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", classify(pageURL, err)
	}

	f.logger.Debug().Str("url", pageURL).Int("bytes", len(body)).Msg("HTTP fetch completed")
	return string(body), nil
}

// FetchText returns the text of the first element matching selector
func (f *HTTPFetcher) FetchText(ctx context.Context, pageURL, selector string, opts models.FetchOptions) (string, error) {
	html, err := f.FetchHTML(ctx, pageURL, opts)
	if err != nil {
		return "", err
	}
	text, ok := SelectText(html, selector)
	if !ok {
		return "", newFetchError(KindNotFound, pageURL, fmt.Errorf("selector %q not found", selector))
	}
	return text, nil
}

// Close is a no-op
func (f *HTTPFetcher) Close() error {
	return nil
}
