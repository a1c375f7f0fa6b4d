package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/models"
)

// BrowserFetcher renders pages in headless Chrome via chromedp
type BrowserFetcher struct {
	pool   *SessionPool
	jsWait time.Duration
	logger arbor.ILogger
}

// NewBrowserFetcher creates a fetcher backed by pool
func NewBrowserFetcher(pool *SessionPool, jsWait time.Duration, logger arbor.ILogger) *BrowserFetcher {
	return &BrowserFetcher{
		pool:   pool,
		jsWait: jsWait,
		logger: logger,
	}
}

// sleep waits d or until ctx ends
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// proxyAuth answers proxy credential challenges for one browser tab
func proxyAuth(ctx context.Context, proxy *models.ProxySettings) chromedp.Action {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				c := chromedp.FromContext(ctx)
				_ = fetch.ContinueRequest(ev.RequestID).Do(cdp.WithExecutor(ctx, c.Target))
			}()
		case *fetch.EventAuthRequired:
			go func() {
				c := chromedp.FromContext(ctx)
				_ = fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: proxy.Username,
					Password: proxy.Password,
				}).Do(cdp.WithExecutor(ctx, c.Target))
			}()
		}
	})
	return fetch.Enable().WithHandleAuthRequests(true)
}

// open acquires a session and navigates to url, returning the bounded context to keep using
func (f *BrowserFetcher) open(ctx context.Context, url string, opts models.FetchOptions) (context.Context, func(), error) {
	if err := sleep(ctx, opts.Delay); err != nil {
		return nil, nil, classify(url, err)
	}

	sessionCtx, release, err := f.pool.Acquire(ctx, opts)
	if err != nil {
		return nil, nil, classify(url, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(sessionCtx, timeout)
	done := func() {
		cancel()
		release()
	}

	setup := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(1920, 1080, 1, false),
	}
	if opts.Proxy != nil && opts.Proxy.Username != "" {
		setup = append(setup, proxyAuth(runCtx, opts.Proxy))
	}

	if err := chromedp.Run(runCtx, setup); err != nil {
		done()
		return nil, nil, classify(url, err)
	}

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		done()
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, nil, newFetchError(KindTimeout, url, fmt.Errorf("navigation timed out after %s: %w", timeout, err))
		}
		return nil, nil, classify(url, err)
	}
	if err := responseError(url, resp); err != nil {
		done()
		return nil, nil, err
	}

	return runCtx, done, nil
}

// responseError maps the main document response onto a FetchError.
// Chrome renders error pages without failing navigation, so the status must be checked here.
func responseError(url string, resp *network.Response) error {
	if resp == nil || resp.Status < 400 {
		return nil
	}
	return statusError(url, int(resp.Status))
}

// FetchText navigates to url, waits for selector and returns its visible text
func (f *BrowserFetcher) FetchText(ctx context.Context, url, selector string, opts models.FetchOptions) (string, error) {
	runCtx, done, err := f.open(ctx, url, opts)
	if err != nil {
		return "", err
	}
	defer done()

	if err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", newFetchError(KindNotFound, url, fmt.Errorf("selector %q not found", selector))
		}
		return "", classify(url, err)
	}

	var text string
	if err := chromedp.Run(runCtx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", classify(url, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", newFetchError(KindNotFound, url, fmt.Errorf("selector %q has no text", selector))
	}

	f.logger.Debug().Str("url", url).Str("selector", selector).Str("text", text).Msg("Browser fetch completed")
	return text, nil
}

// FetchHTML navigates to url, lets client-side rendering settle and returns the document
func (f *BrowserFetcher) FetchHTML(ctx context.Context, url string, opts models.FetchOptions) (string, error) {
	runCtx, done, err := f.open(ctx, url, opts)
	if err != nil {
		return "", err
	}
	defer done()

	var html string
	if err := chromedp.Run(runCtx,
		chromedp.Sleep(f.jsWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", classify(url, err)
	}

	return html, nil
}

// Stats reports browser session pool usage
func (f *BrowserFetcher) Stats() map[string]interface{} {
	stats := f.pool.Stats()
	stats["mode"] = "browser"
	return stats
}

// Close shuts the session pool
func (f *BrowserFetcher) Close() error {
	return f.pool.Close()
}
