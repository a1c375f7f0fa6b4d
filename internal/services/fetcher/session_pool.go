package fetcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/models"
)

// SessionPoolConfig holds configuration for the browser session pool
type SessionPoolConfig struct {
	MaxSessions int
	Headless    bool
	NoSandbox   bool
	DisableGPU  bool
}

// SessionPool bounds how many browser sessions run at once.
// Every Acquire starts a dedicated browser; sessions are never shared.
type SessionPool struct {
	config   SessionPoolConfig
	slots    chan struct{}
	logger   arbor.ILogger
	active   int64
	acquired int64
	closed   bool
	mu       sync.Mutex
}

// NewSessionPool creates a pool allowing config.MaxSessions concurrent sessions
func NewSessionPool(config SessionPoolConfig, logger arbor.ILogger) *SessionPool {
	if config.MaxSessions <= 0 {
		config.MaxSessions = 1
	}
	if config.MaxSessions > 10 {
		logger.Warn().
			Int("max_sessions", config.MaxSessions).
			Msg("Large browser session limit - each session is a separate browser process")
	}

	return &SessionPool{
		config: config,
		slots:  make(chan struct{}, config.MaxSessions),
		logger: logger,
	}
}

func (p *SessionPool) allocatorOptions(opts models.FetchOptions) []chromedp.ExecAllocatorOption {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.config.Headless),
		chromedp.Flag("disable-gpu", p.config.DisableGPU),
		chromedp.Flag("no-sandbox", p.config.NoSandbox),
		chromedp.Flag("disable-setuid-sandbox", p.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Proxy != nil {
		allocatorOpts = append(allocatorOpts, chromedp.ProxyServer(fmt.Sprintf("http://%s:%d", opts.Proxy.Host, opts.Proxy.Port)))
	}
	return allocatorOpts
}

// Acquire waits for a free slot and returns a fresh browser context derived from ctx.
// The release function must be called exactly once.
func (p *SessionPool) Acquire(ctx context.Context, opts models.FetchOptions) (context.Context, func(), error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, nil, fmt.Errorf("session pool closed")
	}

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, p.allocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	atomic.AddInt64(&p.active, 1)
	atomic.AddInt64(&p.acquired, 1)

	var once sync.Once
	release := func() {
		once.Do(func() {
			browserCancel()
			allocatorCancel()
			atomic.AddInt64(&p.active, -1)
			<-p.slots
		})
	}

	return browserCtx, release, nil
}

// Stats returns pool counters
func (p *SessionPool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"max_sessions":   p.config.MaxSessions,
		"active":         atomic.LoadInt64(&p.active),
		"total_acquired": atomic.LoadInt64(&p.acquired),
	}
}

// Active returns the number of sessions currently held
func (p *SessionPool) Active() int {
	return int(atomic.LoadInt64(&p.active))
}

// Close rejects further acquisitions; held sessions end when released
func (p *SessionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.logger.Debug().Int64("active", atomic.LoadInt64(&p.active)).Msg("Browser session pool closed")
	return nil
}
