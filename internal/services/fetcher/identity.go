package fetcher

import (
	"math/rand/v2"
	"time"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/models"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// IdentityPolicy picks the user agent, jitter delay and proxy for each fetch
type IdentityPolicy struct {
	userAgents []string
	rotate     bool
	delay      common.RandomDelayConfig
	timeout    time.Duration
	proxy      *models.ProxySettings
	intN       func(n int) int
}

// NewIdentityPolicy builds a policy from fetcher configuration
func NewIdentityPolicy(config common.FetcherConfig) *IdentityPolicy {
	userAgents := config.UserAgents
	if len(userAgents) == 0 {
		userAgents = []string{defaultUserAgent}
	}

	policy := &IdentityPolicy{
		userAgents: userAgents,
		rotate:     config.UserAgentRotation,
		delay:      config.RandomDelay,
		timeout:    common.ParseDurationOr(config.RequestTimeout, 30*time.Second),
		intN:       rand.IntN,
	}

	if config.Proxy.Enabled && config.Proxy.Host != "" {
		policy.proxy = &models.ProxySettings{
			Host:     config.Proxy.Host,
			Port:     config.Proxy.Port,
			Username: config.Proxy.Username,
			Password: config.Proxy.Password,
		}
	}

	return policy
}

// UserAgent returns the first agent when rotation is off, otherwise a random one
func (p *IdentityPolicy) UserAgent() string {
	if !p.rotate || len(p.userAgents) == 1 {
		return p.userAgents[0]
	}
	return p.userAgents[p.intN(len(p.userAgents))]
}

// Delay returns a random pre-fetch delay in [min,max] ms, or 0 when disabled
func (p *IdentityPolicy) Delay() time.Duration {
	if !p.delay.Enabled {
		return 0
	}
	minMs, maxMs := p.delay.MinMs, p.delay.MaxMs
	if maxMs < minMs {
		maxMs = minMs
	}
	ms := minMs + p.intN(maxMs-minMs+1)
	return time.Duration(ms) * time.Millisecond
}

// Next returns the options for one fetch
func (p *IdentityPolicy) Next() models.FetchOptions {
	return models.FetchOptions{
		Timeout:   p.timeout,
		UserAgent: p.UserAgent(),
		Delay:     p.Delay(),
		Proxy:     p.proxy,
	}
}
