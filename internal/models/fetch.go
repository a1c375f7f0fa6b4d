package models

import "time"

// ProxySettings describes an outbound proxy for one fetch
type ProxySettings struct {
	Host     string
	Port     int
	Username string
	Password string
}

// FetchOptions carries the identity and timing for one page fetch
type FetchOptions struct {
	Timeout   time.Duration
	UserAgent string
	Delay     time.Duration // Waited before the fetch starts
	Proxy     *ProxySettings
}
