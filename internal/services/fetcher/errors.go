package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a fetch failure
type Kind string

const (
	KindTimeout  Kind = "timeout"
	KindNotFound Kind = "not_found" // selector or page missing
	KindNetwork  Kind = "network"
	KindUpstream Kind = "upstream" // 5xx or provider-reported error
)

// FetchError is returned by every PageFetcher implementation
type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newFetchError(kind Kind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// KindOf returns the failure kind of err, or "" when err is not a FetchError
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsUpstream reports whether err is an upstream (5xx / provider) failure
func IsUpstream(err error) bool {
	return KindOf(err) == KindUpstream
}

// classify maps a transport error onto a FetchError
func classify(url string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newFetchError(KindTimeout, url, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newFetchError(KindTimeout, url, err)
	}
	return newFetchError(KindNetwork, url, err)
}

// statusError maps a non-2xx HTTP status onto a FetchError
func statusError(url string, status int) *FetchError {
	kind := KindNetwork
	switch {
	case status >= 500:
		kind = KindUpstream
	case status == 404 || status == 410:
		kind = KindNotFound
	}
	return &FetchError{Kind: kind, URL: url, StatusCode: status, Err: fmt.Errorf("unexpected status %d", status)}
}
