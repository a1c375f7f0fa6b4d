package marketplace

import "sync/atomic"

// Breaker counts consecutive upstream failures within one search run.
// Once the count exceeds the ceiling every further fetch is skipped.
type Breaker struct {
	ceiling  int32
	failures atomic.Int32
}

// NewBreaker creates a closed breaker
func NewBreaker(ceiling int) *Breaker {
	return &Breaker{ceiling: int32(ceiling)}
}

// Open reports whether fetches should be short-circuited
func (b *Breaker) Open() bool {
	return b.failures.Load() > b.ceiling
}

// RecordFailure counts one upstream failure and reports whether the breaker is now open
func (b *Breaker) RecordFailure() bool {
	return b.failures.Add(1) > b.ceiling
}

// RecordSuccess resets the consecutive failure count
func (b *Breaker) RecordSuccess() {
	b.failures.Store(0)
}

// Failures returns the current consecutive failure count
func (b *Breaker) Failures() int {
	return int(b.failures.Load())
}
