package marketplace

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for marketplace searches
type Metrics struct {
	SearchesTotal      prometheus.Counter
	SourceListings     *prometheus.CounterVec
	SourceFailures     *prometheus.CounterVec
	BreakerShortCircuits prometheus.Counter
}

// NewMetrics returns the process-wide marketplace metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SearchesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "pricewatch",
					Name:      "searches_total",
					Help:      "Total number of marketplace searches",
				},
			),
			SourceListings: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "pricewatch",
					Name:      "source_listings_total",
					Help:      "Listings extracted per marketplace source",
				},
				[]string{"source"},
			),
			SourceFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "pricewatch",
					Name:      "source_failures_total",
					Help:      "Failed marketplace source searches",
				},
				[]string{"source"},
			),
			BreakerShortCircuits: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "pricewatch",
					Name:      "breaker_short_circuits_total",
					Help:      "Source fetches skipped because the upstream breaker was open",
				},
			),
		}
	})
	return globalMetrics
}
