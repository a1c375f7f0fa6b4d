package tracker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for tracking cycles.
//
// Registered once per process:
//   - pricewatch_cycles_total{result}
//   - pricewatch_items_checked_total{result}
//   - pricewatch_alerts_total
//   - pricewatch_cycle_duration_seconds
type Metrics struct {
	CyclesTotal       *prometheus.CounterVec
	ItemsCheckedTotal *prometheus.CounterVec
	AlertsTotal       prometheus.Counter
	CycleDuration     prometheus.Histogram
}

// NewMetrics returns the process-wide tracker metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			CyclesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "pricewatch",
					Name:      "cycles_total",
					Help:      "Total number of tracking cycles run",
				},
				[]string{"result"}, // "completed", "cancelled", "aborted"
			),
			ItemsCheckedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "pricewatch",
					Name:      "items_checked_total",
					Help:      "Total number of item price checks",
				},
				[]string{"result"}, // "success" or a failure kind
			),
			AlertsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "pricewatch",
					Name:      "alerts_total",
					Help:      "Total number of alerts triggered",
				},
			),
			CycleDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "pricewatch",
					Name:      "cycle_duration_seconds",
					Help:      "Duration of tracking cycles in seconds",
					Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
				},
			),
		}
	})
	return globalMetrics
}
