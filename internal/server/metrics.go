package server

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the HTTP surface.
//
// Registered once per process:
//   - pricewatch_http_requests_total{method,route,status}
//   - pricewatch_http_request_duration_seconds{route}
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics returns the process-wide HTTP metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "pricewatch",
					Name:      "http_requests_total",
					Help:      "Total number of HTTP requests served",
				},
				[]string{"method", "route", "status"},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "pricewatch",
					Name:      "http_request_duration_seconds",
					Help:      "HTTP request latency in seconds",
					Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120},
				},
				[]string{"route"},
			),
		}
	})
	return globalMetrics
}

// routeLabel collapses item IDs so the route label stays bounded:
// /api/items/abc/history -> /api/items/:id/history
func routeLabel(path string) string {
	if !strings.HasPrefix(path, "/api/items/") {
		if strings.HasPrefix(path, "/api/") || path == "/metrics" || path == "/ws" {
			return path
		}
		return "other"
	}

	rest := strings.Trim(strings.TrimPrefix(path, "/api/items/"), "/")
	if rest == "" {
		return "/api/items"
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return "/api/items/:id"
	}
	return "/api/items/:id/" + parts[1]
}
