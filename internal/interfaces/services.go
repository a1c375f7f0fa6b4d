package interfaces

import (
	"context"

	"github.com/ternarybob/pricewatch/internal/models"
)

// Notifier delivers alerts to every configured channel
type Notifier interface {
	Dispatch(ctx context.Context, item *models.TrackedItem, price float64, stat *models.ComparisonStat) []models.ChannelResult
	Channels() []string
}

// PriceAnalyzer compares the newest observation against history
type PriceAnalyzer interface {
	Compare(ctx context.Context, itemID string) (*models.ComparisonStat, error)
	// CompareObservation uses current as the newest observation instead of re-reading it
	CompareObservation(ctx context.Context, current models.PriceObservation) (*models.ComparisonStat, error)
}

// CycleRunner runs one tracking pass over all enabled items
type CycleRunner interface {
	RunCycle(ctx context.Context) (*models.CycleSummary, error)
	IsRunning() bool
}

// MarketSearcher aggregates a query across marketplace sources
type MarketSearcher interface {
	Search(ctx context.Context, query string) (*models.AggregateResult, error)
	Sources() []string
}

// SchedulerService triggers tracking cycles on a cron schedule
type SchedulerService interface {
	Start(schedule string) error
	Stop() error
	TriggerNow(ctx context.Context) (*models.CycleSummary, error)
	Status() models.SchedulerStatus
}
