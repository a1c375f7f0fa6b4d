// Package tracker runs tracking cycles: fetch each enabled item's price,
// record it, compare it with history and alert when the policy says so.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/alerting"
	"github.com/ternarybob/pricewatch/internal/services/fetcher"
)

// ErrCycleInProgress is returned when a cycle is requested while one is running
var ErrCycleInProgress = errors.New("tracking cycle already in progress")

// AlertDecider decides whether an observation warrants a notification
type AlertDecider interface {
	Decide(item *models.TrackedItem, currentPrice float64, stat *models.ComparisonStat) (bool, alerting.Reason)
}

// Service is the scrape orchestrator
type Service struct {
	catalog        interfaces.CatalogStorage
	history        interfaces.HistoryStorage
	fetcher        interfaces.PageFetcher
	fetchPolicy    interfaces.FetchPolicy
	analyzer       interfaces.PriceAnalyzer
	alerts         AlertDecider
	notifier       interfaces.Notifier     // optional
	eventService   interfaces.EventService // optional
	logger         arbor.ILogger
	metrics        *Metrics
	maxConcurrency int
	running        atomic.Bool
	now            func() time.Time
}

// NewService creates a new tracker
func NewService(
	catalog interfaces.CatalogStorage,
	history interfaces.HistoryStorage,
	pageFetcher interfaces.PageFetcher,
	fetchPolicy interfaces.FetchPolicy,
	analyzer interfaces.PriceAnalyzer,
	alerts AlertDecider,
	notifier interfaces.Notifier,
	eventService interfaces.EventService,
	config common.TrackerConfig,
	logger arbor.ILogger,
) *Service {
	maxConcurrency := config.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	return &Service{
		catalog:        catalog,
		history:        history,
		fetcher:        pageFetcher,
		fetchPolicy:    fetchPolicy,
		analyzer:       analyzer,
		alerts:         alerts,
		notifier:       notifier,
		eventService:   eventService,
		logger:         logger,
		metrics:        NewMetrics(),
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// IsRunning reports whether a cycle is in progress
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// RunCycle checks every enabled item once. Item failures are recorded in the
// summary; only an unreadable catalog fails the cycle.
func (s *Service) RunCycle(ctx context.Context) (*models.CycleSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer s.running.Store(false)

	summary := &models.CycleSummary{
		CycleID:   common.NewCycleID(),
		StartedAt: s.now(),
	}
	logger := s.logger.WithCorrelationId(summary.CycleID)

	items, err := s.catalog.ListEnabled(ctx)
	if err != nil {
		s.metrics.CyclesTotal.WithLabelValues("aborted").Inc()
		logger.Error().Err(err).Msg("Tracking cycle aborted: catalog unreadable")
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	logger.Info().Int("items", len(items)).Msg("Tracking cycle started")
	s.publish(ctx, interfaces.EventCycleStarted, map[string]interface{}{
		"cycle_id":   summary.CycleID,
		"item_count": len(items),
		"started_at": summary.StartedAt,
	})

	summary.Outcomes = s.checkAll(ctx, items, logger)

	for _, outcome := range summary.Outcomes {
		if outcome.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		if outcome.Alerted {
			summary.Alerts++
		}
	}
	summary.Cancelled = ctx.Err() != nil
	summary.CompletedAt = s.now()

	result := "completed"
	if summary.Cancelled {
		result = "cancelled"
	}
	s.metrics.CyclesTotal.WithLabelValues(result).Inc()
	s.metrics.CycleDuration.Observe(summary.Duration().Seconds())

	logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("alerts", summary.Alerts).
		Bool("cancelled", summary.Cancelled).
		Dur("duration", summary.Duration()).
		Msg("Tracking cycle completed")

	// Delivered even when ctx was cancelled so listeners see the final summary
	s.publish(context.WithoutCancel(ctx), interfaces.EventCycleCompleted, map[string]interface{}{
		"cycle_id":  summary.CycleID,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"alerts":    summary.Alerts,
		"cancelled": summary.Cancelled,
		"duration":  summary.Duration().String(),
	})

	return summary, nil
}

// checkAll runs checkItem for every item with at most maxConcurrency in flight.
// Items not started before cancellation are recorded as failed.
func (s *Service) checkAll(ctx context.Context, items []*models.TrackedItem, logger arbor.ILogger) []models.CycleOutcome {
	outcomes := make([]models.CycleOutcome, len(items))
	slots := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		select {
		case <-ctx.Done():
			outcomes[i] = s.failed(item, ctx.Err(), "cancelled")
			continue
		case slots <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, item *models.TrackedItem) {
			defer wg.Done()
			defer func() { <-slots }()
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Str("item_id", item.ID).Str("panic", fmt.Sprintf("%v", r)).Msg("Recovered from panic while checking item")
					outcomes[i] = s.failed(item, fmt.Errorf("panic: %v", r), "panic")
				}
			}()
			outcomes[i] = s.checkItem(ctx, item, logger)
		}(i, item)
	}

	wg.Wait()
	return outcomes
}

func (s *Service) failed(item *models.TrackedItem, err error, kind string) models.CycleOutcome {
	s.metrics.ItemsCheckedTotal.WithLabelValues(kind).Inc()
	return models.CycleOutcome{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Error:     err.Error(),
		CheckedAt: s.now(),
	}
}

// checkItem fetches, records, analyzes and alerts for one item
func (s *Service) checkItem(ctx context.Context, item *models.TrackedItem, logger arbor.ILogger) models.CycleOutcome {
	opts := s.fetchPolicy.Next()

	text, err := s.fetcher.FetchText(ctx, item.URL, item.Selector, opts)
	if err != nil {
		kind := string(fetcher.KindOf(err))
		if kind == "" {
			kind = "error"
		}
		logger.Warn().Str("item_id", item.ID).Str("url", item.URL).Str("kind", kind).Err(err).Msg("Price fetch failed")
		return s.finish(ctx, s.failed(item, err, kind))
	}

	price, err := ParsePrice(text)
	if err != nil {
		logger.Warn().Str("item_id", item.ID).Str("text", text).Err(err).Msg("Price text could not be parsed")
		return s.finish(ctx, s.failed(item, err, "parse"))
	}

	// Never record an observation for a cycle that is being abandoned
	if err := ctx.Err(); err != nil {
		return s.failed(item, err, "cancelled")
	}

	observation, err := s.history.Append(ctx, item.ID, price, item.Currency, s.now())
	if err != nil {
		logger.Error().Str("item_id", item.ID).Float64("price", price).Err(err).Msg("Failed to record price observation")
		return s.finish(ctx, s.failed(item, fmt.Errorf("failed to record observation: %w", err), "persistence"))
	}

	outcome := models.CycleOutcome{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Success:   true,
		Price:     price,
		CheckedAt: s.now(),
	}
	s.metrics.ItemsCheckedTotal.WithLabelValues("success").Inc()

	stat, err := s.analyzer.CompareObservation(ctx, *observation)
	if err != nil {
		logger.Warn().Str("item_id", item.ID).Err(err).Msg("Price comparison failed")
		outcome.Error = err.Error()
		return s.finish(ctx, outcome)
	}
	outcome.Stat = stat

	notify, reason := s.alerts.Decide(item, price, stat)
	outcome.Reason = string(reason)

	logger.Debug().
		Str("item_id", item.ID).
		Float64("price", price).
		Float64("change_percent", stat.ChangePercent).
		Bool("lowest_ever", stat.IsLowestEver).
		Bool("notify", notify).
		Str("reason", string(reason)).
		Msg("Item checked")

	if notify {
		outcome.Alerted = true
		s.metrics.AlertsTotal.Inc()
		s.dispatch(ctx, item, price, stat, reason, logger)
	}

	return s.finish(ctx, outcome)
}

// dispatch hands the alert to the notifier; delivery failures are only logged
func (s *Service) dispatch(ctx context.Context, item *models.TrackedItem, price float64, stat *models.ComparisonStat, reason alerting.Reason, logger arbor.ILogger) {
	logger.Info().
		Str("item_id", item.ID).
		Str("item_name", item.Name).
		Float64("price", price).
		Float64("change_percent", stat.ChangePercent).
		Str("reason", string(reason)).
		Msg("Price alert triggered")

	s.publish(ctx, interfaces.EventAlertTriggered, map[string]interface{}{
		"item_id":        item.ID,
		"item_name":      item.Name,
		"price":          price,
		"currency":       item.Currency,
		"change_percent": stat.ChangePercent,
		"is_lowest_ever": stat.IsLowestEver,
		"reason":         string(reason),
	})

	if s.notifier == nil {
		return
	}

	for _, result := range s.notifier.Dispatch(ctx, item, price, stat) {
		if !result.OK() {
			logger.Warn().Str("item_id", item.ID).Str("channel", result.Channel).Err(result.Err).Msg("Notification delivery failed")
		}
	}
}

// finish publishes the item_checked event for an outcome
func (s *Service) finish(ctx context.Context, outcome models.CycleOutcome) models.CycleOutcome {
	payload := map[string]interface{}{
		"item_id":   outcome.ItemID,
		"item_name": outcome.ItemName,
		"success":   outcome.Success,
		"alerted":   outcome.Alerted,
	}
	if outcome.Success {
		payload["price"] = outcome.Price
	}
	if outcome.Error != "" {
		payload["error"] = outcome.Error
	}
	s.publish(ctx, interfaces.EventItemChecked, payload)
	return outcome
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload map[string]interface{}) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Str("event_type", string(eventType)).Err(err).Msg("Failed to publish event")
	}
}
