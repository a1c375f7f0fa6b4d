// Package marketplace fans a query out to marketplace sources and merges
// their listings into one ranked result.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/fetcher"
)

// ErrEmptyQuery is returned when Search is called without query text
var ErrEmptyQuery = errors.New("search query is empty")

// Service is the marketplace aggregator
type Service struct {
	fetcher        interfaces.PageFetcher
	fetchPolicy    interfaces.FetchPolicy
	sources        []Source
	eventService   interfaces.EventService // optional
	logger         arbor.ILogger
	metrics        *Metrics
	sourceDelay    time.Duration
	concurrent     bool
	failureCeiling int
	perSourceLimit int
	resultLimit    int
	currency       string
	bucketWidth    int64
}

// NewService creates an aggregator over sources
func NewService(
	pageFetcher interfaces.PageFetcher,
	fetchPolicy interfaces.FetchPolicy,
	sources []Source,
	config common.SearchConfig,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	s := &Service{
		fetcher:        pageFetcher,
		fetchPolicy:    fetchPolicy,
		sources:        sources,
		eventService:   eventService,
		logger:         logger,
		metrics:        NewMetrics(),
		sourceDelay:    common.ParseDurationOr(config.SourceDelay, 500*time.Millisecond),
		concurrent:     config.Concurrent,
		failureCeiling: config.FailureCeiling,
		perSourceLimit: config.PerSourceLimit,
		resultLimit:    config.ResultLimit,
		currency:       config.Currency,
		bucketWidth:    config.BucketWidth,
	}

	if s.failureCeiling <= 0 {
		s.failureCeiling = 5
	}
	if s.perSourceLimit <= 0 {
		s.perSourceLimit = 10
	}
	if s.resultLimit <= 0 {
		s.resultLimit = 20
	}
	if s.currency == "" {
		s.currency = "IDR"
	}
	if s.bucketWidth <= 0 {
		s.bucketWidth = 50000
	}

	return s
}

// Sources returns the names of the configured sources in search order
func (s *Service) Sources() []string {
	names := make([]string, len(s.sources))
	for i, source := range s.sources {
		names[i] = source.Name()
	}
	return names
}

// Search queries every source and merges the results. A failing source
// contributes no listings; the result is well-formed even when all fail.
func (s *Service) Search(ctx context.Context, query string) (*models.AggregateResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	s.metrics.SearchesTotal.Inc()
	started := time.Now()
	breaker := NewBreaker(s.failureCeiling)

	reports := make([]models.SourceReport, len(s.sources))
	found := make([][]models.Listing, len(s.sources))

	if s.concurrent {
		s.searchConcurrently(ctx, query, breaker, reports, found)
	} else {
		s.searchSequentially(ctx, query, breaker, reports, found)
	}

	var listings []models.Listing
	for _, batch := range found {
		listings = append(listings, batch...)
	}
	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].Price < listings[j].Price
	})

	summary := Summarize(listings, s.bucketWidth)

	ranked := listings
	if len(ranked) > s.resultLimit {
		ranked = ranked[:s.resultLimit]
	}
	if ranked == nil {
		ranked = []models.Listing{}
	}

	result := &models.AggregateResult{
		Query:        query,
		TotalResults: len(listings),
		Cheapest:     summary.Cheapest,
		TypicalPrice: summary.TypicalPrice,
		AveragePrice: summary.AveragePrice,
		Listings:     ranked,
		Demo:         len(listings) == 0,
		Currency:     s.currency,
		Sources:      reports,
	}

	s.logger.Info().
		Str("query", query).
		Int("total_results", result.TotalResults).
		Int64("typical_price", result.TypicalPrice).
		Int64("average_price", result.AveragePrice).
		Int("breaker_failures", breaker.Failures()).
		Dur("duration", time.Since(started)).
		Msg("Marketplace search completed")

	if s.eventService != nil {
		event := interfaces.Event{
			Type: interfaces.EventSearchComplete,
			Payload: map[string]interface{}{
				"query":         query,
				"total_results": result.TotalResults,
				"typical_price": result.TypicalPrice,
				"demo":          result.Demo,
			},
		}
		if err := s.eventService.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish search event")
		}
	}

	return result, nil
}

// searchSequentially runs sources in order with sourceDelay between them
func (s *Service) searchSequentially(ctx context.Context, query string, breaker *Breaker, reports []models.SourceReport, found [][]models.Listing) {
	for i, source := range s.sources {
		if i > 0 && s.sourceDelay > 0 {
			if err := wait(ctx, s.sourceDelay); err != nil {
				for j := i; j < len(s.sources); j++ {
					reports[j] = models.SourceReport{Source: s.sources[j].Name(), Error: err.Error()}
				}
				return
			}
		}
		reports[i], found[i] = s.searchSource(ctx, source, query, breaker)
	}
}

// searchConcurrently starts source i after i*sourceDelay and waits for all
func (s *Service) searchConcurrently(ctx context.Context, query string, breaker *Breaker, reports []models.SourceReport, found [][]models.Listing) {
	var wg sync.WaitGroup
	for i, source := range s.sources {
		wg.Add(1)
		go func(i int, source Source) {
			defer wg.Done()
			if err := wait(ctx, time.Duration(i)*s.sourceDelay); err != nil {
				reports[i] = models.SourceReport{Source: source.Name(), Error: err.Error()}
				return
			}
			reports[i], found[i] = s.searchSource(ctx, source, query, breaker)
		}(i, source)
	}
	wg.Wait()
}

// searchSource fetches and extracts one source. It never returns an error:
// failures, including panics in extraction, become an empty listing set.
func (s *Service) searchSource(ctx context.Context, source Source, query string, breaker *Breaker) (report models.SourceReport, listings []models.Listing) {
	name := source.Name()
	report.Source = name

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("source", name).Str("panic", fmt.Sprintf("%v", r)).Msg("Recovered from panic in marketplace source")
			report = models.SourceReport{Source: name, Error: fmt.Sprintf("panic: %v", r)}
			listings = nil
			s.metrics.SourceFailures.WithLabelValues(name).Inc()
		}
	}()

	if breaker.Open() {
		s.metrics.BreakerShortCircuits.Inc()
		s.logger.Debug().Str("source", name).Msg("Upstream breaker open, skipping source")
		report.Skipped = true
		return report, nil
	}

	html, err := s.fetcher.FetchHTML(ctx, source.SearchURL(query), s.fetchPolicy.Next())
	if err != nil {
		if fetcher.IsUpstream(err) && breaker.RecordFailure() {
			s.logger.Warn().Int("failures", breaker.Failures()).Msg("Upstream breaker opened")
		}
		s.metrics.SourceFailures.WithLabelValues(name).Inc()
		s.logger.Warn().Str("source", name).Err(err).Msg("Marketplace source failed")
		report.Error = err.Error()
		return report, nil
	}
	breaker.RecordSuccess()

	doc, err := fetcher.ParseDocument(html)
	if err != nil {
		s.metrics.SourceFailures.WithLabelValues(name).Inc()
		report.Error = err.Error()
		return report, nil
	}

	listings = source.Extract(doc)
	if len(listings) > s.perSourceLimit {
		listings = listings[:s.perSourceLimit]
	}

	report.Listings = len(listings)
	s.metrics.SourceListings.WithLabelValues(name).Add(float64(len(listings)))
	s.logger.Debug().Str("source", name).Int("listings", len(listings)).Msg("Marketplace source searched")

	return report, listings
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
