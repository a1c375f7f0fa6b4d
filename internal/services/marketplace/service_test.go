package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/fetcher"
)

// stubSource returns fixed listings regardless of the page
type stubSource struct {
	name     string
	listings []models.Listing
	panics   bool
}

func (s *stubSource) Name() string {
	return s.name
}

func (s *stubSource) SearchURL(query string) string {
	return "https://" + strings.ToLower(s.name) + ".test/search?q=" + query
}

func (s *stubSource) Extract(doc *goquery.Document) []models.Listing {
	if s.panics {
		panic("unexpected markup")
	}
	return append([]models.Listing(nil), s.listings...)
}

func stub(name string, prices ...int64) *stubSource {
	source := &stubSource{name: name}
	for i, price := range prices {
		source.listings = append(source.listings, models.Listing{
			Source: name,
			Title:  fmt.Sprintf("%s item %d", name, i),
			Price:  price,
		})
	}
	return source
}

// pageFetcher serves an empty page unless a URL is configured to fail
type pageFetcher struct {
	mu       sync.Mutex
	failures map[string]error
	urls     []string
	calls    atomic.Int32
}

func (f *pageFetcher) FetchHTML(ctx context.Context, url string, opts models.FetchOptions) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.urls = append(f.urls, url)
	err := f.failures[url]
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return "<html><body></body></html>", nil
}

func (f *pageFetcher) FetchText(ctx context.Context, url, selector string, opts models.FetchOptions) (string, error) {
	return "", errors.New("not supported")
}

func (f *pageFetcher) Close() error {
	return nil
}

func (f *pageFetcher) fail(source Source, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = map[string]error{}
	}
	f.failures[source.SearchURL("phone")] = err
}

type noPolicy struct{}

func (noPolicy) Next() models.FetchOptions {
	return models.FetchOptions{Timeout: time.Second}
}

func upstreamErr() error {
	return &fetcher.FetchError{Kind: fetcher.KindUpstream, StatusCode: 503, Err: errors.New("service unavailable")}
}

func networkErr() error {
	return &fetcher.FetchError{Kind: fetcher.KindNetwork, Err: errors.New("connection reset")}
}

func testConfig() common.SearchConfig {
	return common.SearchConfig{
		SourceDelay:    "0s",
		FailureCeiling: 5,
		PerSourceLimit: 10,
		ResultLimit:    20,
		Currency:       "IDR",
		BucketWidth:    50000,
	}
}

func newService(f *pageFetcher, config common.SearchConfig, sources ...Source) *Service {
	return NewService(f, noPolicy{}, sources, config, nil, arbor.NewLogger())
}

func TestSearch_RanksAndSummarizes(t *testing.T) {
	f := &pageFetcher{}
	svc := newService(f, testConfig(), stub("Alpha", 130000, 120000), stub("Beta", 310000, 125000))

	result, err := svc.Search(context.Background(), "phone")
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalResults)
	assert.Equal(t, int64(150000), result.TypicalPrice)
	assert.Equal(t, int64(171250), result.AveragePrice)
	require.NotNil(t, result.Cheapest)
	assert.Equal(t, int64(120000), result.Cheapest.Price)
	assert.False(t, result.Demo)
	assert.Equal(t, "IDR", result.Currency)

	prices := make([]int64, len(result.Listings))
	for i, listing := range result.Listings {
		prices[i] = listing.Price
	}
	assert.Equal(t, []int64{120000, 125000, 130000, 310000}, prices)
	assert.Equal(t, []string{"Alpha", "Beta"}, svc.Sources())
}

func TestSearch_AllSourcesFailIsDemo(t *testing.T) {
	f := &pageFetcher{}
	sources := []Source{stub("A", 1), stub("B", 2), stub("C", 3), stub("D", 4)}
	for _, source := range sources {
		f.fail(source, networkErr())
	}

	result, err := newService(f, testConfig(), sources...).Search(context.Background(), "phone")
	require.NoError(t, err)

	assert.True(t, result.Demo)
	assert.Zero(t, result.TotalResults)
	assert.Zero(t, result.TypicalPrice)
	assert.Zero(t, result.AveragePrice)
	assert.Nil(t, result.Cheapest)
	assert.NotNil(t, result.Listings)
	assert.Empty(t, result.Listings)
	require.Len(t, result.Sources, 4)
	for _, report := range result.Sources {
		assert.NotEmpty(t, report.Error)
	}
}

func TestSearch_FailingSourceDoesNotStopOthers(t *testing.T) {
	f := &pageFetcher{}
	broken := stub("Broken", 1)
	f.fail(broken, upstreamErr())

	result, err := newService(f, testConfig(), stub("First", 200000), broken, &stubSource{name: "Panicky", panics: true}, stub("Last", 100000)).
		Search(context.Background(), "phone")
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalResults)
	assert.Equal(t, "Last", result.Cheapest.Source)
	assert.Contains(t, result.Sources[1].Error, "upstream")
	assert.Contains(t, result.Sources[2].Error, "panic")
	assert.Equal(t, 1, result.Sources[3].Listings)
}

func TestSearch_BreakerStopsSeventhFetch(t *testing.T) {
	f := &pageFetcher{}
	var sources []Source
	for i := 0; i < 7; i++ {
		source := stub(fmt.Sprintf("S%d", i), 100)
		f.fail(source, upstreamErr())
		sources = append(sources, source)
	}

	result, err := newService(f, testConfig(), sources...).Search(context.Background(), "phone")
	require.NoError(t, err)

	assert.Equal(t, int32(6), f.calls.Load())
	assert.True(t, result.Sources[6].Skipped)
	assert.True(t, result.Demo)

	// Fresh breaker for the next search
	f.calls.Store(0)
	_, err = newService(f, testConfig(), sources[:1]...).Search(context.Background(), "phone")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestSearch_BreakerIgnoresNonUpstreamFailures(t *testing.T) {
	f := &pageFetcher{}
	var sources []Source
	for i := 0; i < 7; i++ {
		source := stub(fmt.Sprintf("N%d", i), 100)
		f.fail(source, networkErr())
		sources = append(sources, source)
	}

	_, err := newService(f, testConfig(), sources...).Search(context.Background(), "phone")
	require.NoError(t, err)
	assert.Equal(t, int32(7), f.calls.Load())
}

func TestSearch_SuccessResetsBreaker(t *testing.T) {
	f := &pageFetcher{}
	var sources []Source
	for i := 0; i < 9; i++ {
		source := stub(fmt.Sprintf("R%d", i), 100)
		if i != 4 {
			f.fail(source, upstreamErr())
		}
		sources = append(sources, source)
	}

	result, err := newService(f, testConfig(), sources...).Search(context.Background(), "phone")
	require.NoError(t, err)

	assert.Equal(t, int32(9), f.calls.Load())
	assert.Equal(t, 1, result.TotalResults)
}

func TestSearch_CapsPerSourceAndResult(t *testing.T) {
	f := &pageFetcher{}
	var sources []Source
	for s := 0; s < 3; s++ {
		var prices []int64
		for i := 0; i < 15; i++ {
			prices = append(prices, int64(1000*(s+1)+i))
		}
		sources = append(sources, stub(fmt.Sprintf("Big%d", s), prices...))
	}

	result, err := newService(f, testConfig(), sources...).Search(context.Background(), "phone")
	require.NoError(t, err)

	assert.Equal(t, 30, result.TotalResults)
	assert.Len(t, result.Listings, 20)
	for _, report := range result.Sources {
		assert.Equal(t, 10, report.Listings)
	}
	assert.True(t, sort.SliceIsSorted(result.Listings, func(i, j int) bool {
		return result.Listings[i].Price < result.Listings[j].Price
	}))
}

func TestSearch_ConcurrentMatchesSequential(t *testing.T) {
	config := testConfig()
	sources := []Source{stub("A", 500, 90), stub("B", 70), stub("C", 300, 20, 1000)}

	sequential, err := newService(&pageFetcher{}, config, sources...).Search(context.Background(), "phone")
	require.NoError(t, err)

	config.Concurrent = true
	config.SourceDelay = "1ms"
	concurrent, err := newService(&pageFetcher{}, config, sources...).Search(context.Background(), "phone")
	require.NoError(t, err)

	assert.Equal(t, sequential.TotalResults, concurrent.TotalResults)
	assert.Equal(t, sequential.TypicalPrice, concurrent.TypicalPrice)
	assert.Equal(t, sequential.AveragePrice, concurrent.AveragePrice)
	assert.Equal(t, sequential.Listings, concurrent.Listings)
}

func TestSearch_DelayHonoursCancellation(t *testing.T) {
	config := testConfig()
	config.SourceDelay = "1h"
	f := &pageFetcher{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()
	result, err := newService(f, config, stub("A", 100), stub("B", 200), stub("C", 300)).Search(ctx, "phone")
	require.NoError(t, err)

	assert.Less(t, time.Since(started), 5*time.Second)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 1, result.TotalResults)
	assert.NotEmpty(t, result.Sources[1].Error)
	assert.NotEmpty(t, result.Sources[2].Error)
}

func TestSearch_EmptyQuery(t *testing.T) {
	_, err := newService(&pageFetcher{}, testConfig(), stub("A", 1)).Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSummarize(t *testing.T) {
	empty := Summarize(nil, 50000)
	assert.Nil(t, empty.Cheapest)
	assert.Zero(t, empty.TypicalPrice)
	assert.Zero(t, empty.AveragePrice)

	// Equal bucket counts resolve to the first bucket encountered
	tie := Summarize([]models.Listing{{Price: 10000}, {Price: 60000}}, 50000)
	assert.Equal(t, int64(50000), tie.TypicalPrice)
	assert.Equal(t, int64(35000), tie.AveragePrice)

	rounded := Summarize([]models.Listing{{Price: 1}, {Price: 2}}, 50000)
	assert.Equal(t, int64(2), rounded.AveragePrice)
}

func TestBreaker(t *testing.T) {
	breaker := NewBreaker(5)
	for i := 0; i < 5; i++ {
		assert.False(t, breaker.RecordFailure())
	}
	assert.False(t, breaker.Open())
	assert.True(t, breaker.RecordFailure())
	assert.True(t, breaker.Open())

	breaker.RecordSuccess()
	assert.False(t, breaker.Open())
	assert.Zero(t, breaker.Failures())
}

func TestBreaker_ConcurrentFailures(t *testing.T) {
	breaker := NewBreaker(5)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			breaker.RecordFailure()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, breaker.Failures())
}
