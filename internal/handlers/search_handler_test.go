package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/models"
)

type fakeSearcher struct {
	queries []string
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (*models.AggregateResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return &models.AggregateResult{
		Query:        query,
		TotalResults: 1,
		Listings:     []models.Listing{{Source: "Tokopedia", Title: "Kopi Arabika", Price: 85000}},
		Currency:     "IDR",
	}, nil
}

func (f *fakeSearcher) Sources() []string { return []string{"Tokopedia", "Shopee"} }

func executeSearch(handler *SearchHandler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.SearchHandler(rec, req)
	return rec
}

func TestSearchHandler_GetAndPost(t *testing.T) {
	searcher := &fakeSearcher{}
	handler := NewSearchHandler(searcher, arbor.NewLogger())

	rec := executeSearch(handler, "GET", "/api/search?q=kopi+arabika", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.AggregateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "kopi arabika", result.Query)
	assert.Len(t, result.Listings, 1)

	rec = executeSearch(handler, "POST", "/api/search", `{"query":"  teh hijau "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"kopi arabika", "teh hijau"}, searcher.queries)
}

func TestSearchHandler_MissingQuery(t *testing.T) {
	searcher := &fakeSearcher{}
	handler := NewSearchHandler(searcher, arbor.NewLogger())

	assert.Equal(t, http.StatusBadRequest, executeSearch(handler, "GET", "/api/search", "").Code)
	assert.Equal(t, http.StatusBadRequest, executeSearch(handler, "GET", "/api/search?q=%20%20", "").Code)
	assert.Equal(t, http.StatusBadRequest, executeSearch(handler, "POST", "/api/search", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, executeSearch(handler, "POST", "/api/search", `not json`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, executeSearch(handler, "DELETE", "/api/search", "").Code)
	assert.Empty(t, searcher.queries)
}

func TestSearchHandler_SearchFailure(t *testing.T) {
	handler := NewSearchHandler(&fakeSearcher{err: errors.New("boom")}, arbor.NewLogger())
	assert.Equal(t, http.StatusInternalServerError, executeSearch(handler, "GET", "/api/search?q=kopi", "").Code)
}

func TestSearchHandler_Sources(t *testing.T) {
	handler := NewSearchHandler(&fakeSearcher{}, arbor.NewLogger())
	rec := httptest.NewRecorder()
	handler.SourcesHandler(rec, httptest.NewRequest("GET", "/api/search/sources", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Shopee")
}
