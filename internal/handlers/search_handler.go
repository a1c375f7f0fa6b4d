package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/services/marketplace"
)

// SearchHandler aggregates marketplace listings for a query
type SearchHandler struct {
	searcher interfaces.MarketSearcher
	logger   arbor.ILogger
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(searcher interfaces.MarketSearcher, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
		logger:   logger,
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

// SearchHandler handles GET /api/search?q= and POST /api/search {"query": ...}
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	var query string
	switch r.Method {
	case "GET":
		query = r.URL.Query().Get("q")
	case "POST":
		var req searchRequest
		if err := DecodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		query = req.Query
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query = strings.TrimSpace(query)
	if query == "" {
		WriteError(w, http.StatusBadRequest, "Query is required")
		return
	}

	result, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, marketplace.ErrEmptyQuery) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("query", query).Msg("Marketplace search failed")
		WriteError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// SourcesHandler handles GET /api/search/sources
func (h *SearchHandler) SourcesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": h.searcher.Sources(),
	})
}
