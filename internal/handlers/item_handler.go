package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/analyzer"
)

const defaultHistoryDays = 7

// ItemHandler serves the tracked item catalog and its price history
type ItemHandler struct {
	catalog  interfaces.CatalogStorage
	history  interfaces.HistoryStorage
	analyzer interfaces.PriceAnalyzer
	logger   arbor.ILogger
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(catalog interfaces.CatalogStorage, history interfaces.HistoryStorage, priceAnalyzer interfaces.PriceAnalyzer, logger arbor.ILogger) *ItemHandler {
	return &ItemHandler{
		catalog:  catalog,
		history:  history,
		analyzer: priceAnalyzer,
		logger:   logger,
	}
}

// ListItemsHandler handles GET /api/items
func (h *ItemHandler) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	items, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list items")
		WriteError(w, http.StatusInternalServerError, "Failed to list items")
		return
	}

	rollups, err := h.history.Rollup(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to load price rollups")
		rollups = nil
	}
	byItem := make(map[string]models.ItemRollup, len(rollups))
	for _, rollup := range rollups {
		byItem[rollup.ItemID] = rollup
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":   items,
		"rollups": byItem,
		"count":   len(items),
	})
}

// CreateItemHandler handles POST /api/items
func (h *ItemHandler) CreateItemHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var input models.ItemInput
	if err := DecodeJSON(w, r, &input); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item := input.ToItem()
	if err := h.catalog.Add(r.Context(), item); err != nil {
		h.logger.Warn().Err(err).Str("item_id", item.ID).Msg("Failed to add item")
		WriteError(w, statusForError(err), err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, item)
}

// GetItemHandler handles GET /api/items/{id}
func (h *ItemHandler) GetItemHandler(w http.ResponseWriter, r *http.Request, id string) {
	item, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		WriteError(w, statusForError(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// UpdateItemHandler handles PUT /api/items/{id} with a partial patch
func (h *ItemHandler) UpdateItemHandler(w http.ResponseWriter, r *http.Request, id string) {
	var patch models.ItemPatch
	if err := DecodeJSON(w, r, &patch); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := h.catalog.Update(r.Context(), id, patch)
	if err != nil {
		h.logger.Warn().Err(err).Str("item_id", id).Msg("Failed to update item")
		WriteError(w, statusForError(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// DeleteItemHandler handles DELETE /api/items/{id}; history goes with the item
func (h *ItemHandler) DeleteItemHandler(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.catalog.Remove(r.Context(), id); err != nil {
		WriteError(w, statusForError(err), err.Error())
		return
	}
	if err := h.history.DeleteItem(r.Context(), id); err != nil {
		h.logger.Warn().Err(err).Str("item_id", id).Msg("Failed to delete item history")
	}
	WriteSuccess(w, "Item removed")
}

// ToggleItemHandler handles POST /api/items/{id}/toggle
func (h *ItemHandler) ToggleItemHandler(w http.ResponseWriter, r *http.Request, id string) {
	item, err := h.catalog.Toggle(r.Context(), id)
	if err != nil {
		WriteError(w, statusForError(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// HistoryHandler handles GET /api/items/{id}/history?days=7
func (h *ItemHandler) HistoryHandler(w http.ResponseWriter, r *http.Request, id string) {
	days := defaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	if _, err := h.catalog.Get(r.Context(), id); err != nil {
		WriteError(w, statusForError(err), err.Error())
		return
	}

	since := time.Now().AddDate(0, 0, -days)
	observations, err := h.history.Range(r.Context(), id, since)
	if err != nil {
		h.logger.Error().Err(err).Str("item_id", id).Msg("Failed to load price history")
		WriteError(w, http.StatusInternalServerError, "Failed to load price history")
		return
	}
	if observations == nil {
		observations = []models.PriceObservation{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"item_id":      id,
		"days":         days,
		"observations": observations,
	})
}

// StatsHandler handles GET /api/items/{id}/stats
func (h *ItemHandler) StatsHandler(w http.ResponseWriter, r *http.Request, id string) {
	stat, err := h.analyzer.Compare(r.Context(), id)
	if err != nil {
		if errors.Is(err, analyzer.ErrNoObservations) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("item_id", id).Msg("Failed to compare prices")
		WriteError(w, http.StatusInternalServerError, "Failed to compare prices")
		return
	}
	WriteJSON(w, http.StatusOK, stat)
}

// ItemRoutesHandler dispatches /api/items/{id} and its subpaths
func (h *ItemHandler) ItemRoutesHandler(w http.ResponseWriter, r *http.Request) {
	segments := PathSegments(r.URL.Path, "/api/items/")
	if len(segments) == 0 || len(segments) > 2 {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	id := segments[0]

	if len(segments) == 1 {
		switch r.Method {
		case "GET":
			h.GetItemHandler(w, r, id)
		case "PUT":
			h.UpdateItemHandler(w, r, id)
		case "DELETE":
			h.DeleteItemHandler(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch segments[1] {
	case "toggle":
		if RequireMethod(w, r, "POST") {
			h.ToggleItemHandler(w, r, id)
		}
	case "history":
		if RequireMethod(w, r, "GET") {
			h.HistoryHandler(w, r, id)
		}
	case "stats":
		if RequireMethod(w, r, "GET") {
			h.StatsHandler(w, r, id)
		}
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}
