package handlers

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
)

// StatsReporter is a component that contributes counters to the health response
type StatsReporter interface {
	Stats() map[string]interface{}
}

// APIHandler serves the system endpoints: version, health and the JSON 404
type APIHandler struct {
	logger    arbor.ILogger
	startedAt time.Time

	mu        sync.RWMutex
	reporters map[string]StatsReporter
}

func NewAPIHandler(logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		logger:    logger,
		startedAt: time.Now(),
		reporters: make(map[string]StatsReporter),
	}
}

// AddStatsReporter registers a component under name in GET /api/health
func (h *APIHandler) AddStatsReporter(name string, reporter StatsReporter) {
	if reporter == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reporters[name] = reporter
}

// VersionHandler handles GET /api/version
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// HealthHandler handles GET /api/health
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.reporters))
	for name := range h.reporters {
		names = append(names, name)
	}
	sort.Strings(names)
	components := make(map[string]interface{}, len(names))
	for _, name := range names {
		components[name] = h.reporters[name].Stats()
	}
	h.mu.RUnlock()

	response := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if len(components) > 0 {
		response["components"] = components
	}

	WriteJSON(w, http.StatusOK, response)
}

// NotFoundHandler answers unknown /api/ paths with a JSON 404
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug().Str("path", r.URL.Path).Str("method", r.Method).Msg("Unknown API endpoint")
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
