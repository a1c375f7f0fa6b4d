package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Metrics (Prometheus text format)
	mux.Handle("/metrics", promhttp.Handler())

	// API routes - Tracked items
	mux.HandleFunc("/api/items", s.handleItemsRoute)                   // GET (list), POST (create)
	mux.HandleFunc("/api/items/", s.app.ItemHandler.ItemRoutesHandler) // /{id}, /{id}/toggle, /{id}/history, /{id}/stats

	// API routes - Marketplace search
	mux.HandleFunc("/api/search", s.app.SearchHandler.SearchHandler) // GET ?q= or POST {"query"}
	mux.HandleFunc("/api/search/sources", s.app.SearchHandler.SourcesHandler)

	// API routes - Tracking cycles
	mux.HandleFunc("/api/cycle/run", s.app.SchedulerHandler.RunCycleHandler)
	mux.HandleFunc("/api/cycle/logs", s.app.SchedulerHandler.CycleLogsHandler)
	mux.HandleFunc("/api/scheduler/status", s.app.SchedulerHandler.StatusHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleItemsRoute routes /api/items requests (list and create)
func (s *Server) handleItemsRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.ItemHandler.ListItemsHandler, s.app.ItemHandler.CreateItemHandler)
}
