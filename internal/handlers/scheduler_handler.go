package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/tracker"
)

// CycleLogReader exposes the retained per-cycle log lines
type CycleLogReader interface {
	CycleLogs(cycleID string) []models.CycleLogEntry
	CycleIDs() []string
}

// SchedulerHandler runs tracking cycles on demand and reports scheduler state
type SchedulerHandler struct {
	scheduler interfaces.SchedulerService
	cycleLogs CycleLogReader
	logger    arbor.ILogger
}

// NewSchedulerHandler creates a new SchedulerHandler
func NewSchedulerHandler(scheduler interfaces.SchedulerService, cycleLogs CycleLogReader, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: scheduler,
		cycleLogs: cycleLogs,
		logger:    logger,
	}
}

// RunCycleHandler handles POST /api/cycle/run and blocks until the cycle finishes
func (h *SchedulerHandler) RunCycleHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	summary, err := h.scheduler.TriggerNow(r.Context())
	if err != nil {
		if errors.Is(err, tracker.ErrCycleInProgress) {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Manual tracking cycle failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

// StatusHandler handles GET /api/scheduler/status
func (h *SchedulerHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

// CycleLogsHandler handles GET /api/cycle/logs and GET /api/cycle/logs?cycle_id=
func (h *SchedulerHandler) CycleLogsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	cycleID := r.URL.Query().Get("cycle_id")
	if cycleID == "" {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"cycles": h.cycleLogs.CycleIDs(),
		})
		return
	}

	entries := h.cycleLogs.CycleLogs(cycleID)
	if entries == nil {
		entries = []models.CycleLogEntry{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cycle_id": cycleID,
		"logs":     entries,
	})
}
