package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/tracker"
)

type fakeScheduler struct {
	summary *models.CycleSummary
	err     error
}

func (f *fakeScheduler) Start(schedule string) error { return nil }
func (f *fakeScheduler) Stop() error                 { return nil }

func (f *fakeScheduler) TriggerNow(ctx context.Context) (*models.CycleSummary, error) {
	return f.summary, f.err
}

func (f *fakeScheduler) Status() models.SchedulerStatus {
	return models.SchedulerStatus{Schedule: "0 * * * *", Skipped: 2}
}

type fakeCycleLogs map[string][]models.CycleLogEntry

func (f fakeCycleLogs) CycleLogs(cycleID string) []models.CycleLogEntry { return f[cycleID] }
func (f fakeCycleLogs) CycleIDs() []string                              { return []string{"cycle_1"} }

func TestSchedulerHandler_RunCycle(t *testing.T) {
	summary := &models.CycleSummary{CycleID: "cycle_1", StartedAt: time.Now(), Succeeded: 3, Alerts: 1}
	handler := NewSchedulerHandler(&fakeScheduler{summary: summary}, fakeCycleLogs{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.RunCycleHandler(rec, httptest.NewRequest("POST", "/api/cycle/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.CycleSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "cycle_1", got.CycleID)
	assert.Equal(t, 3, got.Succeeded)

	rec = httptest.NewRecorder()
	handler.RunCycleHandler(rec, httptest.NewRequest("GET", "/api/cycle/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSchedulerHandler_RunCycleErrors(t *testing.T) {
	busy := NewSchedulerHandler(&fakeScheduler{err: tracker.ErrCycleInProgress}, fakeCycleLogs{}, arbor.NewLogger())
	rec := httptest.NewRecorder()
	busy.RunCycleHandler(rec, httptest.NewRequest("POST", "/api/cycle/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	failing := NewSchedulerHandler(&fakeScheduler{err: errors.New("catalog unavailable")}, fakeCycleLogs{}, arbor.NewLogger())
	rec = httptest.NewRecorder()
	failing.RunCycleHandler(rec, httptest.NewRequest("POST", "/api/cycle/run", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSchedulerHandler_Status(t *testing.T) {
	handler := NewSchedulerHandler(&fakeScheduler{}, fakeCycleLogs{}, arbor.NewLogger())
	rec := httptest.NewRecorder()
	handler.StatusHandler(rec, httptest.NewRequest("GET", "/api/scheduler/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.SchedulerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "0 * * * *", status.Schedule)
	assert.Equal(t, 2, status.Skipped)
}

func TestSchedulerHandler_CycleLogs(t *testing.T) {
	logs := fakeCycleLogs{"cycle_1": {{CycleID: "cycle_1", Level: "INF", Message: "Tracking cycle started"}}}
	handler := NewSchedulerHandler(&fakeScheduler{}, logs, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.CycleLogsHandler(rec, httptest.NewRequest("GET", "/api/cycle/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cycles":["cycle_1"]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.CycleLogsHandler(rec, httptest.NewRequest("GET", "/api/cycle/logs?cycle_id=cycle_1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tracking cycle started")

	rec = httptest.NewRecorder()
	handler.CycleLogsHandler(rec, httptest.NewRequest("GET", "/api/cycle/logs?cycle_id=cycle_9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"logs":[]`)
}
