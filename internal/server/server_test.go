package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/app"
	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/handlers"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := arbor.NewLogger()
	application := &app.App{
		Config:     common.NewDefaultConfig(),
		Logger:     logger,
		APIHandler: handlers.NewAPIHandler(logger),
		WSHandler:  handlers.NewWebSocketHandler(nil, logger),
	}
	return New(application)
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRoutes_SystemEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, "GET", "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Contains(t, health, "uptime_seconds")

	rec = serve(s, "GET", "/api/version")
	require.Equal(t, http.StatusOK, rec.Code)
	var version map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &version))
	assert.Equal(t, common.GetVersion(), version["version"])

	rec = serve(s, "GET", "/api/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/unknown")

	rec = serve(s, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRoutes_ItemsCollectionMethods(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(s, "DELETE", "/api/items").Code)
}

func TestMiddleware_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, "OPTIONS", "/api/items")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "DELETE"))
}

func TestMiddleware_RecoversFromPanic(t *testing.T) {
	s := newTestServer(t)
	handler := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/items", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, rec.Header().Get(RequestIDHeader), body["request_id"])
	assert.True(t, strings.HasPrefix(body["request_id"], "req_"))
}

func TestMiddleware_RequestID(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, "GET", "/api/health")
	assert.True(t, strings.HasPrefix(rec.Header().Get(RequestIDHeader), "req_"))

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set(RequestIDHeader, "dashboard-42")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "dashboard-42", rec.Header().Get(RequestIDHeader))
}

func TestMiddleware_RecordsRequestMetrics(t *testing.T) {
	s := newTestServer(t)

	serve(s, "GET", "/api/version")
	serve(s, "GET", "/api/version")

	rec := serve(s, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pricewatch_http_requests_total{method="GET",route="/api/version",status="200"}`)
	assert.Contains(t, rec.Body.String(), "pricewatch_http_request_duration_seconds")
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/api/items":                "/api/items",
		"/api/items/":               "/api/items",
		"/api/items/kettle":         "/api/items/:id",
		"/api/items/kettle/history": "/api/items/:id/history",
		"/api/search":               "/api/search",
		"/metrics":                  "/metrics",
		"/favicon.ico":              "other",
	}
	for path, want := range cases {
		assert.Equal(t, want, routeLabel(path), path)
	}
}

type staticStats map[string]interface{}

func (s staticStats) Stats() map[string]interface{} { return s }

func TestHealth_ReportsComponents(t *testing.T) {
	s := newTestServer(t)
	s.app.APIHandler.AddStatsReporter("fetcher", staticStats{"mode": "browser", "active": 1})
	s.app.APIHandler.AddStatsReporter("websocket", s.app.WSHandler)

	rec := serve(s, "GET", "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status     string                            `json:"status"`
		Components map[string]map[string]interface{} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "browser", health.Components["fetcher"]["mode"])
	assert.Equal(t, float64(0), health.Components["websocket"]["clients"])
	assert.NotEmpty(t, health.Components["websocket"]["server_instance_id"])
}
