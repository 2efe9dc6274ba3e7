package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sosidash/internal/services"
)

func newHealthTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := testLogger()
	dashboard := services.NewDashboardService(nil)
	svc := services.NewHealthServiceWithBuildInfo("v1.0.0", "https://example.com/repo", "2025-01-01T00:00:00Z", "abc123def456", dashboard, logger)
	handler := NewHealthHandler(svc, logger)

	r := chi.NewRouter()
	r.Get("/health", handler.HealthCheck)
	r.Get("/health/ready", handler.ReadinessCheck)
	r.Get("/health/live", handler.LivenessCheck)
	r.Get("/health/stats", handler.SystemStats)
	r.Get("/version", handler.Version)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string) map[string]interface{} {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	server := newHealthTestServer(t)

	body := getJSON(t, server.URL+"/health")
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "timestamp")
}

func TestHealthHandler_ReadinessCheck(t *testing.T) {
	server := newHealthTestServer(t)

	body := getJSON(t, server.URL+"/health/ready")
	assert.Equal(t, "ready", body["status"])
}

func TestHealthHandler_LivenessCheck(t *testing.T) {
	server := newHealthTestServer(t)

	body := getJSON(t, server.URL+"/health/live")
	assert.Equal(t, "alive", body["status"])
	rt, ok := body["runtime"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, rt, "goroutines")
}

func TestHealthHandler_Version(t *testing.T) {
	server := newHealthTestServer(t)

	body := getJSON(t, server.URL+"/version")
	assert.Equal(t, "v1.0.0", body["version"])
	assert.Equal(t, "abc123def456", body["build_id"])
}

func TestHealthHandler_SystemStats(t *testing.T) {
	server := newHealthTestServer(t)

	body := getJSON(t, server.URL+"/health/stats")
	assert.Contains(t, body, "active_sessions")
	assert.EqualValues(t, 0, body["active_sessions"])
}
