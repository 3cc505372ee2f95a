package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotpool/shotpool/internal/batch"
	"github.com/shotpool/shotpool/internal/browser"
	"github.com/shotpool/shotpool/internal/browserpool"
	"github.com/shotpool/shotpool/internal/metrics"
	"github.com/shotpool/shotpool/internal/ratelimit"
	"github.com/shotpool/shotpool/internal/resultcache"
)

type fakeCapturer struct{}

func (fakeCapturer) Capture(ctx context.Context, rawURL string, width, height int, format string, useCache bool) (string, error) {
	return "https://example.com/artifacts/fake.png", nil
}

type fakeFactory struct{}

func (fakeFactory) Launch(ctx context.Context, engine string, headless bool, args []string) (browser.Handle, error) {
	return nil, nil
}

func newTestDeps(t *testing.T) adminServerDeps {
	t.Helper()
	mcs := metrics.New(metrics.AlertThresholds{})
	cache := resultcache.New(100, 0)
	pool := browserpool.New(fakeFactory{}, func() browserpool.Config {
		return browserpool.Config{MinSize: 0, MaxSize: 1}
	})
	engine := batch.NewEngine(batch.EngineConfig{}, batch.NewStore(batch.StoreConfig{}), fakeCapturer{}, slog.Default())
	limiters := ratelimit.NewRegistry(ratelimit.DefaultTierConfigs(), func(string) string { return ratelimit.TierFree })
	return adminServerDeps{
		engine:      engine,
		browserPool: pool,
		metrics:     mcs,
		cache:       cache,
		limiters:    limiters,
		logger:      slog.Default(),
	}
}

func TestAdminServer_HealthzOK(t *testing.T) {
	srv := newAdminServer(newTestDeps(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminServer_GetJobMissingReturnsMappedError(t *testing.T) {
	srv := newAdminServer(newTestDeps(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/get_job?job_id=nope", nil)
	srv.ServeHTTP(rec, req)

	require.NotEqual(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["error"])
}

func TestAdminServer_GetMetricsReturnsSnapshot(t *testing.T) {
	srv := newAdminServer(newTestDeps(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/get_metrics", nil)
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var snapshot metrics.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snapshot))
}

func TestAdminServer_PoolStatsReturnsStats(t *testing.T) {
	srv := newAdminServer(newTestDeps(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/pool_stats", nil)
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var stats browserpool.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
}

func TestAdminServer_InvalidateCacheRequiresURL(t *testing.T) {
	srv := newAdminServer(newTestDeps(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/invalidate_cache", nil)
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminServer_CaptureRejectsMissingURL(t *testing.T) {
	srv := newAdminServer(newTestDeps(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/capture", nil)
	req.Body = http.NoBody
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
