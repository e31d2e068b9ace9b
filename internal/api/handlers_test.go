package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlenko/flightpath/internal/cache"
	"github.com/mlenko/flightpath/internal/config"
	"github.com/mlenko/flightpath/internal/flight"
	"github.com/mlenko/flightpath/internal/progress"
	"github.com/mlenko/flightpath/internal/provider"
	"github.com/mlenko/flightpath/internal/quota"
	"github.com/mlenko/flightpath/internal/refresh"
	"github.com/mlenko/flightpath/pkg/logger"
)

type staticProvider struct {
	payload *provider.FlightStatus
	err     error
}

func (p *staticProvider) Name() string { return "mock" }

func (p *staticProvider) FetchStatus(ctx context.Context, key flight.Key) (*provider.FlightStatus, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.payload, nil
}

func newTestRouter(t *testing.T, prov provider.Provider, quotaLimit int) http.Handler {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	c := cache.New(32, log)
	g := quota.NewGovernor(quotaLimit, quota.NewMemoryStore(), log)
	svc := refresh.NewService(c, g, prov, nil, nil, progress.DefaultConfig(), refresh.Config{}, nil, log)

	return NewRouter(svc, g, c, config.Default(), log).Routes()
}

func enroutePayload() *provider.FlightStatus {
	now := time.Now()
	dep := now.Add(-time.Hour)
	arr := now.Add(time.Hour)
	return &provider.FlightStatus{ActDep: &dep, SchedArr: &arr, Status: "ACTIVE"}
}

func TestGetFlightProgress(t *testing.T) {
	router := newTestRouter(t, &staticProvider{payload: enroutePayload()}, 10)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/flights/dl/100/progress?date=2026-09-01&origin=jfk&dest=lax", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result refresh.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "DL", result.Key.Carrier)
	assert.Equal(t, "JFK", result.Key.OriginIATA)
	assert.Equal(t, flight.StatusDeparted, result.Status)
	assert.Equal(t, 50, result.Progress.Percent)
	assert.True(t, result.Departed)
}

func TestGetFlightProgressRejectsBadDate(t *testing.T) {
	router := newTestRouter(t, &staticProvider{}, 10)

	for _, date := range []string{"", "tomorrow", "2026/09/01", "20260901"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/flights/DL/100/progress?date="+date, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "date %q", date)
	}
}

func TestGetFlightProgressQuotaExceeded(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	c := cache.New(32, log)
	g := quota.NewGovernor(1, quota.NewMemoryStore(), log)
	require.NoError(t, g.RecordCall()) // spend the whole budget
	svc := refresh.NewService(c, g, &staticProvider{}, nil, nil, progress.DefaultConfig(), refresh.Config{}, nil, log)
	router := NewRouter(svc, g, c, config.Default(), log).Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/flights/DL/100/progress?date=2026-09-01", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var result refresh.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, refresh.FailureQuotaExceeded, result.Failure)
	require.NotNil(t, result.Quota)
	assert.Zero(t, result.Quota.Remaining)
}

func TestBulkRefresh(t *testing.T) {
	router := newTestRouter(t, &staticProvider{payload: enroutePayload()}, 10)

	body := `{"flights":[
		{"carrier":"DL","number":"100","service_date":"2026-09-01","origin":"JFK","dest":"LAX"},
		{"carrier":"AC","number":"8847","service_date":"2026-09-01","origin":"YYZ","dest":"LGA"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/flights/refresh", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []refresh.BulkItem `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 2)
	for i, item := range resp.Results {
		assert.Equal(t, i, item.Index)
		require.NotNil(t, item.Result)
		assert.Empty(t, item.ErrMsg)
	}
}

func TestBulkRefreshRejectsEmptyList(t *testing.T) {
	router := newTestRouter(t, &staticProvider{}, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/flights/refresh", strings.NewReader(`{"flights":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetQuotaStatus(t *testing.T) {
	router := newTestRouter(t, &staticProvider{}, 600)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status quota.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, 600, status.Limit)
	assert.Equal(t, 600, status.Remaining)
}

func TestGetCacheStats(t *testing.T) {
	router := newTestRouter(t, &staticProvider{}, 10)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.EqualValues(t, 0, stats["entries"])
	assert.EqualValues(t, 32, stats["capacity"])
}

func TestGetHealth(t *testing.T) {
	router := newTestRouter(t, &staticProvider{}, 10)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
