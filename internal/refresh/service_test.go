package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlenko/flightpath/internal/cache"
	"github.com/mlenko/flightpath/internal/flight"
	"github.com/mlenko/flightpath/internal/progress"
	"github.com/mlenko/flightpath/internal/provider"
	"github.com/mlenko/flightpath/internal/quota"
	"github.com/mlenko/flightpath/pkg/logger"
)

type mockProvider struct {
	mu      sync.Mutex
	calls   int
	payload *provider.FlightStatus
	err     error
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) FetchStatus(ctx context.Context, key flight.Key) (*provider.FlightStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.payload, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockAuditor struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockAuditor) LogCall(providerName, flightKey string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, flightKey)
	return nil
}

type stubPositions struct {
	pos *flight.Position
}

func (s *stubPositions) Current(ctx context.Context, key flight.Key) (*flight.Position, error) {
	if s.pos == nil {
		return nil, errors.New("no position")
	}
	return s.pos, nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)
	return log
}

type serviceParts struct {
	svc      *Service
	cache    *cache.Cache
	governor *quota.Governor
	provider *mockProvider
	auditor  *mockAuditor
}

func newTestService(t *testing.T, prov *mockProvider, quotaLimit int, positions PositionSource) serviceParts {
	t.Helper()
	log := newTestLogger(t)
	c := cache.New(32, log)
	g := quota.NewGovernor(quotaLimit, quota.NewMemoryStore(), log)
	aud := &mockAuditor{}

	svc := NewService(c, g, prov, positions, nil, progress.DefaultConfig(), Config{}, aud, log)
	return serviceParts{svc: svc, cache: c, governor: g, provider: prov, auditor: aud}
}

func testKey(number string) flight.Key {
	return flight.Key{
		Carrier:     "DL",
		Number:      number,
		ServiceDate: "2026-09-01",
		OriginIATA:  "JFK",
		DestIATA:    "LAX",
	}
}

func tp(t time.Time) *time.Time { return &t }
func fp(f float64) *float64     { return &f }

func TestRefreshSuccessRecordsQuotaAndCaches(t *testing.T) {
	now := time.Now()
	prov := &mockProvider{payload: &provider.FlightStatus{
		ActDep:   tp(now.Add(-time.Hour)),
		SchedArr: tp(now.Add(time.Hour)),
		Status:   "ACTIVE",
	}}
	parts := newTestService(t, prov, 10, nil)

	res, err := parts.svc.Refresh(context.Background(), Request{Key: testKey("100")})
	require.NoError(t, err)

	assert.Equal(t, flight.StatusDeparted, res.Status)
	assert.Equal(t, 50, res.Progress.Percent)
	assert.True(t, res.Departed)
	assert.False(t, res.Landed)
	assert.False(t, res.CacheServed)
	assert.Equal(t, FailureNone, res.Failure)
	assert.Equal(t, 1, prov.callCount())

	status, err := parts.governor.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.Used)

	assert.Equal(t, []string{testKey("100").String()}, parts.auditor.calls)
	assert.Equal(t, 1, parts.cache.Len())
}

func TestRefreshFreshCacheSkipsProvider(t *testing.T) {
	now := time.Now()
	prov := &mockProvider{payload: &provider.FlightStatus{
		ActDep:   tp(now.Add(-time.Hour)),
		SchedArr: tp(now.Add(time.Hour)),
	}}
	parts := newTestService(t, prov, 10, nil)

	req := Request{Key: testKey("101")}
	_, err := parts.svc.Refresh(context.Background(), req)
	require.NoError(t, err)

	res, err := parts.svc.Refresh(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.CacheServed)
	assert.Equal(t, 1, prov.callCount(), "second refresh must be served from cache")

	status, err := parts.governor.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.Used)
}

func TestRefreshQuotaExhaustedServesStaleCache(t *testing.T) {
	now := time.Now()
	prov := &mockProvider{}
	parts := newTestService(t, prov, 0, nil)

	// Seed an expired entry directly
	parts.cache.Set(testKey("102").String(), &provider.FlightStatus{
		ActDep:   tp(now.Add(-3 * time.Hour)),
		SchedArr: tp(now.Add(-time.Hour)),
	}, time.Minute, now.Add(-2*time.Hour))

	res, err := parts.svc.Refresh(context.Background(), Request{Key: testKey("102")})
	require.NoError(t, err)

	assert.True(t, res.CacheServed)
	assert.Equal(t, FailureNone, res.Failure)
	require.NotNil(t, res.Quota)
	assert.Zero(t, res.Quota.Remaining)
	assert.Zero(t, prov.callCount())
	require.NotNil(t, res.Payload)
}

func TestRefreshQuotaExhaustedNoCache(t *testing.T) {
	prov := &mockProvider{}
	parts := newTestService(t, prov, 0, nil)

	res, err := parts.svc.Refresh(context.Background(), Request{Key: testKey("103")})
	require.NoError(t, err)

	assert.Equal(t, FailureQuotaExceeded, res.Failure)
	require.NotNil(t, res.Quota)
	assert.Zero(t, res.Quota.Remaining)
	assert.Nil(t, res.Payload)
	assert.Zero(t, res.Progress.Percent)
	assert.Equal(t, flight.StatusUnknown, res.Status)
	assert.Zero(t, prov.callCount())
}

func TestRefreshRateLimitedFallsBackToStale(t *testing.T) {
	now := time.Now()
	prov := &mockProvider{err: &provider.Error{Provider: "mock", StatusCode: 429, Message: "too many requests"}}
	parts := newTestService(t, prov, 10, nil)

	parts.cache.Set(testKey("104").String(), &provider.FlightStatus{
		ActDep:   tp(now.Add(-2 * time.Hour)),
		SchedArr: tp(now.Add(time.Hour)),
	}, time.Minute, now.Add(-time.Hour))

	res, err := parts.svc.Refresh(context.Background(), Request{Key: testKey("104")})
	require.NoError(t, err)

	assert.True(t, res.CacheServed)
	assert.Equal(t, FailureRateLimited, res.Failure)
	assert.Equal(t, 1, prov.callCount())

	// A failed upstream attempt never burns quota
	status, err := parts.governor.Status()
	require.NoError(t, err)
	assert.Zero(t, status.Used)
}

func TestRefreshRateLimitedNoCache(t *testing.T) {
	prov := &mockProvider{err: &provider.Error{Provider: "mock", StatusCode: 429, Message: "too many requests"}}
	parts := newTestService(t, prov, 10, nil)

	res, err := parts.svc.Refresh(context.Background(), Request{Key: testKey("105")})
	require.NoError(t, err)

	assert.Equal(t, FailureRateLimited, res.Failure)
	assert.Nil(t, res.Payload)
	assert.Equal(t, flight.StatusUnknown, res.Status)
}

func TestRefreshProviderErrorYieldsEmptyShape(t *testing.T) {
	prov := &mockProvider{err: &provider.Error{Provider: "mock", StatusCode: 500, Message: "boom"}}
	parts := newTestService(t, prov, 10, nil)

	res, err := parts.svc.Refresh(context.Background(), Request{Key: testKey("106")})
	require.NoError(t, err)

	assert.Equal(t, FailureProvider, res.Failure)
	assert.Nil(t, res.Payload)
	assert.Zero(t, res.Progress.Percent)
	assert.Equal(t, flight.StatusUnknown, res.Status)
}

func TestRefreshNotFoundIsNotAFailure(t *testing.T) {
	prov := &mockProvider{err: provider.ErrNotFound}
	parts := newTestService(t, prov, 10, nil)

	res, err := parts.svc.Refresh(context.Background(), Request{Key: testKey("107")})
	require.NoError(t, err)

	assert.Equal(t, FailureNone, res.Failure)
	assert.Nil(t, res.Payload)
	assert.Equal(t, flight.StatusUnknown, res.Status)
}

func TestRefreshLandedPayload(t *testing.T) {
	now := time.Now()
	prov := &mockProvider{payload: &provider.FlightStatus{
		ActDep: tp(now.Add(-5 * time.Hour)),
		ActArr: tp(now.Add(-20 * time.Minute)),
		Status: "ARRIVED",
	}}
	parts := newTestService(t, prov, 10, nil)

	res, err := parts.svc.Refresh(context.Background(), Request{Key: testKey("108")})
	require.NoError(t, err)

	assert.Equal(t, flight.StatusLanded, res.Status)
	assert.Equal(t, 100, res.Progress.Percent)
	assert.True(t, res.Landed)
}

func TestRefreshScheduledPayload(t *testing.T) {
	now := time.Now()
	prov := &mockProvider{payload: &provider.FlightStatus{
		SchedDep: tp(now.Add(4 * time.Hour)),
		SchedArr: tp(now.Add(9 * time.Hour)),
		Status:   "SCHEDULED",
	}}
	parts := newTestService(t, prov, 10, nil)

	res, err := parts.svc.Refresh(context.Background(), Request{Key: testKey("109")})
	require.NoError(t, err)

	assert.Equal(t, flight.StatusScheduled, res.Status)
	assert.Zero(t, res.Progress.Percent)
	assert.False(t, res.Departed)
}

func TestRefreshPositionPath(t *testing.T) {
	now := time.Now()
	prov := &mockProvider{payload: &provider.FlightStatus{
		ActDep: tp(now.Add(-3 * time.Hour)),
	}}
	positions := &stubPositions{pos: &flight.Position{
		Lat: 39.5, Lon: -98.35,
		AltFt: fp(35000), GSKnots: fp(460),
		Timestamp: now.Add(-time.Minute),
	}}
	parts := newTestService(t, prov, 10, positions)

	jfk := flight.Airport{IATA: "JFK", Lat: 40.6413, Lon: -73.7781}
	lax := flight.Airport{IATA: "LAX", Lat: 33.9416, Lon: -118.4085}
	res, err := parts.svc.Refresh(context.Background(), Request{
		Key:         testKey("110"),
		Origin:      &jfk,
		Destination: &lax,
	})
	require.NoError(t, err)

	assert.Equal(t, flight.StatusEnroute, res.Status)
	assert.Equal(t, flight.BasisPosition, res.Progress.Basis)
	assert.Greater(t, res.Progress.Percent, 0)
	assert.Greater(t, res.Progress.TotalNM, 2000.0)
}

func TestRefreshManyPreservesOrder(t *testing.T) {
	now := time.Now()
	prov := &mockProvider{payload: &provider.FlightStatus{
		ActDep:   tp(now.Add(-time.Hour)),
		SchedArr: tp(now.Add(time.Hour)),
	}}
	parts := newTestService(t, prov, 100, nil)

	reqs := []Request{
		{Key: testKey("201")},
		{Key: testKey("202")},
		{Key: testKey("203")},
		{Key: testKey("204")},
	}
	items := parts.svc.RefreshMany(context.Background(), reqs)

	require.Len(t, items, 4)
	for i, item := range items {
		assert.Equal(t, i, item.Index)
		require.NoError(t, item.Err)
		require.NotNil(t, item.Result)
		assert.Equal(t, reqs[i].Key, item.Result.Key)
	}
	assert.Equal(t, 4, prov.callCount())
}

func TestRefreshManyCancelledContext(t *testing.T) {
	prov := &mockProvider{payload: &provider.FlightStatus{}}
	parts := newTestService(t, prov, 100, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := parts.svc.RefreshMany(ctx, []Request{{Key: testKey("301")}, {Key: testKey("302")}})

	require.Len(t, items, 2)
	for _, item := range items {
		assert.Error(t, item.Err)
		assert.Nil(t, item.Result)
	}
	assert.Zero(t, prov.callCount())
}
