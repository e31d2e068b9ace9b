// Package refresh implements the per-request protocol that ties the TTL
// cache, the quota governor and the upstream provider together, then runs
// the progress and status derivation on whatever payload was resolved.
package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/mlenko/flightpath/internal/cache"
	"github.com/mlenko/flightpath/internal/flight"
	"github.com/mlenko/flightpath/internal/progress"
	"github.com/mlenko/flightpath/internal/provider"
	"github.com/mlenko/flightpath/internal/quota"
	"github.com/mlenko/flightpath/pkg/logger"
)

// Failure classifies a degraded (but still well-formed) refresh result.
type Failure string

const (
	FailureNone          Failure = ""
	FailureQuotaExceeded Failure = "quota_exceeded"
	FailureRateLimited   Failure = "rate_limited"
	FailureProvider      Failure = "provider_error"
)

// PositionSource is an optional live position feed. When configured, the
// position-based progress path is used instead of the time fallback.
type PositionSource interface {
	Current(ctx context.Context, key flight.Key) (*flight.Position, error)
}

// AirportResolver resolves airport codes into reference data with
// coordinates.
type AirportResolver interface {
	LookupIATA(code string) (flight.Airport, bool)
}

// CallAuditor records successful upstream calls for the ops surface.
type CallAuditor interface {
	LogCall(providerName, flightKey string, at time.Time) error
}

// Config holds the orchestrator tunables.
type Config struct {
	ProviderTimeout time.Duration
	Workers         int // bounded concurrency for bulk refresh
}

// Request identifies one flight-progress refresh.
type Request struct {
	Key         flight.Key
	Origin      *flight.Airport // optional; resolved from IATA when absent
	Destination *flight.Airport
	DivertedTo  *flight.Airport
}

// Result is the emitted refresh outcome. Every failure path still resolves
// to either cached data, an explicit empty-progress shape, or an explicit
// quota payload; callers never see a raw provider exception.
type Result struct {
	Key         flight.Key             `json:"key"`
	Status      flight.Status          `json:"status"`
	Progress    *flight.ProgressMeta   `json:"progress"`
	Departed    bool                   `json:"departed"`
	Landed      bool                   `json:"landed"`
	Payload     *provider.FlightStatus `json:"payload,omitempty"`
	CacheServed bool                   `json:"cache_served"`
	Failure     Failure                `json:"failure,omitempty"`
	Quota       *quota.Status          `json:"quota,omitempty"`
}

// Service is the refresh orchestrator.
type Service struct {
	cache        *cache.Cache
	governor     *quota.Governor
	provider     provider.Provider
	positions    PositionSource // nil when no live feed is configured
	airports     AirportResolver
	calc         *progress.Calculator
	timeSmoother *progress.Smoother // only consulted when the time-fallback guard is on
	progressCfg  progress.Config
	config       Config
	auditor      CallAuditor
	logger       *logger.Logger
	now          func() time.Time
}

// NewService wires the orchestrator. positions and auditor may be nil.
func NewService(
	c *cache.Cache,
	governor *quota.Governor,
	prov provider.Provider,
	positions PositionSource,
	airports AirportResolver,
	progressCfg progress.Config,
	config Config,
	auditor CallAuditor,
	log *logger.Logger,
) *Service {
	if config.ProviderTimeout == 0 {
		config.ProviderTimeout = 10 * time.Second
	}
	if config.Workers < 1 {
		config.Workers = 5
	}

	return &Service{
		cache:        c,
		governor:     governor,
		provider:     prov,
		positions:    positions,
		airports:     airports,
		calc:         progress.NewCalculator(progressCfg, log),
		timeSmoother: progress.NewSmoother(progressCfg.SmoothingWindow),
		progressCfg:  progressCfg,
		config:       config,
		auditor:      auditor,
		logger:       log.Named("refresh-svc"),
		now:          time.Now,
	}
}

// Refresh resolves a flight's current progress and status, consulting the
// cache, the quota governor and at most one upstream attempt.
func (s *Service) Refresh(ctx context.Context, req Request) (*Result, error) {
	now := s.now()
	key := req.Key.String()

	payload, cacheServed, failure, quotaStatus, err := s.resolvePayload(ctx, req, now)
	if err != nil {
		return nil, err
	}

	result := s.compute(ctx, req, payload, now)
	result.CacheServed = cacheServed
	result.Failure = failure
	result.Quota = quotaStatus

	s.logger.Debug("Refresh complete",
		logger.String("flight", key),
		logger.String("status", string(result.Status)),
		logger.Int("percent", result.Progress.Percent),
		logger.Bool("cache_served", cacheServed),
		logger.String("failure", string(failure)))

	return result, nil
}

// resolvePayload runs the cache/quota/provider protocol. The returned
// payload may be nil (data absence); failure classifies degraded paths.
func (s *Service) resolvePayload(ctx context.Context, req Request, now time.Time) (*provider.FlightStatus, bool, Failure, *quota.Status, error) {
	key := req.Key.String()

	entry, cached := s.cache.Get(key)
	if cached && !entry.Expired(now) {
		return entry.Status, true, FailureNone, nil, nil
	}

	canCall, err := s.governor.CanMakeCall()
	if err != nil {
		return nil, false, FailureNone, nil, err
	}

	if !canCall {
		status, serr := s.governor.Status()
		if serr != nil {
			return nil, false, FailureNone, nil, serr
		}
		if cached {
			// Stale-while-blocked: an expired entry beats fabricated data.
			s.logger.Info("Quota exhausted, serving stale cache entry",
				logger.String("flight", key),
				logger.Time("fetched_at", entry.FetchedAt))
			return entry.Status, true, FailureNone, &status, nil
		}
		s.logger.Warn("Quota exhausted with no cached entry",
			logger.String("flight", key),
			logger.Int("used", status.Used))
		return nil, false, FailureQuotaExceeded, &status, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()

	payload, err := s.provider.FetchStatus(callCtx, req.Key)
	switch {
	case err == nil:
		if rerr := s.governor.RecordCall(); rerr != nil {
			s.logger.Error("Failed to record quota call", logger.Error(rerr))
		}
		if s.auditor != nil {
			if aerr := s.auditor.LogCall(s.provider.Name(), key, now); aerr != nil {
				s.logger.Warn("Failed to audit provider call", logger.Error(aerr))
			}
		}
		ttl := cache.ComputeTTL(payload.Departed(), payload.Landed(), payload.DepartureRef(), payload.ArrivalRef(), now)
		s.cache.Set(key, payload, ttl, now)
		return payload, false, FailureNone, nil, nil

	case errors.Is(err, provider.ErrNotFound):
		// Data absence is recoverable locally; zero-progress shape.
		s.logger.Debug("Provider has no record of flight", logger.String("flight", key))
		return nil, false, FailureNone, nil, nil

	case provider.IsRateLimited(err):
		if cached {
			s.logger.Warn("Provider rate-limited, serving stale cache entry",
				logger.String("flight", key))
			return entry.Status, true, FailureRateLimited, nil, nil
		}
		s.logger.Warn("Provider rate-limited with no cached entry",
			logger.String("flight", key))
		return nil, false, FailureRateLimited, nil, nil

	default:
		// Network/HTTP errors and timeouts: no retry loop here, cache TTL
		// re-attempts naturally on the next client poll.
		if cached {
			s.logger.Warn("Provider error, serving stale cache entry",
				logger.String("flight", key),
				logger.Error(err))
			return entry.Status, true, FailureProvider, nil, nil
		}
		s.logger.Warn("Provider error with no cached entry",
			logger.String("flight", key),
			logger.Error(err))
		return nil, false, FailureProvider, nil, nil
	}
}

// compute runs the progress calculation and status derivation on whatever
// payload was resolved, then applies the final status normalization.
func (s *Service) compute(ctx context.Context, req Request, payload *provider.FlightStatus, now time.Time) *Result {
	f := s.buildFlight(req, payload)

	var pos *flight.Position
	if s.positions != nil {
		p, err := s.positions.Current(ctx, req.Key)
		if err != nil {
			s.logger.Debug("Position feed lookup failed",
				logger.String("flight", req.Key.String()),
				logger.Error(err))
		} else {
			pos = p
		}
	}
	f.Position = pos

	// The position-based calculator needs real route geometry; without a
	// configured feed or without coordinates, the time fallback applies.
	var status flight.Status
	if s.positions != nil && s.hasRoute(f) {
		status = s.calc.Compute(f, now)
	} else {
		status = s.computeTimeBased(f, payload, now)
	}

	departed := f.Actuals != nil && f.Actuals.Departure != nil
	landed := f.Actuals != nil && f.Actuals.Arrival != nil

	status = normalizeStatus(status, departed, landed)
	if status == flight.StatusLanded {
		f.Progress.Percent = 100
		f.Progress.TravelledNM = f.Progress.TotalNM
		f.Progress.RemainingNM = 0
		landed = true
	}

	return &Result{
		Key:      req.Key,
		Status:   status,
		Progress: f.Progress,
		Departed: departed,
		Landed:   landed,
		Payload:  payload,
	}
}

// buildFlight assembles the engine view of the flight from the request and
// the resolved payload.
func (s *Service) buildFlight(req Request, payload *provider.FlightStatus) *flight.Flight {
	f := &flight.Flight{
		Key:        req.Key,
		DivertedTo: req.DivertedTo,
	}

	if req.Origin != nil {
		f.Origin = *req.Origin
	} else if a, ok := s.resolveAirport(req.Key.OriginIATA, payload); ok {
		f.Origin = a
	}
	if req.Destination != nil {
		f.Destination = *req.Destination
	} else if a, ok := s.resolveDestAirport(req.Key.DestIATA, payload); ok {
		f.Destination = a
	}

	if payload != nil {
		f.Schedule = &flight.Schedule{
			Departure: firstTime(payload.EstDep, payload.SchedDep),
			Arrival:   firstTime(payload.EstArr, payload.SchedArr),
		}
		f.Actuals = &flight.Actuals{
			Departure: payload.ActDep,
			Arrival:   payload.ActArr,
		}
		f.ProviderStatus = flight.ParseStatus(payload.Status)
	}

	return f
}

func (s *Service) resolveAirport(iata string, payload *provider.FlightStatus) (flight.Airport, bool) {
	if iata == "" && payload != nil {
		iata = payload.OriginIATA
	}
	if iata == "" || s.airports == nil {
		return flight.Airport{}, false
	}
	return s.airports.LookupIATA(iata)
}

func (s *Service) resolveDestAirport(iata string, payload *provider.FlightStatus) (flight.Airport, bool) {
	if iata == "" && payload != nil {
		iata = payload.DestIATA
	}
	if iata == "" || s.airports == nil {
		return flight.Airport{}, false
	}
	return s.airports.LookupIATA(iata)
}

// hasRoute reports whether both route endpoints carry real coordinates.
func (s *Service) hasRoute(f *flight.Flight) bool {
	dest := f.EffectiveDestination()
	return (f.Origin.Lat != 0 || f.Origin.Lon != 0) && (dest.Lat != 0 || dest.Lon != 0)
}

// computeTimeBased runs the position-free fallback and derives status from
// the resulting metrics.
func (s *Service) computeTimeBased(f *flight.Flight, payload *provider.FlightStatus, now time.Time) flight.Status {
	var times progress.Times
	if payload != nil {
		times = progress.Times{
			SchedDep: payload.SchedDep,
			SchedArr: payload.SchedArr,
			EstDep:   payload.EstDep,
			EstArr:   payload.EstArr,
			ActDep:   payload.ActDep,
			ActArr:   payload.ActArr,
		}
	} else {
		if f.Schedule != nil {
			times.SchedDep = f.Schedule.Departure
			times.SchedArr = f.Schedule.Arrival
		}
		if f.Actuals != nil {
			times.ActDep = f.Actuals.Departure
			times.ActArr = f.Actuals.Arrival
		}
	}

	res := progress.ComputeTimeProgress(times, now)
	if s.progressCfg.TimeFallbackMonotonic {
		res.Percent = s.timeSmoother.Apply(f.SmoothingKey(), res.Percent, res.Landed)
	}

	meta := &flight.ProgressMeta{
		Percent:   res.Percent,
		Basis:     flight.BasisTime,
		Estimated: !res.Landed,
		Diverted:  f.DivertedTo != nil,
	}
	if !res.Landed && res.ETEMinutes > 0 {
		ete := res.ETEMinutes
		eta := now.Add(time.Duration(ete * float64(time.Minute)))
		meta.ETEMinutes = &ete
		meta.ETA = &eta
	}
	f.Progress = meta

	return progress.DeriveStatus(f, meta, now, s.progressCfg)
}

// normalizeStatus reconciles the derived status with the actual timestamps
// that arrived in the same payload; upstream status strings are often stale
// relative to those. Geometry-derived states (APPROACH, DIVERTED) are
// already stronger evidence and are left alone.
func normalizeStatus(status flight.Status, departed, landed bool) flight.Status {
	switch {
	case landed:
		return flight.StatusLanded
	case departed && (status == flight.StatusScheduled || status == flight.StatusBoarding):
		return flight.StatusDeparted
	case departed && (status == flight.StatusUnknown || status == flight.StatusTaxi):
		return flight.StatusEnroute
	default:
		return status
	}
}

// firstTime returns the first non-nil timestamp.
func firstTime(candidates ...*time.Time) *time.Time {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
