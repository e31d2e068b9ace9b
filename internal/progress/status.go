package progress

import (
	"time"

	"github.com/mlenko/flightpath/internal/flight"
	"github.com/mlenko/flightpath/internal/geo"
)

// statusInput is the evidence the status rules evaluate: explicit provider
// signal, live position, actuals and schedule, plus the computed metrics.
type statusInput struct {
	flight   *flight.Flight
	meta     *flight.ProgressMeta
	now      time.Time
	config   Config
	posStale bool
}

// statusRule inspects the input and either returns a definitive status or
// declines with ok=false. Rules are evaluated in order; first opinion wins,
// so new rules can be inserted without reordering side effects.
type statusRule func(in statusInput) (flight.Status, bool)

var statusRules = []statusRule{
	ruleProviderCancelled,
	ruleProviderDivertedUnresolved,
	ruleActualArrival,
	ruleLandedHeuristic,
	ruleDiversionInProgress,
	ruleScheduled,
	ruleApproach,
	ruleEnroute,
	ruleDeparted,
	ruleProviderEcho,
}

// DeriveStatus classifies a flight into a canonical status from position,
// actuals, schedule and explicit provider signals. meta carries the
// (smoothed) metrics of the current computation pass.
func DeriveStatus(f *flight.Flight, meta *flight.ProgressMeta, now time.Time, config Config) flight.Status {
	in := statusInput{
		flight: f,
		meta:   meta,
		now:    now,
		config: config,
	}
	if f.Position != nil {
		in.posStale = now.Sub(f.Position.Timestamp) > config.StalePositionMaxAge
	}

	for _, rule := range statusRules {
		if status, ok := rule(in); ok {
			return status
		}
	}
	return flight.StatusUnknown
}

func ruleProviderCancelled(in statusInput) (flight.Status, bool) {
	if in.flight.ProviderStatus == flight.StatusCancelled {
		return flight.StatusCancelled, true
	}
	return "", false
}

// An explicit DIVERTED signal before the diversion target is known.
func ruleProviderDivertedUnresolved(in statusInput) (flight.Status, bool) {
	if in.flight.ProviderStatus == flight.StatusDiverted && in.flight.DivertedTo == nil {
		return flight.StatusDiverted, true
	}
	return "", false
}

func ruleActualArrival(in statusInput) (flight.Status, bool) {
	if in.flight.Actuals != nil && in.flight.Actuals.Arrival != nil {
		return flight.StatusLanded, true
	}
	return "", false
}

// ruleLandedHeuristic: on or near the ground within the arrival radius of
// the effective destination.
func ruleLandedHeuristic(in statusInput) (flight.Status, bool) {
	if landedAtEffectiveDestination(in) {
		return flight.StatusLanded, true
	}
	return "", false
}

func landedAtEffectiveDestination(in statusInput) bool {
	pos := in.flight.Position
	if pos == nil {
		return false
	}

	dest := in.flight.EffectiveDestination()
	if geo.DistanceNM(pos.Lat, pos.Lon, dest.Lat, dest.Lon) > in.config.ArrivalRadiusNM {
		return false
	}

	if pos.OnGround != nil && *pos.OnGround {
		return true
	}
	return pos.AltFt != nil && *pos.AltFt < in.config.LandedMaxAltFt &&
		pos.GSKnots != nil && *pos.GSKnots < in.config.LandedMaxSpeedKts
}

func ruleDiversionInProgress(in statusInput) (flight.Status, bool) {
	if in.flight.DivertedTo == nil {
		return "", false
	}
	// Landed-at-diversion is handled by the rule above; anything else on a
	// re-rooted route is a diversion in progress.
	return flight.StatusDiverted, true
}

func ruleScheduled(in statusInput) (flight.Status, bool) {
	f := in.flight
	departed := f.Actuals != nil && f.Actuals.Departure != nil
	if departed || f.Position != nil {
		return "", false
	}

	if f.Schedule != nil && f.Schedule.Departure != nil && f.Schedule.Departure.After(in.now) {
		return flight.StatusScheduled, true
	}
	if f.ProviderStatus == flight.StatusScheduled || f.ProviderStatus == flight.StatusBoarding {
		return flight.StatusScheduled, true
	}
	return "", false
}

func ruleApproach(in statusInput) (flight.Status, bool) {
	pos := in.flight.Position
	if pos == nil || in.posStale {
		return "", false
	}
	if in.meta.RemainingNM <= in.config.ApproachRadiusNM &&
		pos.AltFt != nil && *pos.AltFt < in.config.ApproachMaxAltFt {
		return flight.StatusApproach, true
	}
	return "", false
}

func ruleEnroute(in statusInput) (flight.Status, bool) {
	if in.flight.Position != nil && !in.posStale {
		return flight.StatusEnroute, true
	}
	return "", false
}

// ruleDeparted: time-based knowledge only, the position feed is stale or
// absent.
func ruleDeparted(in statusInput) (flight.Status, bool) {
	if in.flight.Actuals != nil && in.flight.Actuals.Departure != nil {
		return flight.StatusDeparted, true
	}
	return "", false
}

func ruleProviderEcho(in statusInput) (flight.Status, bool) {
	if in.flight.ProviderStatus != "" {
		return in.flight.ProviderStatus, true
	}
	return "", false
}
