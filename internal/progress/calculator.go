package progress

import (
	"math"
	"time"

	"github.com/mlenko/flightpath/internal/flight"
	"github.com/mlenko/flightpath/internal/geo"
	"github.com/mlenko/flightpath/pkg/logger"
)

// Calculator derives ProgressMeta and a canonical status for a flight from
// live position or time interpolation, running the result through the
// anti-regression smoother.
type Calculator struct {
	config   Config
	smoother *Smoother
	logger   *logger.Logger
}

// NewCalculator creates a progress calculator with its own smoothing state.
func NewCalculator(config Config, log *logger.Logger) *Calculator {
	return &Calculator{
		config:   config,
		smoother: NewSmoother(config.SmoothingWindow),
		logger:   log.Named("progress"),
	}
}

// Compute fills f.Progress and returns the derived status. The percent is
// smoothed per flight identity; status is derived from the smoothed metrics
// and a landed resolution forces percent to 100.
func (c *Calculator) Compute(f *flight.Flight, now time.Time) flight.Status {
	meta := c.computeRaw(f, now)

	landedHint := f.Actuals != nil && f.Actuals.Arrival != nil
	meta.Percent = c.smoother.Apply(f.SmoothingKey(), meta.Percent, landedHint)

	f.Progress = meta
	status := DeriveStatus(f, meta, now, c.config)

	if status == flight.StatusLanded {
		meta.Percent = 100
		meta.TravelledNM = meta.TotalNM
		meta.RemainingNM = 0
		meta.ETEMinutes = nil
		meta.ETA = nil
		c.smoother.Apply(f.SmoothingKey(), 100, true)
	}

	c.logger.Debug("Computed flight progress",
		logger.String("flight", f.Key.String()),
		logger.Int("percent", meta.Percent),
		logger.String("basis", string(meta.Basis)),
		logger.String("status", string(status)))

	return status
}

// computeRaw evaluates the progress priority ladder without smoothing.
func (c *Calculator) computeRaw(f *flight.Flight, now time.Time) *flight.ProgressMeta {
	dest := f.EffectiveDestination()

	total := geo.DistanceNM(f.Origin.Lat, f.Origin.Lon, dest.Lat, dest.Lon)
	if total < c.config.ShuttleRouteMinNM {
		// Zero-length shuttle route: percent math degenerates, force zero.
		total = 0
	}

	meta := &flight.ProgressMeta{
		TotalNM:  round1(total),
		Basis:    flight.BasisTime,
		Diverted: f.DivertedTo != nil,
	}

	if total > 0 {
		course := geo.InitialBearing(f.Origin.Lat, f.Origin.Lon, dest.Lat, dest.Lon)
		mag := geo.MagneticCourse(course, f.Origin.Lat, f.Origin.Lon, now)
		meta.CourseTrue = &course
		meta.CourseMag = &mag
	}

	pos := f.Position
	posStale := pos != nil && now.Sub(pos.Timestamp) > c.config.StalePositionMaxAge
	meta.Stale = posStale

	switch {
	case f.Actuals != nil && f.Actuals.Arrival != nil:
		meta.Percent = 100
		meta.TravelledNM = meta.TotalNM
		meta.RemainingNM = 0
		meta.Basis = flight.BasisPosition

	case pos != nil && !posStale && total > 0:
		travelled := geo.DistanceNM(f.Origin.Lat, f.Origin.Lon, pos.Lat, pos.Lon)
		if travelled > total*c.config.OvershootFactor {
			travelled = total * c.config.OvershootFactor
		}
		pct := int(math.Round(travelled / total * 100))
		if pct > 100 {
			pct = 100
		}
		remaining := total - travelled
		if remaining < 0 {
			remaining = 0
		}
		meta.Percent = pct
		meta.RemainingNM = round1(remaining)
		meta.TravelledNM = round1(meta.TotalNM - meta.RemainingNM)
		meta.Basis = flight.BasisPosition

		if pos.GSKnots != nil && *pos.GSKnots > c.config.ETEMinSpeedKts && remaining > c.config.ETEMinRemainingNM {
			eteMin := remaining / *pos.GSKnots * 60
			eta := now.Add(time.Duration(eteMin * float64(time.Minute)))
			meta.ETEMinutes = &eteMin
			meta.ETA = &eta
		}

	case f.Actuals != nil && f.Actuals.Departure != nil:
		// Departed, but no usable position: interpolate on time.
		meta.Basis = flight.BasisTime
		meta.Estimated = true

		dep := *f.Actuals.Departure
		if f.Schedule != nil && f.Schedule.Arrival != nil && f.Schedule.Arrival.After(dep) {
			frac := float64(now.Sub(dep)) / float64(f.Schedule.Arrival.Sub(dep))
			frac = clampFloat(frac, 0, 0.99)
			meta.Percent = int(math.Round(frac * 100))
		} else {
			// Airborne with no arrival estimate at all: nominal floor.
			meta.Percent = 5
		}
		fillDistancesFromPercent(meta, total)

	case f.Schedule != nil && f.Schedule.Departure != nil && f.Schedule.Arrival != nil:
		// Pre-departure or departure-unknown: schedule interpolation.
		meta.Basis = flight.BasisTime
		meta.Estimated = true

		dep, arr := *f.Schedule.Departure, *f.Schedule.Arrival
		switch {
		case now.Before(dep):
			meta.Percent = 0
		case !arr.After(dep) || !now.Before(arr):
			// Past scheduled arrival with no confirmation: hold at 99.
			meta.Percent = 99
		default:
			frac := float64(now.Sub(dep)) / float64(arr.Sub(dep))
			pct := int(math.Round(frac * 100))
			meta.Percent = clampInt(pct, 0, 99)
		}
		fillDistancesFromPercent(meta, total)

	default:
		meta.Percent = 0
		meta.RemainingNM = meta.TotalNM
	}

	return meta
}

// fillDistancesFromPercent back-fills travelled/remaining for time-derived
// percents so the travelled+remaining == total invariant holds.
func fillDistancesFromPercent(meta *flight.ProgressMeta, total float64) {
	travelled := total * float64(meta.Percent) / 100
	meta.TravelledNM = round1(travelled)
	meta.RemainingNM = round1(meta.TotalNM - meta.TravelledNM)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
