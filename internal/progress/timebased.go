package progress

import (
	"math"
	"time"
)

// Times is the full set of optional timestamps a schedule-only upstream can
// deliver for one flight.
type Times struct {
	SchedDep *time.Time
	SchedArr *time.Time
	EstDep   *time.Time
	EstArr   *time.Time
	ActDep   *time.Time
	ActArr   *time.Time
}

// TimeResult is the position-free progress derivation.
type TimeResult struct {
	Percent    int
	Departed   bool
	Landed     bool
	ETEMinutes float64
}

// firstPresent resolves an ordered priority chain of optional timestamps.
// Keeping the chain explicit keeps the precedence auditable.
func firstPresent(candidates ...*time.Time) *time.Time {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

// DepartureRef returns the reference departure: actual, else estimated,
// else scheduled.
func (t Times) DepartureRef() *time.Time {
	return firstPresent(t.ActDep, t.EstDep, t.SchedDep)
}

// ArrivalRef returns the reference arrival: actual, else estimated, else
// scheduled.
func (t Times) ArrivalRef() *time.Time {
	return firstPresent(t.ActArr, t.EstArr, t.SchedArr)
}

// ComputeTimeProgress derives percent/departed/landed purely from
// timestamps. Used when no live position feed is configured.
//
// Unlike the position path this applies no anti-regression smoothing by
// default: schedule revisions may legally move the percent backward. See
// Config.TimeFallbackMonotonic for the opt-in guard.
func ComputeTimeProgress(t Times, now time.Time) TimeResult {
	res := TimeResult{
		Departed: t.ActDep != nil,
		Landed:   t.ActArr != nil,
	}

	depRef := t.DepartureRef()
	arrRef := t.ArrivalRef()

	if depRef == nil || arrRef == nil {
		if res.Landed {
			res.Percent = 100
		}
		return res
	}

	if !arrRef.After(*depRef) {
		// Bad data guard: arrival at or before departure.
		if res.Landed {
			res.Percent = 100
		}
		return res
	}

	switch {
	case res.Landed:
		res.Percent = 100
	case !res.Departed && now.Before(*depRef):
		res.Percent = 0
	default:
		frac := float64(now.Sub(*depRef)) / float64(arrRef.Sub(*depRef))
		res.Percent = clampInt(int(math.Round(frac*100)), 0, 100)
	}

	if !res.Landed {
		if ete := arrRef.Sub(now).Minutes(); ete > 0 {
			res.ETEMinutes = ete
		}
	}

	return res
}
