package cache

import "time"

// TTL policy tiers. Freshness is front-loaded around the moments state
// actually changes (takeoff, landing) and quiescent periods are cached
// aggressively, which directly reduces calls against the monthly quota.
const (
	ttlLanded = 6 * time.Hour

	ttlPreDepUnknown = 1 * time.Hour
	ttlPreDepFar     = 4 * time.Hour
	ttlPreDep6h      = 2 * time.Hour
	ttlPreDep3h      = 1 * time.Hour
	ttlPreDep1h      = 30 * time.Minute
	ttlPreDepSoon    = 10 * time.Minute

	ttlAirUnknown = 30 * time.Minute
	ttlAirFar     = 1 * time.Hour
	ttlAir3h      = 30 * time.Minute
	ttlAir1h      = 15 * time.Minute
	ttlAir30m     = 10 * time.Minute
	ttlAirSoon    = 5 * time.Minute
)

// ComputeTTL picks the cache lifetime for a flight from its
// departed/landed flags and reference departure/arrival times.
func ComputeTTL(departed, landed bool, dep, arr *time.Time, now time.Time) time.Duration {
	if landed {
		return ttlLanded
	}

	if !departed {
		if dep == nil {
			return ttlPreDepUnknown
		}
		untilDep := dep.Sub(now).Minutes()
		switch {
		case untilDep > 12*60:
			return ttlPreDepFar
		case untilDep > 6*60:
			return ttlPreDep6h
		case untilDep > 3*60:
			return ttlPreDep3h
		case untilDep > 60:
			return ttlPreDep1h
		default:
			return ttlPreDepSoon
		}
	}

	// Departed, not landed.
	if arr == nil {
		return ttlAirUnknown
	}
	untilArr := arr.Sub(now).Minutes()
	switch {
	case untilArr > 6*60:
		return ttlAirFar
	case untilArr > 3*60:
		return ttlAir3h
	case untilArr > 60:
		return ttlAir1h
	case untilArr > 30:
		return ttlAir30m
	default:
		return ttlAirSoon
	}
}
