package progress

import "time"

// Config holds the tunable heuristics of the progress and status engine.
// The radii and thresholds have sensible defaults but are deliberately
// configuration, not constants.
type Config struct {
	// StalePositionMaxAge is how old a live position may be before the
	// position-based branches treat it as absent.
	StalePositionMaxAge time.Duration

	// ShuttleRouteMinNM: routes shorter than this are treated as
	// zero-length to avoid divide-by-near-zero noise.
	ShuttleRouteMinNM float64

	// OvershootFactor tolerates GPS overshoot near the destination:
	// travelled distance is clamped to OvershootFactor * total.
	OvershootFactor float64

	// ETE is only computed above this ground speed and outside this
	// remaining distance.
	ETEMinSpeedKts    float64
	ETEMinRemainingNM float64

	// ArrivalRadiusNM is the ground-arrival radius for the landed heuristic.
	ArrivalRadiusNM float64

	// Landed heuristic thresholds (used when no on-ground flag is present).
	LandedMaxAltFt    float64
	LandedMaxSpeedKts float64

	// Approach detection: remaining distance and altitude ceilings.
	ApproachRadiusNM float64
	ApproachMaxAltFt float64

	// SmoothingWindow is the moving-average window of the anti-regression
	// smoother.
	SmoothingWindow int

	// TimeFallbackMonotonic applies the anti-regression guard to the
	// schedule-only fallback as well. Off by default: schedule revisions
	// are allowed to move a time-derived percent backward.
	TimeFallbackMonotonic bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		StalePositionMaxAge:   5 * time.Minute,
		ShuttleRouteMinNM:     0.5,
		OvershootFactor:       1.05,
		ETEMinSpeedKts:        50,
		ETEMinRemainingNM:     1,
		ArrivalRadiusNM:       3,
		LandedMaxAltFt:        100,
		LandedMaxSpeedKts:     40,
		ApproachRadiusNM:      25,
		ApproachMaxAltFt:      10000,
		SmoothingWindow:       3,
		TimeFallbackMonotonic: false,
	}
}
