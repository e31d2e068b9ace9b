package flight

import (
	"fmt"
	"time"
)

// Status is the canonical flight status derived by the engine.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusBoarding  Status = "BOARDING"
	StatusTaxi      Status = "TAXI"
	StatusDeparted  Status = "DEPARTED"
	StatusEnroute   Status = "ENROUTE"
	StatusApproach  Status = "APPROACH"
	StatusLanded    Status = "LANDED"
	StatusDiverted  Status = "DIVERTED"
	StatusCancelled Status = "CANCELLED"
	StatusUnknown   Status = "UNKNOWN"
)

// Terminal reports whether no further transitions are expected.
// A diverted-then-landed path is still legal; DIVERTED is not terminal.
func (s Status) Terminal() bool {
	return s == StatusLanded || s == StatusCancelled
}

// Airport is immutable reference data for one end of a route.
type Airport struct {
	IATA string  `json:"iata,omitempty"`
	ICAO string  `json:"icao,omitempty"`
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Position is a single live observation of an aircraft. It is ephemeral:
// each new observation supersedes the previous one and nothing here is
// ever persisted by the engine.
type Position struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	AltFt     *float64  `json:"alt_ft,omitempty"`
	GSKnots   *float64  `json:"gs_knots,omitempty"`
	OnGround  *bool     `json:"on_ground,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Schedule holds the published departure/arrival times. Either may be absent.
type Schedule struct {
	Departure *time.Time `json:"departure,omitempty"`
	Arrival   *time.Time `json:"arrival,omitempty"`
}

// Actuals holds off-block / on-block times. An actual arrival is the
// strongest landed signal the engine recognizes.
type Actuals struct {
	Departure *time.Time `json:"departure,omitempty"`
	Arrival   *time.Time `json:"arrival,omitempty"`
}

// Flight is the engine's view of a single tracked flight. It is constructed
// fresh per refresh cycle from upstream data; long-lived flight identity
// belongs to the surrounding persistence layer, not to this engine.
type Flight struct {
	Key            Key       `json:"key"`
	Origin         Airport   `json:"origin"`
	Destination    Airport   `json:"destination"`
	DivertedTo     *Airport  `json:"diverted_to,omitempty"`
	Schedule       *Schedule `json:"schedule,omitempty"`
	Actuals        *Actuals  `json:"actuals,omitempty"`
	Position       *Position `json:"position,omitempty"`
	ProviderStatus Status    `json:"provider_status,omitempty"`

	Progress *ProgressMeta `json:"progress,omitempty"`
}

// EffectiveDestination returns the diversion target when one is set, else
// the filed destination. Diversions fully re-root the route geometry.
func (f *Flight) EffectiveDestination() Airport {
	if f.DivertedTo != nil {
		return *f.DivertedTo
	}
	return f.Destination
}

// ProgressBasis tags which input class produced a ProgressMeta.
type ProgressBasis string

const (
	BasisPosition ProgressBasis = "position"
	BasisTime     ProgressBasis = "time"
	BasisMixed    ProgressBasis = "mixed"
)

// ProgressMeta is the computed progress snapshot for a flight.
// Invariants: TravelledNM+RemainingNM == TotalNM within rounding, and
// Percent never decreases across successive computations for the same
// flight except via an explicit landed event.
type ProgressMeta struct {
	Percent     int           `json:"percent"`
	TotalNM     float64       `json:"total_nm"`
	TravelledNM float64       `json:"travelled_nm"`
	RemainingNM float64       `json:"remaining_nm"`
	ETEMinutes  *float64      `json:"ete_minutes,omitempty"`
	ETA         *time.Time    `json:"eta,omitempty"`
	Basis       ProgressBasis `json:"basis"`
	Stale       bool          `json:"stale"`
	Diverted    bool          `json:"diverted"`
	Estimated   bool          `json:"estimated"`

	// Initial great-circle course origin -> effective destination,
	// true and magnetic (WMM declination at the origin).
	CourseTrue *float64 `json:"course_true,omitempty"`
	CourseMag  *float64 `json:"course_mag,omitempty"`
}

// Key is the composite identity a progress request is keyed by.
type Key struct {
	Carrier     string `json:"carrier"`      // carrier IATA code, e.g. "AC"
	Number      string `json:"number"`       // flight number without carrier prefix
	ServiceDate string `json:"service_date"` // origin-local YYYY-MM-DD
	OriginIATA  string `json:"origin,omitempty"`
	DestIATA    string `json:"dest,omitempty"`
}

// String renders the key in its canonical cache form.
func (k Key) String() string {
	return fmt.Sprintf("%s%s:%s:%s-%s", k.Carrier, k.Number, k.ServiceDate, k.OriginIATA, k.DestIATA)
}

// SmoothingKey identifies the per-flight smoothing state. A diversion
// re-roots the geometry, so the diverted leg smooths independently.
func (f *Flight) SmoothingKey() string {
	if f.DivertedTo != nil {
		code := f.DivertedTo.IATA
		if code == "" {
			code = f.DivertedTo.ICAO
		}
		return f.Key.String() + ">" + code
	}
	return f.Key.String()
}
