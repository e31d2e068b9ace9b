package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mlenko/flightpath/internal/flight"
	"github.com/mlenko/flightpath/pkg/logger"
)

// AeroDataBoxConfig configures the AeroDataBox (RapidAPI) integration.
type AeroDataBoxConfig struct {
	BaseURL           string
	APIHost           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
}

// AeroDataBox fetches flight status from the AeroDataBox API via RapidAPI.
// A local rate limiter (burst 1) keeps concurrent bulk refreshes from
// stampeding the upstream inside one process; the monthly budget is
// enforced separately by the quota governor.
type AeroDataBox struct {
	config     AeroDataBoxConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewAeroDataBox creates the AeroDataBox provider client.
func NewAeroDataBox(config AeroDataBoxConfig, log *logger.Logger) *AeroDataBox {
	if config.BaseURL == "" {
		config.BaseURL = "https://aerodatabox.p.rapidapi.com"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RequestsPerMinute == 0 {
		config.RequestsPerMinute = 10
	}

	perSecond := float64(config.RequestsPerMinute) / 60.0

	return &AeroDataBox{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:     log.Named("provider-adb"),
	}
}

// Name implements Provider.
func (a *AeroDataBox) Name() string { return "aerodatabox" }

// adbLeg is the wire shape of one flight leg in the AeroDataBox response.
type adbLeg struct {
	Status    string `json:"status"`
	Departure struct {
		Airport struct {
			IATA string `json:"iata"`
		} `json:"airport"`
		ScheduledTime adbTime `json:"scheduledTime"`
		RevisedTime   adbTime `json:"revisedTime"`
		RunwayTime    adbTime `json:"runwayTime"`
		Gate          string  `json:"gate"`
		Terminal      string  `json:"terminal"`
	} `json:"departure"`
	Arrival struct {
		Airport struct {
			IATA string `json:"iata"`
		} `json:"airport"`
		ScheduledTime adbTime `json:"scheduledTime"`
		RevisedTime   adbTime `json:"revisedTime"`
		RunwayTime    adbTime `json:"runwayTime"`
		Gate          string  `json:"gate"`
		Terminal      string  `json:"terminal"`
	} `json:"arrival"`
	Aircraft struct {
		Model string `json:"model"`
	} `json:"aircraft"`
}

type adbTime struct {
	UTC string `json:"utc"`
}

// Time parses the AeroDataBox UTC timestamp format. Returns nil on absent
// or malformed values; bad timestamps are treated as absence, not a crash.
func (t adbTime) Time() *time.Time {
	if t.UTC == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04Z", time.RFC3339} {
		if parsed, err := time.Parse(layout, t.UTC); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}

// FetchStatus implements Provider.
func (a *AeroDataBox) FetchStatus(ctx context.Context, key flight.Key) (*FlightStatus, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &Error{Provider: a.Name(), Message: fmt.Sprintf("rate limiter wait: %v", err)}
	}

	urlStr := fmt.Sprintf("%s/flights/number/%s%s/%s?withAircraftImage=false&withLocation=false",
		a.config.BaseURL, key.Carrier, key.Number, key.ServiceDate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-rapidapi-host", a.config.APIHost)
	req.Header.Set("x-rapidapi-key", a.config.APIKey)

	a.logger.Debug("Fetching flight status",
		logger.String("flight", key.String()),
		logger.String("url", urlStr))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Provider: a.Name(), Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{
			Provider:   a.Name(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var legs []adbLeg
	if err := json.NewDecoder(resp.Body).Decode(&legs); err != nil {
		return nil, &Error{Provider: a.Name(), Message: fmt.Sprintf("failed to parse JSON: %v", err)}
	}
	if len(legs) == 0 {
		return nil, ErrNotFound
	}

	leg := pickLeg(legs, key)
	status := a.normalize(leg)

	a.logger.Debug("Fetched flight status",
		logger.String("flight", key.String()),
		logger.String("status", status.Status),
		logger.Bool("departed", status.Departed()),
		logger.Bool("landed", status.Landed()))

	return status, nil
}

// pickLeg selects the leg matching the requested origin/destination when
// the flight number covers multiple legs that day.
func pickLeg(legs []adbLeg, key flight.Key) adbLeg {
	for _, leg := range legs {
		if key.OriginIATA != "" && !strings.EqualFold(leg.Departure.Airport.IATA, key.OriginIATA) {
			continue
		}
		if key.DestIATA != "" && !strings.EqualFold(leg.Arrival.Airport.IATA, key.DestIATA) {
			continue
		}
		return leg
	}
	return legs[0]
}

// normalize maps the AeroDataBox leg into the engine DTO. Revised times map
// to estimates and runway times to actuals.
func (a *AeroDataBox) normalize(leg adbLeg) *FlightStatus {
	return &FlightStatus{
		SchedDep:     leg.Departure.ScheduledTime.Time(),
		SchedArr:     leg.Arrival.ScheduledTime.Time(),
		EstDep:       leg.Departure.RevisedTime.Time(),
		EstArr:       leg.Arrival.RevisedTime.Time(),
		ActDep:       leg.Departure.RunwayTime.Time(),
		ActArr:       leg.Arrival.RunwayTime.Time(),
		GateDep:      leg.Departure.Gate,
		GateArr:      leg.Arrival.Gate,
		TerminalDep:  leg.Departure.Terminal,
		TerminalArr:  leg.Arrival.Terminal,
		Status:       strings.ToUpper(leg.Status),
		AircraftType: leg.Aircraft.Model,
		OriginIATA:   strings.ToUpper(leg.Departure.Airport.IATA),
		DestIATA:     strings.ToUpper(leg.Arrival.Airport.IATA),
	}
}
