package flight

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyString(t *testing.T) {
	k := Key{Carrier: "AC", Number: "8847", ServiceDate: "2026-03-14", OriginIATA: "YYZ", DestIATA: "LGA"}
	assert.Equal(t, "AC8847:2026-03-14:YYZ-LGA", k.String())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusLanded.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	// A diverted flight still lands somewhere
	assert.False(t, StatusDiverted.Terminal())
	assert.False(t, StatusEnroute.Terminal())
	assert.False(t, StatusUnknown.Terminal())
}

func TestEffectiveDestination(t *testing.T) {
	f := &Flight{
		Destination: Airport{IATA: "LGA", Lat: 40.7772, Lon: -73.8726},
	}
	assert.Equal(t, "LGA", f.EffectiveDestination().IATA)

	f.DivertedTo = &Airport{IATA: "BOS", Lat: 42.3643, Lon: -71.0052}
	assert.Equal(t, "BOS", f.EffectiveDestination().IATA)
}

func TestSmoothingKeySeparatesDivertedLeg(t *testing.T) {
	f := &Flight{Key: Key{Carrier: "AC", Number: "1", ServiceDate: "2026-03-14", OriginIATA: "YYZ", DestIATA: "LGA"}}
	base := f.SmoothingKey()

	f.DivertedTo = &Airport{IATA: "BOS"}
	assert.NotEqual(t, base, f.SmoothingKey())
	assert.Equal(t, base+">BOS", f.SmoothingKey())

	// ICAO fallback when the diversion airport has no IATA code
	f.DivertedTo = &Airport{ICAO: "KBOS"}
	assert.Equal(t, base+">KBOS", f.SmoothingKey())
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"scheduled": StatusScheduled,
		"DELAYED":   StatusScheduled,
		"Boarding":  StatusBoarding,
		"taxiing":   StatusTaxi,
		"DEPARTED":  StatusDeparted,
		"EN ROUTE":  StatusEnroute,
		"active":    StatusEnroute,
		"Approach":  StatusApproach,
		"ARRIVED":   StatusLanded,
		"landed":    StatusLanded,
		"Diverted":  StatusDiverted,
		"CANCELED":  StatusCancelled,
		"CANCELLED": StatusCancelled,
		"":          "",
		"GARBAGE":   StatusUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseStatus(in), "input %q", in)
	}
}
