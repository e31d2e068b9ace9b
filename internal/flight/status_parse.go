package flight

import "strings"

// ParseStatus maps an upstream provider status string onto the canonical
// status set. Unrecognized strings map to UNKNOWN; upstream wording varies
// wildly between providers.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SCHEDULED", "EXPECTED", "CHECKIN", "CHECK-IN", "DELAYED":
		return StatusScheduled
	case "BOARDING", "GATECLOSED", "GATE CLOSED":
		return StatusBoarding
	case "TAXI", "TAXIING":
		return StatusTaxi
	case "DEPARTED", "TAKEOFF":
		return StatusDeparted
	case "ENROUTE", "EN ROUTE", "EN-ROUTE", "AIRBORNE", "ACTIVE":
		return StatusEnroute
	case "APPROACH", "APPROACHING":
		return StatusApproach
	case "LANDED", "ARRIVED":
		return StatusLanded
	case "DIVERTED":
		return StatusDiverted
	case "CANCELLED", "CANCELED":
		return StatusCancelled
	case "":
		return ""
	default:
		return StatusUnknown
	}
}
