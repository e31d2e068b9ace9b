package geo

import (
	"fmt"
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusKM = 6371.0088 // IUGG mean Earth radius
	KMPerNM       = 1.852     // 1 nautical mile in kilometers
	DegToRad      = math.Pi / 180.0
)

// ValidateCoords checks that a lat/lon pair is within range. Out-of-range
// coordinates are a data-integrity error and must fail at the ingestion
// boundary rather than be clamped.
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude out of range [-90,90]: %f", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude out of range [-180,180]: %f", lon)
	}
	return nil
}

// DistanceNM returns the great-circle distance between two points in
// nautical miles using the haversine formula. Longitude deltas are
// normalized into [-180,180] first, so routes crossing the antimeridian
// return the short way around.
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	dLon := lon2 - lon1
	if dLon > 180 {
		dLon -= 360
	} else if dLon < -180 {
		dLon += 360
	}

	phi1 := lat1 * DegToRad
	phi2 := lat2 * DegToRad
	dPhi := (lat2 - lat1) * DegToRad
	dLambda := dLon * DegToRad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c / KMPerNM
}

// InitialBearing returns the initial great-circle course from point 1 to
// point 2 in degrees true, normalized to [0,360).
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * DegToRad
	phi2 := lat2 * DegToRad
	dLambda := (lon2 - lon1) * DegToRad

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	deg := math.Atan2(y, x) / DegToRad
	deg = math.Mod(deg+360, 360)
	return deg
}

// MagneticVariation returns the magnetic declination at a position and time
// (+East, -West). Returns 0 if the WMM calculation fails.
func MagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * 0.3048

	loc := egm96.NewLocationGeodetic(lat, lon, altM)
	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0.0
	}

	return mag.D()
}

// MagneticCourse converts a true course at a position into a magnetic
// course, normalized to [0,360).
func MagneticCourse(trueCourse, lat, lon float64, date time.Time) float64 {
	mc := trueCourse - MagneticVariation(lat, lon, 0, date)
	mc = math.Mod(mc+360, 360)
	return mc
}
