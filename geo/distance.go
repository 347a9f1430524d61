package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// DistanceMeters returns the great-circle distance between two points.
// Non-finite coordinates propagate as NaN; callers guard, not this function.
func DistanceMeters(a, b Point) float64 {
	if !finite(a) || !finite(b) {
		return math.NaN()
	}
	angle := s2.LatLngFromDegrees(a.Lat, a.Lon).Distance(s2.LatLngFromDegrees(b.Lat, b.Lon))
	return angle.Radians() * EarthRadiusMeters
}

func finite(p Point) bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0)
}

// Valid reports whether the point is finite and within WGS84 bounds.
func (p Point) Valid() bool {
	return finite(p) && p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}
