package geo

import (
	"math"
	"testing"
)

func TestDistanceMeters(t *testing.T) {
	testCases := []struct {
		name      string
		a         Point
		b         Point
		expected  float64
		tolerance float64
	}{
		{
			name:      "Same point",
			a:         Point{Lat: 14.5995, Lon: 120.9842},
			b:         Point{Lat: 14.5995, Lon: 120.9842},
			expected:  0,
			tolerance: 0.001,
		},
		{
			name: "One ten-thousandth degree of latitude",
			a:    Point{Lat: 14.5995, Lon: 120.9842},
			b:    Point{Lat: 14.5996, Lon: 120.9842},
			// 1 degree of latitude on a 6371km sphere is ~111,194.9 m
			expected:  11.12,
			tolerance: 0.05,
		},
		{
			name:      "Quarter circumference, equator to pole",
			a:         Point{Lat: 0, Lon: 0},
			b:         Point{Lat: 90, Lon: 0},
			expected:  math.Pi * EarthRadiusMeters / 2,
			tolerance: 1,
		},
		{
			name:      "Antipodal points across the date line",
			a:         Point{Lat: 0, Lon: 0},
			b:         Point{Lat: 0, Lon: 180},
			expected:  math.Pi * EarthRadiusMeters,
			tolerance: 1,
		},
	}

	for _, testCase := range testCases {
		got := DistanceMeters(testCase.a, testCase.b)
		if math.Abs(got-testCase.expected) > testCase.tolerance {
			t.Errorf("%s: expected %.3f m, got %.3f m", testCase.name, testCase.expected, got)
		}

		// Distance is symmetric.
		back := DistanceMeters(testCase.b, testCase.a)
		if math.Abs(got-back) > 1e-9 {
			t.Errorf("%s: asymmetric distance %.9f vs %.9f", testCase.name, got, back)
		}
	}
}

func TestDistanceMetersNonFinite(t *testing.T) {
	testCases := []struct {
		name string
		a    Point
		b    Point
	}{
		{name: "NaN latitude", a: Point{Lat: math.NaN(), Lon: 0}, b: Point{Lat: 0, Lon: 0}},
		{name: "NaN longitude", a: Point{Lat: 0, Lon: 0}, b: Point{Lat: 0, Lon: math.NaN()}},
		{name: "Infinite latitude", a: Point{Lat: math.Inf(1), Lon: 0}, b: Point{Lat: 0, Lon: 0}},
	}

	for _, testCase := range testCases {
		if got := DistanceMeters(testCase.a, testCase.b); !math.IsNaN(got) {
			t.Errorf("%s: expected NaN, got %f", testCase.name, got)
		}
	}
}

func TestPointValid(t *testing.T) {
	testCases := []struct {
		name  string
		p     Point
		valid bool
	}{
		{name: "Metro Manila", p: Point{Lat: 14.5995, Lon: 120.9842}, valid: true},
		{name: "Boundary north pole", p: Point{Lat: 90, Lon: 0}, valid: true},
		{name: "Boundary date line", p: Point{Lat: 0, Lon: -180}, valid: true},
		{name: "Latitude out of range", p: Point{Lat: 90.001, Lon: 0}, valid: false},
		{name: "Longitude out of range", p: Point{Lat: 0, Lon: 180.5}, valid: false},
		{name: "NaN", p: Point{Lat: math.NaN(), Lon: 0}, valid: false},
	}

	for _, testCase := range testCases {
		if got := testCase.p.Valid(); got != testCase.valid {
			t.Errorf("%s: expected valid=%v, got %v", testCase.name, testCase.valid, got)
		}
	}
}
