package workflow

import (
	"testing"

	"infrasee/geo"
	"infrasee/models"
)

// ~5.5 m and ~111 m of latitude at any longitude.
const (
	degFiveMeters    = 0.00005
	degHundredMeters = 0.001
)

func nearby(seq int64, lat, lon float64, t models.InfraType, s models.Status) NearbyReport {
	return NearbyReport{Seq: seq, Point: geo.Point{Lat: lat, Lon: lon}, InfraType: t, Status: s}
}

func TestCheckDuplicate(t *testing.T) {
	policy := DuplicatePolicy{RadiusMeters: 10, MaxNearby: 3}
	base := geo.Point{Lat: 14.5995, Lon: 120.9842}
	candidate := Candidate{Point: base, InfraType: models.InfraPower}

	testCases := []struct {
		name     string
		existing []NearbyReport

		allowed bool
		count   int
	}{
		{
			name:     "No existing reports",
			existing: nil,
			allowed:  true,
			count:    0,
		},
		{
			name: "Two unresolved within radius still allowed",
			existing: []NearbyReport{
				nearby(1, base.Lat+degFiveMeters, base.Lon, models.InfraPower, models.StatusUnassigned),
				nearby(2, base.Lat-degFiveMeters, base.Lon, models.InfraPower, models.StatusPending),
			},
			allowed: true,
			count:   2,
		},
		{
			name: "Three unresolved within radius rejected",
			existing: []NearbyReport{
				nearby(1, base.Lat+degFiveMeters, base.Lon, models.InfraPower, models.StatusUnassigned),
				nearby(2, base.Lat-degFiveMeters, base.Lon, models.InfraPower, models.StatusPending),
				nearby(3, base.Lat, base.Lon+degFiveMeters, models.InfraPower, models.StatusInProgress),
			},
			allowed: false,
			count:   3,
		},
		{
			name: "Resolved report never blocks",
			existing: []NearbyReport{
				nearby(1, base.Lat+degFiveMeters, base.Lon, models.InfraPower, models.StatusUnassigned),
				nearby(2, base.Lat-degFiveMeters, base.Lon, models.InfraPower, models.StatusPending),
				nearby(3, base.Lat, base.Lon+degFiveMeters, models.InfraPower, models.StatusResolved),
			},
			allowed: true,
			count:   2,
		},
		{
			name: "Dismissed still counts, only resolved is exempt",
			existing: []NearbyReport{
				nearby(1, base.Lat+degFiveMeters, base.Lon, models.InfraPower, models.StatusDismissed),
				nearby(2, base.Lat-degFiveMeters, base.Lon, models.InfraPower, models.StatusUnderReview),
				nearby(3, base.Lat, base.Lon+degFiveMeters, models.InfraPower, models.StatusForRevision),
			},
			allowed: false,
			count:   3,
		},
		{
			name: "Different infrastructure type ignored",
			existing: []NearbyReport{
				nearby(1, base.Lat+degFiveMeters, base.Lon, models.InfraWater, models.StatusUnassigned),
				nearby(2, base.Lat-degFiveMeters, base.Lon, models.InfraWater, models.StatusPending),
				nearby(3, base.Lat, base.Lon+degFiveMeters, models.InfraWater, models.StatusInProgress),
			},
			allowed: true,
			count:   0,
		},
		{
			name: "Reports outside the radius ignored",
			existing: []NearbyReport{
				nearby(1, base.Lat+degHundredMeters, base.Lon, models.InfraPower, models.StatusUnassigned),
				nearby(2, base.Lat-degHundredMeters, base.Lon, models.InfraPower, models.StatusPending),
				nearby(3, base.Lat+degHundredMeters, base.Lon+degHundredMeters, models.InfraPower, models.StatusInProgress),
			},
			allowed: true,
			count:   0,
		},
	}

	for _, testCase := range testCases {
		verdict := CheckDuplicate(candidate, testCase.existing, policy)
		if verdict.Allowed != testCase.allowed || verdict.Count != testCase.count {
			t.Errorf("%s: expected allowed=%v count=%d, got allowed=%v count=%d",
				testCase.name, testCase.allowed, testCase.count, verdict.Allowed, verdict.Count)
		}
	}
}

func TestCheckDuplicateConfigurablePolicy(t *testing.T) {
	base := geo.Point{Lat: 14.5995, Lon: 120.9842}
	candidate := Candidate{Point: base, InfraType: models.InfraPower}
	existing := []NearbyReport{
		nearby(1, base.Lat+degFiveMeters, base.Lon, models.InfraPower, models.StatusUnassigned),
		nearby(2, base.Lat-degFiveMeters, base.Lon, models.InfraPower, models.StatusPending),
	}

	// Cap of 2 rejects what the default cap of 3 allows.
	strict := CheckDuplicate(candidate, existing, DuplicatePolicy{RadiusMeters: 10, MaxNearby: 2})
	if strict.Allowed {
		t.Errorf("cap 2: expected rejection at count %d", strict.Count)
	}

	// A 3 m radius excludes both ~5.5 m neighbours.
	narrow := CheckDuplicate(candidate, existing, DuplicatePolicy{RadiusMeters: 3, MaxNearby: 3})
	if !narrow.Allowed || narrow.Count != 0 {
		t.Errorf("radius 3m: expected allowed with count 0, got allowed=%v count=%d",
			narrow.Allowed, narrow.Count)
	}
}
