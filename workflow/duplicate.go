package workflow

import (
	"math"

	"infrasee/geo"
	"infrasee/models"
)

// DuplicatePolicy is the tunable duplicate-suppression rule. The values come
// from config; an earlier release rejected on any single unresolved report
// within the radius, which is superseded by the counted cap.
type DuplicatePolicy struct {
	RadiusMeters float64
	MaxNearby    int
}

// Candidate is the location/type of a report submission being screened.
type Candidate struct {
	Point     geo.Point
	InfraType models.InfraType
}

// NearbyReport is the slice of an existing report the guard looks at.
type NearbyReport struct {
	Seq       int64
	Point     geo.Point
	InfraType models.InfraType
	Status    models.Status
}

// Verdict is the guard's answer for one candidate.
type Verdict struct {
	Allowed bool
	Count   int
}

// CheckDuplicate counts existing same-type, non-resolved reports within the
// policy radius of the candidate and rejects once the cap is reached.
// Resolved reports never block, regardless of distance.
func CheckDuplicate(c Candidate, existing []NearbyReport, p DuplicatePolicy) Verdict {
	count := 0
	for _, r := range existing {
		if r.InfraType != c.InfraType || r.Status == models.StatusResolved {
			continue
		}
		d := geo.DistanceMeters(c.Point, r.Point)
		if math.IsNaN(d) || d > p.RadiusMeters {
			continue
		}
		count++
	}
	return Verdict{Allowed: count < p.MaxNearby, Count: count}
}
