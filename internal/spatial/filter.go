package spatial

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/habitability/internal/geo"
)

// boundaryToleranceMeters absorbs floating-point round-off so a point placed
// exactly on the circle stays inside the inclusive boundary.
const boundaryToleranceMeters = 1e-6

// parallelThreshold is the collection size at which intersection tests are
// spread across goroutines.
const parallelThreshold = 512

// FilterPointsInRadius returns the points within radiusMeters of center
// (inclusive), in input order, each annotated with its distance.
func FilterPointsInRadius(center geo.Coordinate, radiusMeters float64, points []Point) []PointHit {
	hits := make([]PointHit, 0)
	for _, p := range points {
		d := geo.Distance(center, p.Coordinate)
		if d <= radiusMeters+boundaryToleranceMeters {
			hits = append(hits, PointHit{Point: p, DistanceMeters: d})
		}
	}
	return hits
}

// FilterPolygonsInRadius normalizes raw zone records and returns those whose
// polygon intersects the circle, in input order.
func FilterPolygonsInRadius(center geo.Coordinate, radiusMeters float64, recs []ZoneRecord) []Zone {
	return FilterZonesInRadius(center, radiusMeters, NormalizeZones(recs))
}

// FilterZonesInRadius returns the zones whose polygon intersects the circle,
// in input order.
func FilterZonesInRadius(center geo.Coordinate, radiusMeters float64, zones []Zone) []Zone {
	keep := mapZones(zones, func(z Zone) bool {
		return geo.CircleIntersectsPolygon(center, radiusMeters, z.Geometry)
	})
	out := make([]Zone, 0)
	for i, z := range zones {
		if keep[i] {
			out = append(out, z)
		}
	}
	return out
}

// mapZones evaluates test for every zone. Large inputs are split into one
// chunk per CPU; each result lands at its input index.
func mapZones(zones []Zone, test func(Zone) bool) []bool {
	res := make([]bool, len(zones))
	if len(zones) < parallelThreshold {
		for i, z := range zones {
			res[i] = test(z)
		}
		return res
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(zones) + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < len(zones); start += chunk {
		end := min(start+chunk, len(zones))
		g.Go(func() error {
			for i := start; i < end; i++ {
				res[i] = test(zones[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}
