package spatial

import (
	"math"

	"github.com/sells-group/habitability/internal/geo"
)

// milesToKm converts statute miles to kilometers.
const milesToKm = 1.609344

// Status is the outcome of resolving an aspect at a point.
type Status string

// Resolution statuses.
const (
	// StatusOutOfBounds means the aspect had no candidate zones at all.
	StatusOutOfBounds Status = "out_of_bounds"
	// StatusCenterInside means the point lies inside a candidate zone.
	StatusCenterInside Status = "center_inside"
	// StatusNearSingleZone means the point lies outside every candidate and
	// the zone with the nearest boundary was chosen.
	StatusNearSingleZone Status = "near_single_zone"
)

// AspectResolution is the zone chosen for one aspect at a point.
type AspectResolution struct {
	Aspect string `json:"aspect,omitempty"`
	Status Status `json:"status"`
	// Value is the chosen zone's statistic; nil when out of bounds or when
	// the zone carried none.
	Value               *float64 `json:"value,omitempty"`
	Zone                *Zone    `json:"zone,omitempty"`
	DistanceToBoundaryM float64  `json:"distance_to_boundary_m"`
}

// Found reports whether a zone was chosen.
func (r AspectResolution) Found() bool {
	return r.Status != StatusOutOfBounds
}

// ResolveAspectValueAtPoint normalizes the candidate records of one aspect and
// resolves which zone covers or is nearest to center.
func ResolveAspectValueAtPoint(center geo.Coordinate, recs []ZoneRecord) AspectResolution {
	return ResolveAspect(center, NormalizeZones(recs))
}

// ResolveAspect resolves which of the candidate zones covers or is nearest to
// center. The first zone in input order containing center wins; otherwise the
// first zone at the minimum boundary distance wins. No candidates yields
// StatusOutOfBounds.
func ResolveAspect(center geo.Coordinate, zones []Zone) AspectResolution {
	if len(zones) == 0 {
		return AspectResolution{Status: StatusOutOfBounds}
	}

	for i := range zones {
		if geo.PointInPolygon(center, zones[i].Geometry) {
			return resolution(StatusCenterInside, &zones[i], geo.DistanceToBoundary(center, zones[i].Geometry))
		}
	}

	best := -1
	bestDist := math.Inf(1)
	for i := range zones {
		d := geo.DistanceToBoundary(center, zones[i].Geometry)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return resolution(StatusNearSingleZone, &zones[best], bestDist)
}

func resolution(status Status, z *Zone, dist float64) AspectResolution {
	return AspectResolution{
		Aspect:              z.Aspect,
		Status:              status,
		Value:               z.Value,
		Zone:                z,
		DistanceToBoundaryM: dist,
	}
}

// TransitResolution is an AspectResolution for transit_access zones that also
// carries the zone's transit distance.
type TransitResolution struct {
	AspectResolution
	// TransitDistanceMiles is the chosen zone's transit_distance, in miles.
	TransitDistanceMiles *float64 `json:"transit_distance_miles,omitempty"`
}

// TransitDistanceKm converts the zone's transit distance to kilometers.
func (t TransitResolution) TransitDistanceKm() (float64, bool) {
	if t.TransitDistanceMiles == nil {
		return 0, false
	}
	return *t.TransitDistanceMiles * milesToKm, true
}

// ResolveTransitZoneInfo resolves the transit zone at center from raw records.
func ResolveTransitZoneInfo(center geo.Coordinate, recs []ZoneRecord) TransitResolution {
	return ResolveTransitZone(center, NormalizeZones(recs))
}

// ResolveTransitZone resolves the transit zone at center and surfaces its
// transit distance.
func ResolveTransitZone(center geo.Coordinate, zones []Zone) TransitResolution {
	res := TransitResolution{AspectResolution: ResolveAspect(center, zones)}
	if res.Found() && res.Zone.TransitDistance != nil {
		td := *res.Zone.TransitDistance
		res.TransitDistanceMiles = &td
	}
	return res
}

// CollectTransitDistancesKm returns the distance in kilometers of every hit
// whose own or nested category is exactly "Transit", in input order.
func CollectTransitDistancesKm(hits []PointHit) []float64 {
	out := make([]float64, 0)
	for _, h := range hits {
		if isTransit(h.Point) {
			out = append(out, h.DistanceKm())
		}
	}
	return out
}

func isTransit(p Point) bool {
	return p.Category == TransitCategory || p.NestedCategory == TransitCategory
}

// GroupZonesByAspect buckets zones by aspect, preserving input order within
// each bucket.
func GroupZonesByAspect(zones []Zone) map[string][]Zone {
	out := make(map[string][]Zone)
	for _, z := range zones {
		out[z.Aspect] = append(out[z.Aspect], z)
	}
	return out
}
