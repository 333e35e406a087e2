// Package geo provides the geometry kernel used by spatial filtering and zone
// resolution: great-circle distance, a local planar projection, and polygon
// tests over go-geom polygons in [lon, lat] order.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by every distance function.
const EarthRadiusMeters = 6_371_008.8

// segmentEpsilon guards the squared segment length against zero-length edges.
const segmentEpsilon = 1e-9

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HaversineMeters returns the great-circle distance between two points in meters.
func HaversineMeters(latA, lonA, latB, lonB float64) float64 {
	phiA := toRad(latA)
	phiB := toRad(latB)
	dPhi := toRad(latB - latA)
	dLambda := toRad(lonB - lonA)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phiA)*math.Cos(phiB)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Distance returns the haversine distance between two coordinates in meters.
func Distance(a, b Coordinate) float64 {
	return HaversineMeters(a.Lat, a.Lng, b.Lat, b.Lng)
}

// ProjectLocal projects (lat, lon) onto a plane tangent at the origin using an
// equirectangular approximation. The result is in meters and is only accurate
// for spans of a few kilometers.
func ProjectLocal(originLat, originLon, lat, lon float64) (x, y float64) {
	x = toRad(lon-originLon) * math.Cos(toRad(originLat)) * EarthRadiusMeters
	y = toRad(lat-originLat) * EarthRadiusMeters
	return x, y
}

// DistancePointToSegment returns the planar distance in meters from p to the
// segment a-b, with all three projected around origin. Callers pass p as the
// origin so the test point carries no projection distortion.
func DistancePointToSegment(origin, p, a, b Coordinate) float64 {
	px, py := ProjectLocal(origin.Lat, origin.Lng, p.Lat, p.Lng)
	ax, ay := ProjectLocal(origin.Lat, origin.Lng, a.Lat, a.Lng)
	bx, by := ProjectLocal(origin.Lat, origin.Lng, b.Lat, b.Lng)

	dx := bx - ax
	dy := by - ay
	lenSq := dx*dx + dy*dy

	var t float64
	if lenSq >= segmentEpsilon {
		t = ((px-ax)*dx + (py-ay)*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}

	cx := ax + t*dx
	cy := ay + t*dy
	return math.Hypot(px-cx, py-cy)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
