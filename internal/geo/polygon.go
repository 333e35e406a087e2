package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// horizontalEpsilon replaces a zero rise when a ray-cast edge is horizontal.
const horizontalEpsilon = 1e-12

// minRingCoords is the smallest number of coordinates that can bound an area.
const minRingCoords = 3

// CloseRing returns ring with its first coordinate repeated at the end when the
// ring is open. Rings with fewer than three coordinates are returned unmodified.
func CloseRing(ring []geom.Coord) []geom.Coord {
	if len(ring) < minRingCoords {
		return ring
	}
	first, last := ring[0], ring[len(ring)-1]
	if first.X() == last.X() && first.Y() == last.Y() {
		return ring
	}
	closed := make([]geom.Coord, 0, len(ring)+1)
	closed = append(closed, ring...)
	return append(closed, geom.Coord{first.X(), first.Y()})
}

// Rings flattens a Polygon or MultiPolygon into its rings. Any other geometry
// type has no rings.
func Rings(g geom.T) [][]geom.Coord {
	switch p := g.(type) {
	case *geom.Polygon:
		return polygonRings(p)
	case *geom.MultiPolygon:
		var rings [][]geom.Coord
		for i := 0; i < p.NumPolygons(); i++ {
			rings = append(rings, polygonRings(p.Polygon(i))...)
		}
		return rings
	default:
		return nil
	}
}

func polygonRings(p *geom.Polygon) [][]geom.Coord {
	if p == nil {
		return nil
	}
	rings := make([][]geom.Coord, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		rings = append(rings, p.LinearRing(i).Coords())
	}
	return rings
}

// PointInPolygon reports whether pt lies inside g under the even-odd rule.
// Every ring of every part is counted in one parity pass, so holes cancel
// crossings of their exterior ring.
func PointInPolygon(pt Coordinate, g geom.T) bool {
	x, y := pt.Lng, pt.Lat
	inside := false
	for _, ring := range Rings(g) {
		n := len(ring)
		if n < minRingCoords {
			continue
		}
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			xi, yi := ring[i].X(), ring[i].Y()
			xj, yj := ring[j].X(), ring[j].Y()
			if (yi > y) == (yj > y) {
				continue
			}
			rise := yj - yi
			if rise == 0 {
				rise = horizontalEpsilon
			}
			if x < (xj-xi)*(y-yi)/rise+xi {
				inside = !inside
			}
		}
	}
	return inside
}

// DistanceToBoundary returns the distance in meters from pt to the nearest
// edge of any ring of g. A geometry with no usable ring returns +Inf.
func DistanceToBoundary(pt Coordinate, g geom.T) float64 {
	best := math.Inf(1)
	forEachEdge(g, func(a, b Coordinate) bool {
		if d := DistancePointToSegment(pt, pt, a, b); d < best {
			best = d
		}
		return true
	})
	return best
}

// CircleIntersectsPolygon reports whether the disc around center reaches g:
// either the center is inside g or some edge lies within radiusMeters.
func CircleIntersectsPolygon(center Coordinate, radiusMeters float64, g geom.T) bool {
	if PointInPolygon(center, g) {
		return true
	}
	hit := false
	forEachEdge(g, func(a, b Coordinate) bool {
		if DistancePointToSegment(center, center, a, b) <= radiusMeters {
			hit = true
			return false
		}
		return true
	})
	return hit
}

// forEachEdge calls fn for every edge of every closed ring of g until fn
// returns false. Degenerate rings are skipped.
func forEachEdge(g geom.T, fn func(a, b Coordinate) bool) {
	for _, ring := range Rings(g) {
		ring = CloseRing(ring)
		if len(ring) < minRingCoords {
			continue
		}
		for i := 0; i+1 < len(ring); i++ {
			a := Coordinate{Lat: ring[i].Y(), Lng: ring[i].X()}
			b := Coordinate{Lat: ring[i+1].Y(), Lng: ring[i+1].X()}
			if !fn(a, b) {
				return
			}
		}
	}
}
