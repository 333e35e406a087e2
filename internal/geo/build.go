package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// NewPolygon builds an XY Polygon from rings given exterior first, closing
// any open ring. Coordinates beyond X and Y (altitude, measure) are dropped.
func NewPolygon(rings ...[]geom.Coord) (*geom.Polygon, error) {
	closed := make([][]geom.Coord, 0, len(rings))
	for _, r := range rings {
		closed = append(closed, CloseRing(flattenXY(r)))
	}
	p, err := geom.NewPolygon(geom.XY).SetCoords(closed)
	if err != nil {
		return nil, eris.Wrap(err, "geo: build polygon")
	}
	return p.SetSRID(4326), nil
}

// CloseGeometry returns a copy of a Polygon or MultiPolygon with every ring
// closed. Other geometries are returned as-is.
func CloseGeometry(g geom.T) (geom.T, error) {
	switch p := g.(type) {
	case *geom.Polygon:
		return NewPolygon(polygonRings(p)...)
	case *geom.MultiPolygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
		for i := 0; i < p.NumPolygons(); i++ {
			part, err := NewPolygon(polygonRings(p.Polygon(i))...)
			if err != nil {
				return nil, err
			}
			if err := mp.Push(part); err != nil {
				return nil, eris.Wrap(err, "geo: push polygon part")
			}
		}
		return mp, nil
	default:
		return g, nil
	}
}

// HasArea reports whether g has at least one ring able to bound an area.
func HasArea(g geom.T) bool {
	for _, r := range Rings(g) {
		if len(r) >= minRingCoords {
			return true
		}
	}
	return false
}

func flattenXY(ring []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, 0, len(ring))
	for _, c := range ring {
		if len(c) < 2 {
			continue
		}
		out = append(out, geom.Coord{c[0], c[1]})
	}
	return out
}
