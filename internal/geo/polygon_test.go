package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// square returns an open ring of a lon/lat box.
func square(minLng, minLat, maxLng, maxLat float64) []geom.Coord {
	return []geom.Coord{
		{minLng, minLat}, {maxLng, minLat}, {maxLng, maxLat}, {minLng, maxLat},
	}
}

func mustPolygon(t *testing.T, rings ...[]geom.Coord) *geom.Polygon {
	t.Helper()
	p, err := NewPolygon(rings...)
	require.NoError(t, err)
	return p
}

func TestCloseRing(t *testing.T) {
	open := square(0, 0, 1, 1)
	closed := CloseRing(open)
	require.Len(t, closed, 5)
	assert.Equal(t, closed[0], closed[4])
	assert.Len(t, open, 4, "input must not be mutated")

	assert.Equal(t, closed, CloseRing(closed))

	short := []geom.Coord{{0, 0}, {1, 1}}
	assert.Equal(t, short, CloseRing(short))
}

func TestPointInPolygon(t *testing.T) {
	box := mustPolygon(t, square(-73.01, 39.99, -72.99, 40.01))

	tests := []struct {
		name string
		pt   Coordinate
		want bool
	}{
		{"center", Coordinate{40, -73}, true},
		{"north of box", Coordinate{40.02, -73}, false},
		{"west of box", Coordinate{40, -73.02}, false},
		{"near inside corner", Coordinate{40.0099, -72.9901}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PointInPolygon(tt.pt, box))
		})
	}
}

func TestPointInPolygon_Hole(t *testing.T) {
	donut := mustPolygon(t, square(0, 0, 10, 10), square(4, 4, 6, 6))

	assert.True(t, PointInPolygon(Coordinate{Lat: 2, Lng: 2}, donut))
	assert.False(t, PointInPolygon(Coordinate{Lat: 5, Lng: 5}, donut))
}

func TestPointInPolygon_MultiPolygon(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(mustPolygon(t, square(0, 0, 1, 1))))
	require.NoError(t, mp.Push(mustPolygon(t, square(5, 5, 6, 6))))

	assert.True(t, PointInPolygon(Coordinate{Lat: 0.5, Lng: 0.5}, mp))
	assert.True(t, PointInPolygon(Coordinate{Lat: 5.5, Lng: 5.5}, mp))
	assert.False(t, PointInPolygon(Coordinate{Lat: 3, Lng: 3}, mp))
}

func TestPointInPolygon_RotationInvariant(t *testing.T) {
	ring := []geom.Coord{{0, 0}, {4, 0}, {4, 3}, {2, 5}, {0, 3}}
	probes := []Coordinate{
		{Lat: 1, Lng: 1}, {Lat: 4, Lng: 2}, {Lat: 4.9, Lng: 0.5}, {Lat: -1, Lng: 2}, {Lat: 3, Lng: 4.5},
	}

	for shift := 0; shift < len(ring); shift++ {
		rotated := append(append([]geom.Coord{}, ring[shift:]...), ring[:shift]...)
		base := mustPolygon(t, ring)
		rot := mustPolygon(t, rotated)
		for _, p := range probes {
			assert.Equal(t, PointInPolygon(p, base), PointInPolygon(p, rot), "shift %d probe %+v", shift, p)
		}
	}
}

func TestPointInPolygon_DegenerateAndUnsupported(t *testing.T) {
	line := mustPolygon(t, []geom.Coord{{0, 0}, {1, 1}})
	assert.False(t, PointInPolygon(Coordinate{Lat: 0.5, Lng: 0.5}, line))

	pt := geom.NewPointFlat(geom.XY, []float64{0, 0})
	assert.False(t, PointInPolygon(Coordinate{}, pt))
}

func TestDistanceToBoundary(t *testing.T) {
	metersPerDegLng := EarthRadiusMeters * math.Pi / 180 * math.Cos(40*math.Pi/180)
	offset := 200 / metersPerDegLng
	box := mustPolygon(t, square(-73+offset, 39.99, -73+offset+0.01, 40.01))

	center := Coordinate{Lat: 40, Lng: -73}
	assert.InDelta(t, 200, DistanceToBoundary(center, box), 0.01)

	inside := Coordinate{Lat: 40, Lng: -73 + offset + 0.005}
	assert.Greater(t, DistanceToBoundary(inside, box), 0.0)
}

func TestDistanceToBoundary_NoRings(t *testing.T) {
	empty := geom.NewPolygon(geom.XY)
	assert.True(t, math.IsInf(DistanceToBoundary(Coordinate{}, empty), 1))
}

func TestCircleIntersectsPolygon(t *testing.T) {
	metersPerDegLng := EarthRadiusMeters * math.Pi / 180 * math.Cos(40*math.Pi/180)
	offset := 200 / metersPerDegLng
	box := mustPolygon(t, square(-73+offset, 39.99, -73+offset+0.01, 40.01))
	center := Coordinate{Lat: 40, Lng: -73}

	assert.False(t, CircleIntersectsPolygon(center, 150, box))
	assert.True(t, CircleIntersectsPolygon(center, 250, box))

	inside := Coordinate{Lat: 40, Lng: -73 + offset + 0.005}
	assert.True(t, CircleIntersectsPolygon(inside, 1, box), "center inside counts as intersecting")
}

func TestCloseGeometry(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	open, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{square(0, 0, 1, 1)})
	require.NoError(t, err)
	require.NoError(t, mp.Push(open))

	g, err := CloseGeometry(mp)
	require.NoError(t, err)
	rings := Rings(g)
	require.Len(t, rings, 1)
	assert.Len(t, rings[0], 5)
	assert.True(t, HasArea(g))
	assert.False(t, HasArea(geom.NewPolygon(geom.XY)))
}

func TestNewPolygon_DropsAltitude(t *testing.T) {
	p := mustPolygon(t, []geom.Coord{{0, 0, 10}, {1, 0, 10}, {1, 1, 10}, {0, 1, 10}})
	assert.Equal(t, geom.XY, p.Layout())
	rings := Rings(p)
	require.Len(t, rings, 1)
	require.Len(t, rings[0], 5)
	assert.Equal(t, geom.Coord{0, 0}, rings[0][4])
	assert.True(t, PointInPolygon(Coordinate{Lat: 0.5, Lng: 0.5}, p))
}

func TestCloseGeometry_XYZ(t *testing.T) {
	src, err := geom.NewPolygon(geom.XYZ).SetCoords([][]geom.Coord{{{0, 0, 1}, {2, 0, 1}, {2, 2, 1}, {0, 2, 1}}})
	require.NoError(t, err)

	g, err := CloseGeometry(src)
	require.NoError(t, err)
	assert.Equal(t, geom.XY, g.Layout())
	assert.True(t, HasArea(g))
}
