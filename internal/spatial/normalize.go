package spatial

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/habitability/internal/geo"
)

// ErrNoGeometry is returned when a record has no usable coordinates.
var ErrNoGeometry = eris.New("spatial: record has no usable geometry")

// Field aliases accepted on flat records.
var (
	latKeys      = []string{"lat", "latitude"}
	lngKeys      = []string{"lng", "lon", "long", "longitude"}
	nameKeys     = []string{"name", "title"}
	categoryKeys = []string{"category", "type"}
	ringKeys     = []string{"coordinates", "polygon", "ring", "boundary"}
)

// NormalizePoint converts a raw point record into a Point.
func NormalizePoint(rec PointRecord) (Point, error) {
	if isFeature(rec) {
		return normalizePointFeature(rec)
	}

	lat, okLat := firstNumber(rec, latKeys)
	lng, okLng := firstNumber(rec, lngKeys)
	if !okLat || !okLng {
		return Point{}, eris.Wrap(ErrNoGeometry, "spatial: point missing lat/lng")
	}

	p := Point{
		Name:       firstString(rec, nameKeys),
		Coordinate: geo.Coordinate{Lat: lat, Lng: lng},
		Category:   firstString(rec, categoryKeys),
		Properties: without(rec, latKeys, lngKeys, nameKeys, categoryKeys),
	}
	if nested, ok := rec["properties"].(map[string]any); ok {
		p.NestedCategory = stringField(nested, "category")
	}
	return p, nil
}

func normalizePointFeature(rec PointRecord) (Point, error) {
	g, err := decodeGeometry(rec["geometry"])
	if err != nil {
		return Point{}, err
	}
	pt, ok := g.(*geom.Point)
	if !ok || pt.Empty() {
		return Point{}, eris.Wrap(ErrNoGeometry, "spatial: feature geometry is not a point")
	}

	props, _ := rec["properties"].(map[string]any)
	p := Point{
		Name:       firstString(props, nameKeys),
		Coordinate: geo.Coordinate{Lat: pt.Y(), Lng: pt.X()},
		Category:   firstString(props, categoryKeys),
		Properties: without(props, nameKeys, categoryKeys),
	}
	if nested, ok := props["properties"].(map[string]any); ok {
		p.NestedCategory = stringField(nested, "category")
	}
	return p, nil
}

// NormalizePoints normalizes every record, skipping those without a position.
func NormalizePoints(recs []PointRecord) []Point {
	out := make([]Point, 0, len(recs))
	var skipped int
	for _, rec := range recs {
		p, err := NormalizePoint(rec)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, p)
	}
	if skipped > 0 {
		zap.L().Debug("spatial: skipped point records", zap.Int("skipped", skipped))
	}
	return out
}

// NormalizeZone converts a raw zone record into a Zone. Open rings are closed.
// The value is taken from an explicit "value" field, then "transit_distance"
// for transit_access zones, then a field named after the aspect.
func NormalizeZone(rec ZoneRecord) (Zone, error) {
	var (
		fields map[string]any
		g      geom.T
		err    error
	)
	if isFeature(rec) {
		fields, _ = rec["properties"].(map[string]any)
		g, err = decodeGeometry(rec["geometry"])
	} else {
		fields = rec
		g, err = flatGeometry(rec)
	}
	if err != nil {
		return Zone{}, err
	}

	g, err = geo.CloseGeometry(g)
	if err != nil {
		return Zone{}, err
	}
	if !geo.HasArea(g) {
		return Zone{}, ErrNoGeometry
	}

	aspect := stringField(fields, "aspect")
	z := Zone{
		Aspect:     aspect,
		Geometry:   g,
		Properties: without(fields, ringKeys, []string{"aspect", "value", "transit_distance"}),
	}
	if v, ok := numberField(fields, "transit_distance"); ok {
		z.TransitDistance = &v
	}
	switch v, ok := numberField(fields, "value"); {
	case ok:
		z.Value = &v
	case aspect == AspectTransitAccess && z.TransitDistance != nil:
		td := *z.TransitDistance
		z.Value = &td
	case aspect != "":
		if v, ok := numberField(fields, aspect); ok {
			z.Value = &v
		}
	}
	return z, nil
}

// NormalizeZones normalizes every record, skipping those without a polygon.
func NormalizeZones(recs []ZoneRecord) []Zone {
	out := make([]Zone, 0, len(recs))
	var skipped int
	for _, rec := range recs {
		z, err := NormalizeZone(rec)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, z)
	}
	if skipped > 0 {
		zap.L().Debug("spatial: skipped zone records", zap.Int("skipped", skipped))
	}
	return out
}

func isFeature(rec map[string]any) bool {
	t, _ := rec["type"].(string)
	return strings.EqualFold(t, "Feature")
}

// decodeGeometry decodes a GeoJSON geometry object that has already been
// unmarshaled into generic values.
func decodeGeometry(v any) (geom.T, error) {
	if v == nil {
		return nil, ErrNoGeometry
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: re-encode geometry")
	}
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrap(err, "spatial: decode geojson geometry")
	}
	if g == nil {
		return nil, ErrNoGeometry
	}
	return g, nil
}

// flatGeometry builds a polygon from the first ring alias present. A ring
// alias holds either a single ring of [lon, lat] pairs or a list of rings.
func flatGeometry(rec map[string]any) (geom.T, error) {
	for _, key := range ringKeys {
		raw, ok := rec[key]
		if !ok {
			continue
		}
		rings, err := parseRings(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "spatial: parse %s", key)
		}
		return geo.NewPolygon(rings...)
	}
	return nil, ErrNoGeometry
}

func parseRings(raw any) ([][]geom.Coord, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, ErrNoGeometry
	}
	first, ok := list[0].([]any)
	if !ok || len(first) == 0 {
		return nil, ErrNoGeometry
	}
	if _, nested := first[0].([]any); !nested {
		ring, err := parseRing(list)
		if err != nil {
			return nil, err
		}
		return [][]geom.Coord{ring}, nil
	}

	rings := make([][]geom.Coord, 0, len(list))
	for _, r := range list {
		ringList, ok := r.([]any)
		if !ok {
			return nil, eris.New("spatial: ring is not an array")
		}
		ring, err := parseRing(ringList)
		if err != nil {
			return nil, err
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

func parseRing(list []any) ([]geom.Coord, error) {
	ring := make([]geom.Coord, 0, len(list))
	for i, c := range list {
		pair, ok := c.([]any)
		if !ok || len(pair) < 2 {
			return nil, eris.Errorf("spatial: coordinate %d is not a [lon, lat] pair", i)
		}
		lng, okLng := toNumber(pair[0])
		lat, okLat := toNumber(pair[1])
		if !okLng || !okLat {
			return nil, eris.Errorf("spatial: coordinate %d is not numeric", i)
		}
		ring = append(ring, geom.Coord{lng, lat})
	}
	return ring, nil
}

func firstNumber(m map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := numberField(m, k); ok {
			return v, true
		}
	}
	return 0, false
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s := stringField(m, k); s != "" {
			return s
		}
	}
	return ""
}

func numberField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return toNumber(v)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// toNumber accepts the numeric shapes produced by JSON decoding, database
// scans, and shapefile attributes.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// without returns a shallow copy of m lacking every key in the given groups.
func without(m map[string]any, groups ...[]string) map[string]any {
	if len(m) == 0 {
		return nil
	}
	drop := make(map[string]bool)
	for _, g := range groups {
		for _, k := range g {
			drop[k] = true
		}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if !drop[k] {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
