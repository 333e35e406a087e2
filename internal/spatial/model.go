// Package spatial normalizes point and zone records and answers radius and
// zone-resolution queries against them using the geo kernel.
package spatial

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/habitability/internal/geo"
)

// Aspect names for the zone categories that feed the score.
const (
	AspectAirQuality    = "air_quality"
	AspectCrimeRate     = "crime_rate"
	AspectRent          = "rent"
	AspectSchoolQuality = "school_quality"
	AspectTransitAccess = "transit_access"
)

// TransitCategory is the point category that marks a transit stop.
const TransitCategory = "Transit"

// PointRecord is a point as supplied by a data source, either a flat object
// or a GeoJSON Feature. It is only read by NormalizePoint.
type PointRecord map[string]any

// ZoneRecord is a polygon as supplied by a data source, either a flat object
// or a GeoJSON Feature. It is only read by NormalizeZone.
type ZoneRecord map[string]any

// Point is a normalized point of interest.
type Point struct {
	Name           string         `json:"name,omitempty"`
	Coordinate     geo.Coordinate `json:"coordinate"`
	Category       string         `json:"category"`
	NestedCategory string         `json:"nested_category,omitempty"`
	Properties     map[string]any `json:"properties,omitempty"`
}

// Categories returns the non-empty category labels of the point, own label first.
func (p Point) Categories() []string {
	var out []string
	if p.Category != "" {
		out = append(out, p.Category)
	}
	if p.NestedCategory != "" {
		out = append(out, p.NestedCategory)
	}
	return out
}

// Feature encodes the point as a GeoJSON Feature.
func (p Point) Feature() *geojson.Feature {
	props := make(map[string]any, len(p.Properties)+2)
	for k, v := range p.Properties {
		props[k] = v
	}
	if p.Name != "" {
		props["name"] = p.Name
	}
	props["category"] = p.Category
	return &geojson.Feature{
		Geometry:   geom.NewPointFlat(geom.XY, []float64{p.Coordinate.Lng, p.Coordinate.Lat}).SetSRID(4326),
		Properties: props,
	}
}

// PointHit is a point retained by a radius filter, annotated with its distance
// from the query center.
type PointHit struct {
	Point
	DistanceMeters float64 `json:"distance_m"`
}

// DistanceKm returns the annotated distance in kilometers.
func (h PointHit) DistanceKm() float64 {
	return h.DistanceMeters / 1000
}

// Zone is a normalized zone polygon carrying one aspect's statistic.
type Zone struct {
	Aspect string `json:"aspect"`
	// Value is the statistic the zone carries; nil when the record had none.
	Value *float64 `json:"value,omitempty"`
	// TransitDistance is in miles and only set for transit_access zones.
	TransitDistance *float64       `json:"transit_distance,omitempty"`
	Geometry        geom.T         `json:"-"`
	Properties      map[string]any `json:"properties,omitempty"`
}

// Feature encodes the zone as a GeoJSON Feature with its canonical fields
// folded into the properties.
func (z Zone) Feature() *geojson.Feature {
	props := make(map[string]any, len(z.Properties)+3)
	for k, v := range z.Properties {
		props[k] = v
	}
	props["aspect"] = z.Aspect
	if z.Value != nil {
		props["value"] = *z.Value
	}
	if z.TransitDistance != nil {
		props["transit_distance"] = *z.TransitDistance
	}
	return &geojson.Feature{Geometry: z.Geometry, Properties: props}
}

// MarshalJSON renders the zone as a GeoJSON Feature.
func (z Zone) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(z.Feature())
	if err != nil {
		return nil, eris.Wrap(err, "spatial: marshal zone")
	}
	return data, nil
}

// PointCollection encodes points as a GeoJSON FeatureCollection.
func PointCollection(points []Point) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(points))}
	for _, p := range points {
		fc.Features = append(fc.Features, p.Feature())
	}
	return fc
}

// ZoneCollection encodes zones as a GeoJSON FeatureCollection.
func ZoneCollection(zones []Zone) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(zones))}
	for _, z := range zones {
		fc.Features = append(fc.Features, z.Feature())
	}
	return fc
}
