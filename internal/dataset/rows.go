package dataset

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/habitability/internal/spatial"
)

// pointRow is a point flattened to the table columns
// name, category, lat, lng, properties.
func pointRow(p spatial.Point) ([]any, error) {
	props, err := propertiesJSON(p.Properties)
	if err != nil {
		return nil, err
	}
	var name any
	if p.Name != "" {
		name = p.Name
	}
	return []any{name, p.Category, p.Coordinate.Lat, p.Coordinate.Lng, props}, nil
}

// zoneRow is a zone flattened to the table columns
// aspect, value, transit_distance, geometry, properties.
func zoneRow(z spatial.Zone) ([]any, error) {
	g, err := geojson.Marshal(z.Geometry)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: encode %s zone geometry", z.Aspect)
	}
	props, err := propertiesJSON(z.Properties)
	if err != nil {
		return nil, err
	}
	return []any{z.Aspect, z.Value, z.TransitDistance, string(g), props}, nil
}

func propertiesJSON(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", eris.Wrap(err, "dataset: encode properties")
	}
	return string(data), nil
}

// pointRecordFromColumns rebuilds a flat point record from stored columns.
func pointRecordFromColumns(name *string, category string, lat, lng float64, properties string) (spatial.PointRecord, error) {
	rec := spatial.PointRecord{}
	if properties != "" {
		if err := json.Unmarshal([]byte(properties), &rec); err != nil {
			return nil, eris.Wrap(err, "dataset: decode point properties")
		}
	}
	if name != nil {
		rec["name"] = *name
	}
	rec["category"] = category
	rec["lat"] = lat
	rec["lng"] = lng
	return rec, nil
}

// zoneRecordFromColumns rebuilds a GeoJSON Feature zone record from stored
// columns.
func zoneRecordFromColumns(aspect string, value, transitDistance *float64, geometry, properties string) (spatial.ZoneRecord, error) {
	props := map[string]any{}
	if properties != "" {
		if err := json.Unmarshal([]byte(properties), &props); err != nil {
			return nil, eris.Wrap(err, "dataset: decode zone properties")
		}
	}
	props["aspect"] = aspect
	if value != nil {
		props["value"] = *value
	}
	if transitDistance != nil {
		props["transit_distance"] = *transitDistance
	}

	var g any
	if err := json.Unmarshal([]byte(geometry), &g); err != nil {
		return nil, eris.Wrapf(err, "dataset: decode %s zone geometry", aspect)
	}
	return spatial.ZoneRecord{
		"type":       "Feature",
		"geometry":   g,
		"properties": props,
	}, nil
}

// snapshotRows flattens a snapshot into point and zone row sets.
func snapshotRows(snap *Snapshot) (points, zones [][]any, err error) {
	points = make([][]any, 0, len(snap.Points))
	for _, p := range snap.Points {
		row, err := pointRow(p)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, row)
	}
	zones = make([][]any, 0, len(snap.Zones))
	for _, z := range snap.Zones {
		row, err := zoneRow(z)
		if err != nil {
			return nil, nil, err
		}
		zones = append(zones, row)
	}
	return points, zones, nil
}
