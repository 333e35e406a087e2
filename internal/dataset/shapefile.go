package dataset

import (
	"context"
	"sort"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/habitability/internal/spatial"
)

// ShapefileSource reads points from a JSON file and zones from polygon
// shapefiles, one aspect per file. DBF attributes become record fields with
// lowercased names.
type ShapefileSource struct {
	PointsPath string
	// Files maps an aspect name to a .shp path.
	Files map[string]string
}

// Points reads the points file.
func (s *ShapefileSource) Points(ctx context.Context) ([]spatial.PointRecord, error) {
	return (&FileSource{PointsPath: s.PointsPath}).Points(ctx)
}

// Zones reads every configured shapefile in aspect order.
func (s *ShapefileSource) Zones(ctx context.Context) ([]spatial.ZoneRecord, error) {
	aspects := make([]string, 0, len(s.Files))
	for a := range s.Files {
		aspects = append(aspects, a)
	}
	sort.Strings(aspects)

	var out []spatial.ZoneRecord
	for _, aspect := range aspects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := ReadShapefileZones(s.Files[aspect], aspect)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// ReadShapefileZones converts each polygon shape in shpPath into a flat zone
// record tagged with aspect. Non-polygon shapes are skipped.
func ReadShapefileZones(shpPath, aspect string) ([]spatial.ZoneRecord, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = dbfFieldKey(strings.ToLower(strings.TrimRight(f.String(), "\x00")), aspect)
	}

	var out []spatial.ZoneRecord
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				attrs[name] = val
			}
		}

		rec := shapeZoneRecord(aspect, poly, attrs)
		if rec == nil {
			skipped++
			continue
		}
		out = append(out, rec)
	}

	if skipped > 0 {
		zap.L().Debug("dataset: skipped shapefile records",
			zap.String("path", shpPath),
			zap.String("aspect", aspect),
			zap.Int("skipped", skipped),
		)
	}
	return out, nil
}

// dbfNameLimit is the shortest field name length dBase writers truncate to.
const dbfNameLimit = 10

// dbfFieldKey maps a DBF field name cut at the dBase name limit back to the
// record key it stands for, e.g. "transit_dis" to "transit_distance".
func dbfFieldKey(name, aspect string) string {
	if len(name) < dbfNameLimit {
		return name
	}
	for _, key := range []string{"transit_distance", aspect} {
		if len(key) > len(name) && strings.HasPrefix(key, name) {
			return key
		}
	}
	return name
}

// shapeZoneRecord builds a flat zone record from a shapefile polygon. Every
// part becomes one ring of the same polygon so that holes and islands are
// handled by even-odd containment.
func shapeZoneRecord(aspect string, p *shp.Polygon, attrs map[string]string) spatial.ZoneRecord {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	rings := make([]any, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || start >= end {
			continue
		}

		ring := make([]any, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, []any{pt.X, pt.Y})
		}
		rings = append(rings, ring)
	}
	if len(rings) == 0 {
		return nil
	}

	rec := make(spatial.ZoneRecord, len(attrs)+2)
	for k, v := range attrs {
		rec[k] = v
	}
	rec["aspect"] = aspect
	rec["coordinates"] = rings
	return rec
}
