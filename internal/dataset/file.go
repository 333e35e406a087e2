package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/habitability/internal/spatial"
)

// FileSource reads records from two JSON files. Each file holds either an
// array of records or a GeoJSON FeatureCollection.
type FileSource struct {
	PointsPath   string
	PolygonsPath string
}

// NewFileSource returns a FileSource for the given paths.
func NewFileSource(pointsPath, polygonsPath string) *FileSource {
	return &FileSource{PointsPath: pointsPath, PolygonsPath: polygonsPath}
}

// Points reads the points file.
func (s *FileSource) Points(ctx context.Context) ([]spatial.PointRecord, error) {
	recs, err := readRecordsFile(ctx, s.PointsPath)
	if err != nil {
		return nil, err
	}
	out := make([]spatial.PointRecord, len(recs))
	for i, r := range recs {
		out[i] = spatial.PointRecord(r)
	}
	return out, nil
}

// Zones reads the polygons file.
func (s *FileSource) Zones(ctx context.Context) ([]spatial.ZoneRecord, error) {
	recs, err := readRecordsFile(ctx, s.PolygonsPath)
	if err != nil {
		return nil, err
	}
	out := make([]spatial.ZoneRecord, len(recs))
	for i, r := range recs {
		out[i] = spatial.ZoneRecord(r)
	}
	return out, nil
}

func readRecordsFile(ctx context.Context, path string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	recs, err := DecodeRecords(data)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: decode %s", path)
	}
	return recs, nil
}

// DecodeRecords parses a JSON array of objects or a FeatureCollection into
// generic records. Array entries that are not objects are dropped.
func DecodeRecords(data []byte) ([]map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var list []any
	if data[0] == '{' {
		var fc struct {
			Type     string `json:"type"`
			Features []any  `json:"features"`
		}
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrap(err, "dataset: decode feature collection")
		}
		if fc.Features == nil {
			return nil, eris.Errorf("dataset: object of type %q has no features", fc.Type)
		}
		list = fc.Features
	} else if err := json.Unmarshal(data, &list); err != nil {
		return nil, eris.Wrap(err, "dataset: decode record array")
	}

	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}
