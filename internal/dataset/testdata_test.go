package dataset

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/habitability/internal/spatial"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const pointsJSON = `[
  {"name": "Stop A", "category": "Transit", "lat": 40.0, "lng": -73.0},
  {"title": "Green", "type": "Park", "latitude": 40.001, "longitude": -73.001},
  {"name": "No position", "category": "Cafe"}
]`

const polygonsFC = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Polygon", "coordinates": [[[-73.01, 39.99], [-72.99, 39.99], [-72.99, 40.01], [-73.01, 40.01], [-73.01, 39.99]]]},
      "properties": {"aspect": "crime_rate", "value": 3.5, "district": "north"}
    },
    {
      "aspect": "transit_access",
      "transit_distance": 0.25,
      "coordinates": [[-73.02, 39.98], [-72.98, 39.98], [-72.98, 40.02], [-73.02, 40.02]]
    },
    {"aspect": "rent", "value": 1200}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fixtureFileSource(t *testing.T) *FileSource {
	t.Helper()
	dir := t.TempDir()
	return NewFileSource(
		writeFile(t, dir, "features.json", pointsJSON),
		writeFile(t, dir, "features_poly.json", polygonsFC),
	)
}

// countingSource counts Points calls and can be told to fail.
type countingSource struct {
	calls atomic.Int64
	fail  error
	inner Source
}

func (c *countingSource) Points(ctx context.Context) ([]spatial.PointRecord, error) {
	c.calls.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.inner.Points(ctx)
}

func (c *countingSource) Zones(ctx context.Context) ([]spatial.ZoneRecord, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	return c.inner.Zones(ctx)
}

func ptr[T any](v T) *T { return &v }
