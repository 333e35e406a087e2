package dataset

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/habitability/internal/spatial"
)

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"array", `[{"a": 1}, {"b": 2}]`, 2, false},
		{"array drops non-objects", `[{"a": 1}, 3, "x", null]`, 1, false},
		{"feature collection", `{"type": "FeatureCollection", "features": [{"type": "Feature"}]}`, 1, false},
		{"empty", "  ", 0, false},
		{"object without features", `{"type": "Feature"}`, 0, true},
		{"malformed", `[{"a": 1}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecords([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestFileSource(t *testing.T) {
	src := fixtureFileSource(t)
	ctx := context.Background()

	points, err := src.Points(ctx)
	require.NoError(t, err)
	assert.Len(t, points, 3)
	assert.Equal(t, "Stop A", points[0]["name"])

	zones, err := src.Zones(ctx)
	require.NoError(t, err)
	assert.Len(t, zones, 3)
}

func TestFileSource_MissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.json"), "")
	_, err := src.Points(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset: read")
}

func TestFileSource_CanceledContext(t *testing.T) {
	src := fixtureFileSource(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Zones(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_Normalizes(t *testing.T) {
	snap, err := Load(context.Background(), fixtureFileSource(t))
	require.NoError(t, err)

	require.Len(t, snap.Points, 2, "record without a position is skipped")
	assert.Equal(t, "Green", snap.Points[1].Name)
	assert.Equal(t, "Park", snap.Points[1].Category)

	require.Len(t, snap.Zones, 2, "record without a polygon is skipped")
	assert.Equal(t, spatial.AspectCrimeRate, snap.Zones[0].Aspect)
	require.NotNil(t, snap.Zones[0].Value)
	assert.InDelta(t, 3.5, *snap.Zones[0].Value, 1e-12)
	assert.Equal(t, spatial.AspectTransitAccess, snap.Zones[1].Aspect)
	require.NotNil(t, snap.Zones[1].TransitDistance)
	assert.InDelta(t, 0.25, *snap.Zones[1].TransitDistance, 1e-12)
	assert.False(t, snap.LoadedAt.IsZero())
}

func TestLoad_Error(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.json"), filepath.Join(t.TempDir(), "missing.json"))
	_, err := Load(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset: load")
}

func TestStatic(t *testing.T) {
	snap := &Snapshot{}
	got, err := NewStatic(snap).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, got)
}
