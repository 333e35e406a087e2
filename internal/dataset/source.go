// Package dataset loads point and zone records from files, shapefiles, or a
// database and hands normalized snapshots to the evaluator.
package dataset

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/habitability/internal/spatial"
)

// Source yields raw point and zone records.
type Source interface {
	Points(ctx context.Context) ([]spatial.PointRecord, error)
	Zones(ctx context.Context) ([]spatial.ZoneRecord, error)
}

// Snapshot is a normalized, read-only view of a source at one instant.
type Snapshot struct {
	Points   []spatial.Point
	Zones    []spatial.Zone
	LoadedAt time.Time
}

// Snapshotter returns the current dataset snapshot.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Load reads both record sets from src concurrently and normalizes them.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	var (
		points []spatial.PointRecord
		zones  []spatial.ZoneRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		points, err = src.Points(gctx)
		return eris.Wrap(err, "dataset: load points")
	})
	g.Go(func() error {
		var err error
		zones, err = src.Zones(gctx)
		return eris.Wrap(err, "dataset: load zones")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Points:   spatial.NormalizePoints(points),
		Zones:    spatial.NormalizeZones(zones),
		LoadedAt: time.Now(),
	}
	zap.L().Info("dataset: snapshot loaded",
		zap.Int("point_records", len(points)),
		zap.Int("points", len(snap.Points)),
		zap.Int("zone_records", len(zones)),
		zap.Int("zones", len(snap.Zones)),
	)
	return snap, nil
}

// Static serves a fixed snapshot.
type Static struct {
	snap *Snapshot
}

// NewStatic wraps an already-built snapshot.
func NewStatic(snap *Snapshot) *Static {
	return &Static{snap: snap}
}

// Snapshot returns the wrapped snapshot.
func (s *Static) Snapshot(context.Context) (*Snapshot, error) {
	return s.snap, nil
}
