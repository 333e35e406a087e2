package dataset

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/habitability/internal/db"
	"github.com/sells-group/habitability/internal/spatial"
)

// PostgresSource reads records from the habitat schema.
type PostgresSource struct {
	pool db.Pool
}

// NewPostgresSource returns a source backed by pool.
func NewPostgresSource(pool db.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Points reads habitat.points in insertion order.
func (s *PostgresSource) Points(ctx context.Context) ([]spatial.PointRecord, error) {
	query := fmt.Sprintf(
		"SELECT name, category, lat, lng, properties::text FROM %s ORDER BY id",
		db.PointsTable.QualifiedName(),
	)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: query points")
	}
	defer rows.Close()

	var out []spatial.PointRecord
	for rows.Next() {
		var (
			name       *string
			category   string
			lat, lng   float64
			properties string
		)
		if err := rows.Scan(&name, &category, &lat, &lng, &properties); err != nil {
			return nil, eris.Wrap(err, "dataset: scan point row")
		}
		rec, err := pointRecordFromColumns(name, category, lat, lng, properties)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "dataset: iterate points")
}

// Zones reads habitat.zones in insertion order.
func (s *PostgresSource) Zones(ctx context.Context) ([]spatial.ZoneRecord, error) {
	query := fmt.Sprintf(
		"SELECT aspect, value, transit_distance, geometry, properties::text FROM %s ORDER BY id",
		db.ZonesTable.QualifiedName(),
	)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: query zones")
	}
	defer rows.Close()

	var out []spatial.ZoneRecord
	for rows.Next() {
		var (
			aspect          string
			value           *float64
			transitDistance *float64
			geometry        string
			properties      string
		)
		if err := rows.Scan(&aspect, &value, &transitDistance, &geometry, &properties); err != nil {
			return nil, eris.Wrap(err, "dataset: scan zone row")
		}
		rec, err := zoneRecordFromColumns(aspect, value, transitDistance, geometry, properties)
		if err != nil {
			zap.L().Debug("dataset: skipping zone row", zap.String("aspect", aspect), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "dataset: iterate zones")
}

// ImportPostgres replaces the habitat tables with the snapshot's contents.
func ImportPostgres(ctx context.Context, pool db.Pool, snap *Snapshot) (int64, error) {
	points, zones, err := snapshotRows(snap)
	if err != nil {
		return 0, err
	}
	n, err := db.ReplaceAll(ctx, pool,
		[]db.Table{db.PointsTable, db.ZonesTable},
		[][][]any{points, zones},
	)
	if err != nil {
		return 0, eris.Wrap(err, "dataset: import postgres")
	}
	return n, nil
}
