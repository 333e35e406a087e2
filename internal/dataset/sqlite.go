package dataset

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/habitability/internal/spatial"
)

// SQLiteSource reads records from a SQLite file with the same layout as the
// habitat Postgres schema.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLite opens the SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteSource, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSource{db: conn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS points (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT,
	category   TEXT NOT NULL DEFAULT '',
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS zones (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	aspect           TEXT NOT NULL,
	value            REAL,
	transit_distance REAL,
	geometry         TEXT NOT NULL,
	properties       TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_points_category ON points(category);
CREATE INDEX IF NOT EXISTS idx_zones_aspect ON zones(aspect);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteSource) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Points reads the points table in insertion order.
func (s *SQLiteSource) Points(ctx context.Context) ([]spatial.PointRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, category, lat, lng, properties FROM points ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query points")
	}
	defer rows.Close()

	var out []spatial.PointRecord
	for rows.Next() {
		var (
			name       sql.NullString
			category   string
			lat, lng   float64
			properties string
		)
		if err := rows.Scan(&name, &category, &lat, &lng, &properties); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point row")
		}
		var namePtr *string
		if name.Valid {
			namePtr = &name.String
		}
		rec, err := pointRecordFromColumns(namePtr, category, lat, lng, properties)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate points")
}

// Zones reads the zones table in insertion order.
func (s *SQLiteSource) Zones(ctx context.Context) ([]spatial.ZoneRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT aspect, value, transit_distance, geometry, properties FROM zones ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query zones")
	}
	defer rows.Close()

	var out []spatial.ZoneRecord
	for rows.Next() {
		var (
			aspect          string
			value           sql.NullFloat64
			transitDistance sql.NullFloat64
			geometry        string
			properties      string
		)
		if err := rows.Scan(&aspect, &value, &transitDistance, &geometry, &properties); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone row")
		}
		rec, err := zoneRecordFromColumns(aspect, nullFloat(value), nullFloat(transitDistance), geometry, properties)
		if err != nil {
			zap.L().Debug("sqlite: skipping zone row", zap.String("aspect", aspect), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate zones")
}

// Import replaces both tables with the snapshot's contents in one transaction.
func (s *SQLiteSource) Import(ctx context.Context, snap *Snapshot) (int64, error) {
	points, zones, err := snapshotRows(snap)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DELETE FROM points", "DELETE FROM zones"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, eris.Wrapf(err, "sqlite: %s", stmt)
		}
	}

	var n int64
	for _, row := range points {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO points (name, category, lat, lng, properties) VALUES (?, ?, ?, ?, ?)`,
			row...,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert point")
		}
		n++
	}
	for _, row := range zones {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO zones (aspect, value, transit_distance, geometry, properties) VALUES (?, ?, ?, ?, ?)`,
			row...,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert zone")
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return n, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
