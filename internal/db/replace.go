package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Table names a schema-qualified target and the columns loaded into it.
type Table struct {
	Schema  string
	Name    string
	Columns []string
}

func (t Table) identifier() pgx.Identifier {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}
	}
	return pgx.Identifier{t.Schema, t.Name}
}

func (t Table) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Tables used by the Postgres dataset.
var (
	PointsTable = Table{
		Schema:  "habitat",
		Name:    "points",
		Columns: []string{"name", "category", "lat", "lng", "properties"},
	}
	ZonesTable = Table{
		Schema:  "habitat",
		Name:    "zones",
		Columns: []string{"aspect", "value", "transit_distance", "geometry", "properties"},
	}
)

// ReplaceAll swaps the contents of every table in one transaction: each table
// is emptied and then loaded with COPY. rows[i] belongs to tables[i]. Returns
// the total number of rows copied.
func ReplaceAll(ctx context.Context, pool Pool, tables []Table, rows [][][]any) (int64, error) {
	if len(tables) != len(rows) {
		return 0, eris.Errorf("db: replace: %d tables but %d row sets", len(tables), len(rows))
	}
	for _, t := range tables {
		if len(t.Columns) == 0 {
			return 0, eris.Errorf("db: replace %s: no columns specified", t)
		}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	for i, t := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", t.identifier().Sanitize())); err != nil {
			return 0, eris.Wrapf(err, "db: replace: clear %s", t)
		}
		if len(rows[i]) == 0 {
			continue
		}
		n, err := tx.CopyFrom(ctx, t.identifier(), t.Columns, pgx.CopyFromRows(rows[i]))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace: COPY INTO %s", t)
		}
		total += n
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return total, nil
}

// SelectList returns a quoted, comma-separated column list for t.
func (t Table) SelectList() string {
	quoted := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// QualifiedName returns the sanitized schema-qualified table name.
func (t Table) QualifiedName() string {
	return t.identifier().Sanitize()
}
