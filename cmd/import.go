package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/habitability/internal/dataset"
	"github.com/sells-group/habitability/internal/db"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the configured dataset into Postgres or SQLite",
	Long: `Load points and zones from the configured source (usually JSON files or
shapefiles), normalize them, and replace the contents of a database so later
runs can use data.driver=postgres or data.driver=sqlite.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		to, _ := cmd.Flags().GetString("to")
		databaseURL, _ := cmd.Flags().GetString("database-url")
		sqlitePath, _ := cmd.Flags().GetString("sqlite-path")

		if err := cfg.Validate("query"); err != nil {
			return err
		}
		src, cleanup, err := dataset.Open(ctx, cfg.Data)
		if err != nil {
			return err
		}
		defer cleanup()

		snap, err := src.Snapshot(ctx)
		if err != nil {
			return err
		}

		var n int64
		switch to {
		case "postgres":
			if databaseURL == "" {
				databaseURL = cfg.Data.DatabaseURL
			}
			if databaseURL == "" {
				return eris.New("import: --database-url or data.database_url is required")
			}
			pool, err := db.Connect(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			if n, err = dataset.ImportPostgres(ctx, pool, snap); err != nil {
				return err
			}

		case "sqlite":
			if sqlitePath == "" {
				sqlitePath = cfg.Data.SQLitePath
			}
			if sqlitePath == "" {
				return eris.New("import: --sqlite-path or data.sqlite_path is required")
			}
			s, err := dataset.NewSQLite(sqlitePath)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			if err := s.Migrate(ctx); err != nil {
				return err
			}
			if n, err = s.Import(ctx, snap); err != nil {
				return err
			}

		default:
			return eris.Errorf("import: --to must be postgres or sqlite (got %q)", to)
		}

		zap.L().Info("import complete",
			zap.String("to", to),
			zap.Int("points", len(snap.Points)),
			zap.Int("zones", len(snap.Zones)),
			zap.Int64("rows", n),
		)
		fmt.Printf("Imported %d points and %d zones into %s\n", len(snap.Points), len(snap.Zones), to)
		return nil
	},
}

func init() {
	f := importCmd.Flags()
	f.String("to", "sqlite", "target database: postgres or sqlite")
	f.String("database-url", "", "Postgres URL (default data.database_url)")
	f.String("sqlite-path", "", "SQLite file (default data.sqlite_path)")
	rootCmd.AddCommand(importCmd)
}
