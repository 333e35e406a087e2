package dataset

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/habitability/internal/config"
	"github.com/sells-group/habitability/internal/db"
)

// Open builds the source selected by cfg.Driver wrapped in a CachedSource.
// The returned cleanup releases any database handle and is never nil.
func Open(ctx context.Context, cfg config.DataConfig) (*CachedSource, func(), error) {
	src, cleanup, err := openSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
	return NewCachedSource(src, ttl), cleanup, nil
}

func openSource(ctx context.Context, cfg config.DataConfig) (Source, func(), error) {
	noop := func() {}

	switch cfg.Driver {
	case "", "file":
		return NewFileSource(cfg.PointsPath, cfg.PolygonsPath), noop, nil

	case "shapefile":
		return &ShapefileSource{PointsPath: cfg.PointsPath, Files: cfg.Shapefiles}, noop, nil

	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "dataset: open postgres")
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, eris.Wrap(err, "dataset: migrate postgres")
		}
		return NewPostgresSource(pool), pool.Close, nil

	case "sqlite":
		s, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, eris.Wrap(err, "dataset: open sqlite")
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, eris.Wrap(err, "dataset: migrate sqlite")
		}
		return s, func() { _ = s.Close() }, nil

	case "s3":
		s, err := NewObjectSource(cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	default:
		return nil, nil, eris.Errorf("dataset: unknown driver %q", cfg.Driver)
	}
}
