package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/habitability/internal/channel"
	"github.com/sells-group/habitability/internal/config"
	"github.com/sells-group/habitability/internal/dataset"
	"github.com/sells-group/habitability/internal/habitat"
	"github.com/sells-group/habitability/internal/scorer"
)

// queryEnv holds the dependencies shared by every query command.
type queryEnv struct {
	Evaluator *habitat.Evaluator
	Data      *dataset.CachedSource
	close     func()
}

// Close releases the dataset handle.
func (e *queryEnv) Close() {
	if e.close != nil {
		e.close()
	}
}

// initQueryEnv validates config for mode, opens the dataset, and builds the
// evaluator.
func initQueryEnv(ctx context.Context, c *config.Config, mode string) (*queryEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}
	if err := scorer.ValidateConfig(c.Scorer); err != nil {
		return nil, err
	}

	prefs := channel.Preferences{}
	if c.Query.PreferencesPath != "" {
		p, err := channel.LoadPreferences(c.Query.PreferencesPath)
		if err != nil {
			return nil, err
		}
		prefs = p
	}

	data, cleanup, err := dataset.Open(ctx, c.Data)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("query env ready",
		zap.String("driver", c.Data.Driver),
		zap.Int("preferences", len(prefs)),
		zap.Duration("cache_ttl", time.Duration(c.Data.CacheTTLSecs)*time.Second),
	)

	ev := habitat.NewEvaluator(data,
		habitat.WithPreferences(prefs),
		habitat.WithScorerConfig(c.Scorer),
		habitat.WithQueryLimits(c.Query.DefaultRadiusM, c.Query.MaxRadiusM),
	)
	return &queryEnv{Evaluator: ev, Data: data, close: cleanup}, nil
}

// parsePreferences parses "Category=good,Other=bad" into a preference map.
func parsePreferences(s string) (channel.Preferences, error) {
	prefs := channel.Preferences{}
	if strings.TrimSpace(s) == "" {
		return prefs, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, eris.Errorf("preferences: %q is not Category=good|bad", pair)
		}
		prefs[k] = v
	}
	return prefs.Normalize(), nil
}
