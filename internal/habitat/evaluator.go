// Package habitat evaluates a location against the loaded dataset: it filters
// nearby points and zones, resolves each aspect, builds proximity channels,
// and computes the habitability score.
package habitat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/habitability/internal/channel"
	"github.com/sells-group/habitability/internal/config"
	"github.com/sells-group/habitability/internal/dataset"
	"github.com/sells-group/habitability/internal/geo"
	"github.com/sells-group/habitability/internal/metrics"
	"github.com/sells-group/habitability/internal/scorer"
	"github.com/sells-group/habitability/internal/spatial"
)

// statAspects are the zone aspects whose values feed the score directly.
var statAspects = []string{
	spatial.AspectAirQuality,
	spatial.AspectCrimeRate,
	spatial.AspectRent,
	spatial.AspectSchoolQuality,
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPreferences sets the baseline category preferences. Per-query
// preferences are merged on top.
func WithPreferences(p channel.Preferences) Option {
	return func(e *Evaluator) {
		e.prefs = p
	}
}

// WithScorerConfig sets the scoring curve intensities.
func WithScorerConfig(c config.ScorerConfig) Option {
	return func(e *Evaluator) {
		e.scoring = c
	}
}

// WithQueryLimits sets the default and maximum query radius in meters.
func WithQueryLimits(defaultRadius, maxRadius float64) Option {
	return func(e *Evaluator) {
		e.defaultRadius = defaultRadius
		e.maxRadius = maxRadius
	}
}

// Evaluator answers habitability queries against a dataset.
type Evaluator struct {
	data          dataset.Snapshotter
	prefs         channel.Preferences
	scoring       config.ScorerConfig
	defaultRadius float64
	maxRadius     float64
}

// NewEvaluator creates an Evaluator over data.
func NewEvaluator(data dataset.Snapshotter, opts ...Option) *Evaluator {
	e := &Evaluator{
		data:          data,
		scoring:       scorer.DefaultScorerConfig(),
		defaultRadius: 1000,
		maxRadius:     5000,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultRadius is the radius used when a query leaves it unset.
func (e *Evaluator) DefaultRadius() float64 {
	return e.defaultRadius
}

// Report is the full result of one evaluation.
type Report struct {
	ID           string                              `json:"id"`
	Query        Query                               `json:"query"`
	Score        scorer.Result                       `json:"score"`
	Resolutions  map[string]spatial.AspectResolution `json:"resolutions"`
	Transit      spatial.TransitResolution           `json:"transit"`
	TransitKm    []float64                           `json:"transit_km"`
	Channels     channel.Channels                    `json:"channels"`
	NearbyPoints int                                 `json:"nearby_points"`
	NearbyZones  int                                 `json:"nearby_zones"`
	ComputedAt   time.Time                           `json:"computed_at"`
}

// Evaluate scores q. A zero radius uses the default radius.
func (e *Evaluator) Evaluate(ctx context.Context, q Query) (*Report, error) {
	start := time.Now()
	if q.RadiusMeters == 0 {
		q.RadiusMeters = e.defaultRadius
	}
	if err := ValidateCenter(q.Center); err != nil {
		return nil, err
	}
	if err := ValidateRadius(q.RadiusMeters, e.maxRadius); err != nil {
		return nil, err
	}

	near, err := e.Nearby(ctx, q.Center, q.RadiusMeters)
	if err != nil {
		return nil, err
	}

	byAspect := spatial.GroupZonesByAspect(near.Zones)
	resolutions := make([]spatial.AspectResolution, len(statAspects))
	var transit spatial.TransitResolution

	g, gctx := errgroup.WithContext(ctx)
	for i, aspect := range statAspects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := spatial.ResolveAspect(q.Center, byAspect[aspect])
			res.Aspect = aspect
			resolutions[i] = res
			return nil
		})
	}
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		transit = spatial.ResolveTransitZone(q.Center, byAspect[spatial.AspectTransitAccess])
		transit.Aspect = spatial.AspectTransitAccess
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "habitat: resolve aspects")
	}

	transitKm := TransitDistancesKm(near.Points, transit)
	ch := channel.Build(near.Points, e.prefs.Merge(q.Preferences))

	in := scorer.Input{
		TransitKm: transitKm,
		Pairs:     ch.Pairs,
	}
	resMap := make(map[string]spatial.AspectResolution, len(resolutions))
	for _, res := range resolutions {
		resMap[res.Aspect] = res
		v := statValue(res)
		switch res.Aspect {
		case spatial.AspectAirQuality:
			in.Air = v
		case spatial.AspectCrimeRate:
			in.Crime = v
		case spatial.AspectRent:
			in.Rent = v
		case spatial.AspectSchoolQuality:
			in.School = v
		}
	}

	report := &Report{
		ID:           uuid.New().String(),
		Query:        q,
		Score:        scorer.Compute(in, e.scoring),
		Resolutions:  resMap,
		Transit:      transit,
		TransitKm:    transitKm,
		Channels:     ch,
		NearbyPoints: len(near.Points),
		NearbyZones:  len(near.Zones),
		ComputedAt:   time.Now().UTC(),
	}

	metrics.EvaluationsTotal.Inc()
	metrics.EvaluationSeconds.Observe(time.Since(start).Seconds())
	metrics.ScoreValue.Observe(report.Score.Score)
	for _, res := range resolutions {
		metrics.ResolutionsTotal.WithLabelValues(res.Aspect, string(res.Status)).Inc()
	}
	metrics.ResolutionsTotal.WithLabelValues(transit.Aspect, string(transit.Status)).Inc()

	zap.L().Info("habitat: evaluated",
		zap.String("report_id", report.ID),
		zap.Float64("lat", q.Center.Lat),
		zap.Float64("lng", q.Center.Lng),
		zap.Float64("radius_m", q.RadiusMeters),
		zap.Int("points", report.NearbyPoints),
		zap.Int("zones", report.NearbyZones),
		zap.Float64("score", report.Score.Score),
	)
	return report, nil
}

// statValue is the resolved zone value, nil when out of bounds or missing.
func statValue(res spatial.AspectResolution) *float64 {
	if !res.Found() {
		return nil
	}
	return res.Value
}

// TransitDistancesKm combines the distances of nearby transit points with the
// resolved transit zone's distance. The zone contributes its transit distance
// converted from miles, plus the gap to its boundary when the center lies
// outside it.
func TransitDistancesKm(hits []spatial.PointHit, transit spatial.TransitResolution) []float64 {
	out := spatial.CollectTransitDistancesKm(hits)
	km, ok := transit.TransitDistanceKm()
	if !ok {
		return out
	}
	if transit.Status == spatial.StatusNearSingleZone {
		km += transit.DistanceToBoundaryM / 1000
	}
	return append(out, km)
}

// Nearby is the part of the dataset within a query circle.
type Nearby struct {
	Center       geo.Coordinate     `json:"center"`
	RadiusMeters float64            `json:"radius_m"`
	Points       []spatial.PointHit `json:"points"`
	Zones        []spatial.Zone     `json:"zones"`
}

// Nearby returns the points within radius of center and the zones whose
// polygon intersects that circle.
func (e *Evaluator) Nearby(ctx context.Context, center geo.Coordinate, radius float64) (*Nearby, error) {
	if err := ValidateCenter(center); err != nil {
		return nil, err
	}
	if err := ValidateRadius(radius, e.maxRadius); err != nil {
		return nil, err
	}
	snap, err := e.data.Snapshot(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "habitat: load dataset")
	}
	return &Nearby{
		Center:       center,
		RadiusMeters: radius,
		Points:       spatial.FilterPointsInRadius(center, radius, snap.Points),
		Zones:        spatial.FilterZonesInRadius(center, radius, snap.Zones),
	}, nil
}

// Resolve resolves one aspect at center among the zones of that aspect that
// intersect the query circle. A zero radius uses the default radius. Transit
// zones also report their transit distance.
func (e *Evaluator) Resolve(ctx context.Context, center geo.Coordinate, radius float64, aspect string) (spatial.TransitResolution, error) {
	if radius == 0 {
		radius = e.defaultRadius
	}
	if aspect == "" {
		return spatial.TransitResolution{}, eris.Wrap(ErrInvalidQuery, "aspect is required")
	}
	near, err := e.Nearby(ctx, center, radius)
	if err != nil {
		return spatial.TransitResolution{}, err
	}

	var candidates []spatial.Zone
	for _, z := range near.Zones {
		if z.Aspect == aspect {
			candidates = append(candidates, z)
		}
	}

	res := spatial.ResolveTransitZone(center, candidates)
	res.Aspect = aspect
	if aspect != spatial.AspectTransitAccess {
		res.TransitDistanceMiles = nil
	}
	return res, nil
}

// Points returns every normalized point in the dataset.
func (e *Evaluator) Points(ctx context.Context) ([]spatial.Point, error) {
	snap, err := e.data.Snapshot(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "habitat: load dataset")
	}
	return snap.Points, nil
}

// Zones returns every normalized zone in the dataset.
func (e *Evaluator) Zones(ctx context.Context) ([]spatial.Zone, error) {
	snap, err := e.data.Snapshot(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "habitat: load dataset")
	}
	return snap.Zones, nil
}
