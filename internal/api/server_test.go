package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/habitability/internal/channel"
	"github.com/sells-group/habitability/internal/config"
	"github.com/sells-group/habitability/internal/dataset"
	"github.com/sells-group/habitability/internal/geo"
	"github.com/sells-group/habitability/internal/habitat"
	"github.com/sells-group/habitability/internal/locate"
	"github.com/sells-group/habitability/internal/spatial"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func degLat(m float64) float64 {
	return m / (geo.EarthRadiusMeters * math.Pi / 180)
}

func testSnapshot(t *testing.T) *dataset.Snapshot {
	t.Helper()
	g, err := geo.NewPolygon([]geom.Coord{{-73.01, 39.99}, {-72.99, 39.99}, {-72.99, 40.01}, {-73.01, 40.01}})
	require.NoError(t, err)
	crime := 2.0
	return &dataset.Snapshot{
		Points: []spatial.Point{
			{Name: "Stop A", Category: spatial.TransitCategory, Coordinate: geo.Coordinate{Lat: 40 + degLat(100), Lng: -73}},
			{Name: "Green", Category: "Park", Coordinate: geo.Coordinate{Lat: 40 + degLat(300), Lng: -73}},
		},
		Zones: []spatial.Zone{
			{Aspect: spatial.AspectCrimeRate, Value: &crime, Geometry: g},
		},
	}
}

type fakeStats struct{}

func (fakeStats) Stats() dataset.CacheStats {
	return dataset.CacheStats{Hits: 3, Misses: 1, HitRate: 0.75}
}

type brokenData struct{}

func (brokenData) Snapshot(context.Context) (*dataset.Snapshot, error) {
	return nil, errors.New("disk on fire")
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *Server {
	t.Helper()
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{"*"}
	}
	ev := habitat.NewEvaluator(dataset.NewStatic(testSnapshot(t)),
		habitat.WithPreferences(channel.Preferences{"Park": "good"}),
		habitat.WithQueryLimits(500, 5000),
	)
	return NewServer(ev, cfg, fakeStats{})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, config.ServerConfig{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeMap(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestPointsAndPolygons(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	rec := do(t, s, http.MethodGet, "/points", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "FeatureCollection", body["type"])
	assert.Len(t, body["features"], 2)

	rec = do(t, s, http.MethodGet, "/polygons", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeMap(t, rec)
	features := body["features"].([]any)
	require.Len(t, features, 1)
	props := features[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, spatial.AspectCrimeRate, props["aspect"])
	assert.InDelta(t, 2.0, props["value"], 1e-12)
}

func TestScore(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	rec := do(t, s, http.MethodPost, "/score", `{"lat": 40, "lng": -73, "radius_m": 500}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep habitat.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, 2, rep.NearbyPoints)
	assert.Equal(t, []float64{0.3}, roundAll(rep.Channels.PositiveKm))
	assert.Greater(t, rep.Score.Score, 0.0)
	assert.Equal(t, spatial.StatusCenterInside, rep.Resolutions[spatial.AspectCrimeRate].Status)
}

func TestScore_RequestPreferences(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	rec := do(t, s, http.MethodPost, "/score", `{"lat": 40, "lng": -73, "preferences": {"Park": "bad"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep habitat.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Empty(t, rep.Channels.PositiveKm)
	assert.Len(t, rep.Channels.NegativeKm, 1)
	assert.Equal(t, 500.0, rep.Query.RadiusMeters)
}

func TestScore_RequestPreferencesCaseInsensitiveValues(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	rec := do(t, s, http.MethodPost, "/score", `{"lat": 40, "lng": -73, "preferences": {"Park": " BAD "}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep habitat.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Empty(t, rep.Channels.PositiveKm)
	assert.Len(t, rep.Channels.NegativeKm, 1)
	assert.Equal(t, "bad", rep.Query.Preferences["Park"])
}

func TestScore_BadRequests(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"lat":`, http.StatusBadRequest},
		{"unknown field", `{"lat": 1, "lng": 1, "zoom": 3}`, http.StatusBadRequest},
		{"missing lng", `{"lat": 40}`, http.StatusBadRequest},
		{"lat out of range", `{"lat": 95, "lng": 0}`, http.StatusBadRequest},
		{"radius too large", `{"lat": 40, "lng": -73, "radius_m": 9000}`, http.StatusBadRequest},
		{"negative radius", `{"lat": 40, "lng": -73, "radius_m": -5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/score", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeMap(t, rec)["error"])
		})
	}
}

func TestScore_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	body := `{"lat": 40, "lng": -73, "preferences": {"x": "` + strings.Repeat("a", maxBodyBytes) + `"}}`
	rec := do(t, s, http.MethodPost, "/score", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestResolve(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	rec := do(t, s, http.MethodPost, "/resolve", `{"lat": 40, "lng": -73, "aspect": "crime_rate"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeMap(t, rec)
	assert.Equal(t, string(spatial.StatusCenterInside), body["status"])
	assert.InDelta(t, 2.0, body["value"], 1e-12)

	rec = do(t, s, http.MethodPost, "/resolve", `{"lat": 40, "lng": -73, "aspect": "rent"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(spatial.StatusOutOfBounds), decodeMap(t, rec)["status"])

	rec = do(t, s, http.MethodPost, "/resolve", `{"lat": 40, "lng": -73}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNearby(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	rec := do(t, s, http.MethodGet, "/nearby?lat=40&lng=-73&radius_m=200", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeMap(t, rec)
	assert.Len(t, body["points"], 1)
	assert.Len(t, body["zones"], 1)

	rec = do(t, s, http.MethodGet, "/nearby?lat=40&lng=-73", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeMap(t, rec)["points"], 2)

	for _, target := range []string{"/nearby?lng=-73", "/nearby?lat=x&lng=-73", "/nearby?lat=40&lng=-73&radius_m=0"} {
		rec = do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestStats(t *testing.T) {
	rec := do(t, newTestServer(t, config.ServerConfig{}), http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.InDelta(t, 3, body["hits"], 0)
	assert.InDelta(t, 0.75, body["hit_rate"], 1e-12)

	ev := habitat.NewEvaluator(dataset.NewStatic(&dataset.Snapshot{}))
	rec = do(t, NewServer(ev, config.ServerConfig{}, nil), http.MethodGet, "/stats", "")
	assert.Equal(t, "disabled", decodeMap(t, rec)["cache"])
}

func TestDatasetFailure(t *testing.T) {
	s := NewServer(habitat.NewEvaluator(brokenData{}), config.ServerConfig{}, nil)

	rec := do(t, s, http.MethodGet, "/points", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeMap(t, rec)["error"])

	rec = do(t, s, http.MethodPost, "/score", `{"lat": 40, "lng": -73}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 2})

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/points", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/points", "").Code)
	rec := do(t, s, http.MethodGet, "/points", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Health checks are never limited.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/score", `{"lat": 40, "lng": -73}`).Code)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `habitat_http_requests_total{code="200",route="/score"}`)
	assert.Contains(t, body, "habitat_evaluations_total")
	assert.Contains(t, body, `habitat_resolutions_total{aspect="crime_rate",status="center_inside"}`)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{AllowedOrigins: []string{"https://map.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/score", nil)
	req.Header.Set("Origin", "https://map.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, "https://map.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func roundAll(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = math.Round(v*1000) / 1000
	}
	return out
}

// memReports is an in-memory ReportCache.
type memReports struct {
	entries map[string][]byte
	puts    int
}

func (m *memReports) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := m.entries[key]
	return raw, ok, nil
}

func (m *memReports) Put(_ context.Context, key string, r *habitat.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.puts++
	return nil
}

func TestScore_ReportCache(t *testing.T) {
	reports := &memReports{entries: map[string][]byte{}}
	ev := habitat.NewEvaluator(dataset.NewStatic(testSnapshot(t)), habitat.WithQueryLimits(500, 5000))
	s := NewServer(ev, config.ServerConfig{AllowedOrigins: []string{"*"}}, nil, WithReportCache(reports))

	first := do(t, s, http.MethodPost, "/score", `{"lat": 40, "lng": -73}`)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "miss", first.Header().Get(cacheHeader))

	// Explicit default radius shares the entry.
	second := do(t, s, http.MethodPost, "/score", `{"lat": 40, "lng": -73, "radius_m": 500}`)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "hit", second.Header().Get(cacheHeader))
	assert.Equal(t, decodeMap(t, first)["id"], decodeMap(t, second)["id"])
	assert.Equal(t, 1, reports.puts)

	third := do(t, s, http.MethodPost, "/score", `{"lat": 40, "lng": -73, "preferences": {"Park": "bad"}}`)
	assert.Equal(t, "miss", third.Header().Get(cacheHeader))
	assert.Equal(t, 2, reports.puts)

	bad := do(t, s, http.MethodPost, "/score", `{"lat": 95, "lng": -73}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, 2, reports.puts)
}

// fixedLocator places every routable IP at one coordinate.
type fixedLocator struct {
	at     geo.Coordinate
	lastIP string
}

func (f *fixedLocator) Locate(ip string) (geo.Coordinate, error) {
	f.lastIP = ip
	switch ip {
	case "bogus":
		return geo.Coordinate{}, eris.Wrap(locate.ErrInvalidIP, "bogus")
	case "10.0.0.1":
		return geo.Coordinate{}, eris.Wrap(locate.ErrNotLocated, "10.0.0.1")
	case "203.0.113.9":
		return geo.Coordinate{}, errors.New("database unavailable")
	}
	return f.at, nil
}

func TestScore_LocateByIP(t *testing.T) {
	loc := &fixedLocator{at: geo.Coordinate{Lat: 40, Lng: -73}}
	ev := habitat.NewEvaluator(dataset.NewStatic(testSnapshot(t)), habitat.WithQueryLimits(500, 5000))
	s := NewServer(ev, config.ServerConfig{AllowedOrigins: []string{"*"}}, nil, WithLocator(loc))

	rec := do(t, s, http.MethodPost, "/score", `{"ip": "81.2.69.142"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "81.2.69.142", loc.lastIP)
	center := decodeMap(t, rec)["query"].(map[string]any)["center"].(map[string]any)
	assert.InDelta(t, 40, center["lat"], 1e-12)

	// Without an ip field the caller's address is used.
	req := httptest.NewRequest(http.MethodPost, "/score", strings.NewReader(`{}`))
	req.RemoteAddr = "198.51.100.7:41234"
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "198.51.100.7:41234", loc.lastIP)

	tests := []struct {
		body string
		want int
	}{
		{`{"ip": "bogus"}`, http.StatusBadRequest},
		{`{"ip": "10.0.0.1"}`, http.StatusUnprocessableEntity},
		{`{"ip": "203.0.113.9"}`, http.StatusInternalServerError},
		{`{"lat": 40, "ip": "81.2.69.142"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodPost, "/score", tt.body)
		assert.Equal(t, tt.want, rec.Code, tt.body)
	}
}

func TestScore_NoLocator(t *testing.T) {
	rec := do(t, newTestServer(t, config.ServerConfig{}), http.MethodPost, "/score", `{"ip": "81.2.69.142"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "lat and lng are required", decodeMap(t, rec)["error"])
}
