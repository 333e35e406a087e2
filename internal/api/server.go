// Package api exposes the evaluator over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/habitability/internal/config"
	"github.com/sells-group/habitability/internal/dataset"
	"github.com/sells-group/habitability/internal/geo"
	"github.com/sells-group/habitability/internal/habitat"
	"github.com/sells-group/habitability/internal/metrics"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// StatsProvider reports dataset cache statistics.
type StatsProvider interface {
	Stats() dataset.CacheStats
}

// ReportCache stores encoded score reports keyed by normalized query.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, r *habitat.Report) error
}

// Locator maps a client IP to a coordinate.
type Locator interface {
	Locate(ip string) (geo.Coordinate, error)
}

// Server routes HTTP requests to an Evaluator.
type Server struct {
	ev      *habitat.Evaluator
	cfg     config.ServerConfig
	stats   StatsProvider
	reports ReportCache
	locator Locator
	router  chi.Router
}

// ServerOption configures optional Server collaborators.
type ServerOption func(*Server)

// WithReportCache serves repeated /score requests from c.
func WithReportCache(c ReportCache) ServerOption {
	return func(s *Server) { s.reports = c }
}

// WithLocator lets /score locate callers that send no coordinates.
func WithLocator(l Locator) ServerOption {
	return func(s *Server) { s.locator = l }
}

// NewServer builds the router. stats may be nil.
func NewServer(ev *habitat.Evaluator, cfg config.ServerConfig, stats StatsProvider, opts ...ServerOption) *Server {
	s := &Server{ev: ev, cfg: cfg, stats: stats}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, cacheHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimitRPS > 0 {
			r.Use(rateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
		}
		r.Get("/points", s.handlePoints)
		r.Get("/polygons", s.handlePolygons)
		r.Get("/nearby", s.handleNearby)
		r.Get("/stats", s.handleStats)
		r.Post("/score", s.handleScore)
		r.Post("/resolve", s.handleResolve)
	})

	return r
}
