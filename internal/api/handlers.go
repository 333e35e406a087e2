package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/habitability/internal/channel"
	"github.com/sells-group/habitability/internal/geo"
	"github.com/sells-group/habitability/internal/habitat"
	"github.com/sells-group/habitability/internal/locate"
	"github.com/sells-group/habitability/internal/metrics"
	"github.com/sells-group/habitability/internal/reportcache"
	"github.com/sells-group/habitability/internal/spatial"
)

// cacheHeader reports whether a /score response came from the report cache.
const cacheHeader = "X-Cache"

type scoreRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
	// IP is located when lat/lng are absent; empty means the caller's address.
	IP          string              `json:"ip"`
	RadiusM     float64             `json:"radius_m"`
	Preferences channel.Preferences `json:"preferences"`
}

type resolveRequest struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	RadiusM float64  `json:"radius_m"`
	Aspect  string   `json:"aspect"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.ev.Points(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spatial.PointCollection(points))
}

func (s *Server) handlePolygons(w http.ResponseWriter, r *http.Request) {
	zones, err := s.ev.Zones(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spatial.ZoneCollection(zones))
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := parseFloatParam(q.Get("lat"), "lat")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lng, err := parseFloatParam(q.Get("lng"), "lng")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	radius := s.ev.DefaultRadius()
	if raw := q.Get("radius_m"); raw != "" {
		if radius, err = parseFloatParam(raw, "radius_m"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	near, err := s.ev.Nearby(r.Context(), geo.Coordinate{Lat: lat, Lng: lng}, radius)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, near)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	center, ok := s.scoreCenter(w, r, req)
	if !ok {
		return
	}

	q := habitat.Query{
		Center:       center,
		RadiusMeters: req.RadiusM,
		Preferences:  req.Preferences.Normalize(),
	}
	if q.RadiusMeters == 0 {
		q.RadiusMeters = s.ev.DefaultRadius()
	}

	var key string
	if s.reports != nil {
		key = reportcache.Key(q)
		raw, hit, err := s.reports.Get(r.Context(), key)
		if err != nil {
			metrics.ReportCacheTotal.WithLabelValues("error").Inc()
			zap.L().Warn("api: report cache get", zap.Error(err))
		} else if hit {
			metrics.ReportCacheTotal.WithLabelValues("hit").Inc()
			w.Header().Set(cacheHeader, "hit")
			writeRawJSON(w, http.StatusOK, raw)
			return
		}
	}

	report, err := s.ev.Evaluate(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if s.reports != nil {
		if err := s.reports.Put(r.Context(), key, report); err != nil {
			zap.L().Warn("api: report cache put", zap.Error(err))
		}
		metrics.ReportCacheTotal.WithLabelValues("miss").Inc()
		w.Header().Set(cacheHeader, "miss")
	}
	writeJSON(w, http.StatusOK, report)
}

// scoreCenter returns the request's coordinates, or locates its IP when
// none were sent and a Locator is configured.
func (s *Server) scoreCenter(w http.ResponseWriter, r *http.Request, req scoreRequest) (geo.Coordinate, bool) {
	if req.Lat != nil && req.Lng != nil {
		return geo.Coordinate{Lat: *req.Lat, Lng: *req.Lng}, true
	}
	if req.Lat != nil || req.Lng != nil || s.locator == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return geo.Coordinate{}, false
	}

	ip := req.IP
	if ip == "" {
		ip = r.RemoteAddr
	}
	center, err := s.locator.Locate(ip)
	switch {
	case err == nil:
		return center, true
	case eris.Is(err, locate.ErrInvalidIP):
		writeError(w, http.StatusBadRequest, err.Error())
	case eris.Is(err, locate.ErrNotLocated):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.fail(w, r, err)
	}
	return geo.Coordinate{}, false
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	res, err := s.ev.Resolve(r.Context(), geo.Coordinate{Lat: *req.Lat, Lng: *req.Lng}, req.RadiusM, req.Aspect)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, map[string]string{"cache": "disabled"})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Stats())
}

// fail maps evaluator errors to responses: invalid queries are 400, anything
// else is logged and reported as 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if eris.Is(err, habitat.ErrInvalidQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	zap.L().Error("api: request failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parseFloatParam(raw, name string) (float64, error) {
	if raw == "" {
		return 0, eris.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Errorf("%s must be a number", name)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeRawJSON(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(raw); err != nil {
		zap.L().Warn("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
