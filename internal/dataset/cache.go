package dataset

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/habitability/internal/metrics"
)

// CachedSource keeps the most recent snapshot of a source for a fixed TTL.
// A zero TTL reloads on every call. Concurrent callers that miss share one
// reload.
type CachedSource struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	snap     *Snapshot
	loadedAt time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Hits     int64     `json:"hits"`
	Misses   int64     `json:"misses"`
	HitRate  float64   `json:"hit_rate"`
	LoadedAt time.Time `json:"loaded_at,omitzero"`
}

// NewCachedSource wraps src with a snapshot cache.
func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, ttl: ttl, now: time.Now}
}

// Snapshot returns the cached snapshot, reloading it when missing or expired.
// When a reload fails and an earlier snapshot exists, the earlier snapshot is
// returned and the failure is logged; the next call tries again.
func (c *CachedSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap != nil && c.now().Sub(c.loadedAt) < c.ttl {
		c.hits.Add(1)
		return c.snap, nil
	}
	c.misses.Add(1)

	snap, err := c.reload(ctx)
	if err != nil {
		if c.snap == nil {
			return nil, err
		}
		zap.L().Warn("dataset: reload failed, serving previous snapshot",
			zap.Time("loaded_at", c.loadedAt),
			zap.Error(err),
		)
		return c.snap, nil
	}
	return snap, nil
}

// Reload loads a fresh snapshot regardless of its age. On failure the
// previous snapshot stays cached and the error is returned.
func (c *CachedSource) Reload(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reload(ctx)
}

// reload must be called with mu held.
func (c *CachedSource) reload(ctx context.Context) (*Snapshot, error) {
	snap, err := Load(ctx, c.src)
	if err != nil {
		metrics.DatasetLoadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.DatasetLoadsTotal.WithLabelValues("ok").Inc()
	metrics.DatasetFeatures.WithLabelValues("points").Set(float64(len(snap.Points)))
	metrics.DatasetFeatures.WithLabelValues("zones").Set(float64(len(snap.Zones)))

	c.snap = snap
	c.loadedAt = c.now()
	return snap, nil
}

// Stats returns cache performance statistics.
func (c *CachedSource) Stats() CacheStats {
	c.mu.Lock()
	loadedAt := c.loadedAt
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{
		Hits:     hits,
		Misses:   misses,
		HitRate:  rate,
		LoadedAt: loadedAt,
	}
}
