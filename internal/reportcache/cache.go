// Package reportcache shares computed habitability reports between API
// instances through Redis.
package reportcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/habitability/internal/config"
	"github.com/sells-group/habitability/internal/habitat"
)

const keyPrefix = "habitat:report:"

// kv is the part of *redis.Client the cache needs.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Cache stores encoded reports with a fixed TTL.
type Cache struct {
	rdb kv
	ttl time.Duration
}

// New wraps an existing client.
func New(rdb kv, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Open connects to the Redis server in cfg and verifies it answers. The
// returned close func releases the connection pool.
func Open(ctx context.Context, cfg config.RedisConfig) (*Cache, func() error, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, eris.Wrapf(err, "reportcache: ping %s", cfg.Addr)
	}
	return New(rdb, time.Duration(cfg.TTLSecs)*time.Second), rdb.Close, nil
}

// Get returns the JSON-encoded report cached under key. A miss is
// (nil, false, nil).
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "reportcache: get")
	}
	if !json.Valid(raw) {
		return nil, false, eris.Errorf("reportcache: entry %s is not JSON", key)
	}
	return raw, true, nil
}

// Put stores r, encoded as JSON, under key.
func (c *Cache) Put(ctx context.Context, key string, r *habitat.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "reportcache: encode report")
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		return eris.Wrap(err, "reportcache: set")
	}
	return nil
}

// Key derives a stable cache key from a query whose radius has already been
// defaulted. Coordinates are rounded to 1e-6 degrees (about 10 cm) and
// preferences are sorted, so equivalent requests share an entry.
func Key(q habitat.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%.6f,%.6f,%.3f", round6(q.Center.Lat), round6(q.Center.Lng), q.RadiusMeters)

	cats := make([]string, 0, len(q.Preferences))
	for c := range q.Preferences {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(&b, "|%s=%s", c, q.Preferences[c])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
