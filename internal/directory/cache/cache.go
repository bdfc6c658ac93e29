// Package cache is the read-through result cache for directory queries.
//
// Entries hold the unprojected page or entity as JSON. Keys carry the
// canonical field selection, so two requests that differ only in field order
// or case share an entry. Writes invalidate by key or by key prefix; the
// backing store decides how prefix deletion is done.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"directory/internal/directory/metrics"
	"directory/pkg/platform/sentinel"
)

// DefaultTTL applies when the cache is built without an explicit TTL.
const DefaultTTL = 5 * time.Minute

// DefaultLoadTimeout bounds a shared load once it no longer follows the
// context of the request that started it.
const DefaultLoadTimeout = 30 * time.Second

// Store is the key/value backend behind the cache.
// Get returns sentinel.ErrNotFound on a miss or an expired entry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Cache wraps a Store with JSON encoding, request coalescing and invalidation helpers.
type Cache struct {
	store       Store
	ttl         time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
	metrics     *metrics.Metrics
	logger      *slog.Logger

	// gens counts invalidations per kind. Fetch only writes a loaded value
	// back when no invalidation of its kind happened during the load.
	genMu sync.RWMutex
	gens  map[string]uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for degraded-backend warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMetrics records hits, misses and backend errors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithLoadTimeout bounds shared loads. Non-positive values keep DefaultLoadTimeout.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// New creates a Cache over store. A non-positive ttl falls back to DefaultTTL.
func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		store:       store,
		ttl:         ttl,
		loadTimeout: DefaultLoadTimeout,
		logger:      slog.Default(),
		gens:        make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// TryGet decodes the entry at key into dst and reports whether it was present.
// A decode failure is returned as an error so the caller can treat it as a miss.
func (c *Cache) TryGet(ctx context.Context, key string, dst any) (bool, error) {
	kind := kindOf(key)
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		c.metrics.RecordCacheMiss(kind)
		return false, nil
	}
	if err != nil {
		c.metrics.RecordCacheError("get")
		return false, fmt.Errorf("cache get %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.metrics.RecordCacheError("decode")
		return false, fmt.Errorf("cache decode %q: %w", key, err)
	}
	c.metrics.RecordCacheHit(kind)
	return true, nil
}

// Set stores value under key. A non-positive ttl uses the cache default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %q: %w", key, err)
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.metrics.RecordCacheError("set")
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Invalidate removes the given keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	kinds := make([]string, 0, len(keys))
	for _, key := range keys {
		kinds = append(kinds, kindOf(key))
	}
	c.bump(kinds...)
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.metrics.RecordCacheError("delete")
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// InvalidateList removes every cached list page of kind.
func (c *Cache) InvalidateList(ctx context.Context, kind string) error {
	if err := c.deletePrefix(ctx, ListPrefix(kind)); err != nil {
		return err
	}
	c.metrics.RecordInvalidation(kind, "list")
	return nil
}

// InvalidateEntity removes the single-entity entry for id and every list page of kind.
func (c *Cache) InvalidateEntity(ctx context.Context, kind string, id int64) error {
	if err := c.Invalidate(ctx, EntityKey(kind, id)); err != nil {
		return err
	}
	c.metrics.RecordInvalidation(kind, "entity")
	return c.InvalidateList(ctx, kind)
}

// InvalidateAll removes every entry of kind.
func (c *Cache) InvalidateAll(ctx context.Context, kind string) error {
	if err := c.deletePrefix(ctx, KindPrefix(kind)); err != nil {
		return err
	}
	c.metrics.RecordInvalidation(kind, "all")
	return nil
}

func (c *Cache) deletePrefix(ctx context.Context, prefix string) error {
	c.bump(kindOf(prefix))
	if err := c.store.DeletePrefix(ctx, prefix); err != nil {
		c.metrics.RecordCacheError("delete_prefix")
		return fmt.Errorf("cache delete prefix %q: %w", prefix, err)
	}
	return nil
}

// bump records an invalidation of each kind. It runs before the store delete,
// so a load that finished before the bump is either removed by the delete or
// sees the new generation and skips its write.
func (c *Cache) bump(kinds ...string) {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	for _, kind := range kinds {
		c.gens[kind]++
	}
}

func (c *Cache) generation(kind string) uint64 {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	return c.gens[kind]
}

// setIfCurrent writes value unless kind was invalidated after gen was read.
func (c *Cache) setIfCurrent(ctx context.Context, key string, gen uint64, value any) error {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	if c.gens[kindOf(key)] != gen {
		return nil
	}
	return c.Set(ctx, key, value, 0)
}

// Fetch returns the cached value at key or calls load and caches its result.
// Concurrent misses on the same key share one load, which runs detached from
// the caller's cancellation and bounded by the load timeout; each caller still
// stops waiting when its own ctx is done. A value loaded across an
// invalidation of its kind is returned but not cached. Cache failures degrade
// to calling load; errors from load are returned and never cached.
func Fetch[V any](ctx context.Context, c *Cache, key string, load func(context.Context) (V, error)) (V, error) {
	var zero V
	gen := c.generation(kindOf(key))

	var cached V
	hit, err := c.TryGet(ctx, key, &cached)
	if err != nil {
		c.logger.WarnContext(ctx, "cache read failed, falling back to store",
			"cache_key", key,
			"error", err,
		)
	} else if hit {
		return cached, nil
	}

	// Callers that arrive after an invalidation never join a load started before it.
	flight := key + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(flight, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		loaded, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if err := c.setIfCurrent(lctx, key, gen, loaded); err != nil {
			c.logger.WarnContext(lctx, "cache write failed",
				"cache_key", key,
				"error", err,
			)
		}
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}
