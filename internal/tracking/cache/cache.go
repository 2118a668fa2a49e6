// Package cache implements the fingerprint cache consulted by the fetch layer.
//
// Entries are plain data (payload, fetch time, TTL). Freshness is decided on
// every read from the current clock and nothing is ever invalidated
// explicitly. Expired entries are skipped on read and purged by Sweep.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
	"github.com/vietddude/whalewatch/internal/tracking/metrics"
)

// Cache wraps a CacheStore with read-time freshness and a per-fingerprint
// single-writer guard.
type Cache struct {
	store storage.CacheStore
	group singleflight.Group
	now   func() time.Time
	log   *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New creates a cache on top of store.
func New(store storage.CacheStore, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get looks up a fingerprint. A store failure is logged and reported as a
// miss.
func (c *Cache) Get(ctx context.Context, fingerprint string) (payload []byte, found, fresh bool) {
	entry, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		c.log.Warn("Cache read failed, treating as miss", "fingerprint", fingerprint, "error", err)
		metrics.CacheErrors.WithLabelValues("get").Inc()
		return nil, false, false
	}
	if entry == nil {
		return nil, false, false
	}
	return entry.Payload, true, entry.FreshAt(c.now())
}

// Put stores payload under fingerprint with the given TTL.
func (c *Cache) Put(ctx context.Context, fingerprint string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid cache ttl %s", ttl)
	}
	entry := &domain.CacheEntry{
		Fingerprint: fingerprint,
		Payload:     payload,
		FetchedAt:   c.now(),
		TTL:         ttl,
	}
	if err := c.store.Put(ctx, entry); err != nil {
		metrics.CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

// GetOrFetch returns a fresh cached payload or calls fetch exactly once for
// all concurrent callers of the same fingerprint and stores its result.
// A failed write is logged; the fetched payload is still returned.
func (c *Cache) GetOrFetch(
	ctx context.Context,
	fingerprint string,
	ttl time.Duration,
	fetch func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	if payload, found, fresh := c.Get(ctx, fingerprint); found && fresh {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return payload, nil
	}

	// The shared fetch outlives any single caller; each caller only stops
	// waiting when its own ctx ends. Fetchers bound the call by their timeout.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fingerprint, func() (any, error) {
		// Another caller may have populated the entry while we waited.
		if payload, found, fresh := c.Get(fetchCtx, fingerprint); found && fresh {
			return payload, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		payload, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if err := c.Put(fetchCtx, fingerprint, payload, ttl); err != nil {
			c.log.Warn("Cache write failed", "fingerprint", fingerprint, "error", err)
		}
		return payload, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			metrics.CacheLookups.WithLabelValues("shared").Inc()
		}
		return res.Val.([]byte), nil
	}
}

// Sweep purges expired entries. Errors are logged and swallowed.
func (c *Cache) Sweep(ctx context.Context) int {
	n, err := c.store.PurgeExpired(ctx, c.now())
	if err != nil {
		c.log.Warn("Cache sweep failed", "error", err)
		metrics.CacheErrors.WithLabelValues("sweep").Inc()
		return 0
	}
	if n > 0 {
		c.log.Debug("Cache sweep purged entries", "count", n)
	}
	return n
}
