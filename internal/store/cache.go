// Package store holds the refresh cache: the last aggregation result plus
// its timestamp, TTL-based staleness, and the single-flight refresh
// discipline that keeps concurrent stale observers from racing duplicate
// upstream fetches.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rahimhussain95/DarkNet/internal/metrics"
	"github.com/rahimhussain95/DarkNet/internal/pipeline"
)

// Entry is one complete aggregation result. Replaced wholesale on each
// successful refresh; read-only everywhere else.
type Entry struct {
	Objects   []pipeline.Object `json:"objects"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// RefreshFunc produces a fresh result set: the full fetch+aggregate run.
type RefreshFunc func(ctx context.Context) ([]pipeline.Object, error)

// Config holds cache configuration.
type Config struct {
	// TTL is the freshness window of a cached entry.
	TTL time.Duration

	// StaleGrace extends how long a stale entry may still be served when a
	// refresh fails. Zero means fail closed the moment the TTL elapses;
	// the policy is explicit rather than an accident of the refresh path.
	StaleGrace time.Duration

	// RefreshTimeout bounds one fetch+aggregate run, including any
	// throttle back-off sleeps inside the catalog client.
	RefreshTimeout time.Duration

	// Interval drives the background refresh loop in Start.
	Interval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = 5 * time.Minute
	}
	if c.Interval <= 0 {
		c.Interval = c.TTL
	}
	return c
}

// Cache is the single shared result cache. The entry pointer is swapped
// atomically so readers never observe a partial result; the mutex
// serializes refresh runs so at most one is in flight.
type Cache struct {
	entry atomic.Pointer[Entry]
	mu    sync.Mutex // serializes refresh-and-store

	cfg       Config
	refreshFn RefreshFunc
	snapshots *Snapshots // nil disables persistence
	logger    *slog.Logger
	now       func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	refreshes atomic.Int64
	failures  atomic.Int64
}

// New creates a Cache. snapshots may be nil to disable disk persistence.
func New(cfg Config, refreshFn RefreshFunc, snapshots *Snapshots, logger *slog.Logger) *Cache {
	return &Cache{
		cfg:       cfg.withDefaults(),
		refreshFn: refreshFn,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
	}
}

// Read returns the entry only while it is fresh, nil otherwise. No side
// effects beyond hit/miss accounting.
func (c *Cache) Read() *Entry {
	e := c.entry.Load()
	if e == nil || c.age(e) >= c.cfg.TTL {
		return nil
	}
	return e
}

// IsStale reports whether no entry exists or the entry has outlived the TTL.
func (c *Cache) IsStale() bool {
	e := c.entry.Load()
	return e == nil || c.age(e) >= c.cfg.TTL
}

// AgeSeconds returns the age of the current entry in seconds, or -1 when
// the cache is empty.
func (c *Cache) AgeSeconds() float64 {
	e := c.entry.Load()
	if e == nil {
		return -1
	}
	return c.age(e).Seconds()
}

func (c *Cache) age(e *Entry) time.Duration {
	return c.now().Sub(e.FetchedAt)
}

// Restore seeds the cache with a previously persisted entry, typically at
// startup. Staleness is judged on the entry's own timestamp, so restoring
// an expired snapshot is harmless.
func (c *Cache) Restore(e *Entry) {
	c.entry.Store(e)
	metrics.SetCacheObjects(len(e.Objects))
}

// Refresh runs the full fetch+aggregate pipeline and atomically replaces
// the stored entry on success. On failure the prior entry, whether fresh,
// stale or absent, is left untouched. At most one refresh executes at a time; a
// caller arriving mid-refresh blocks until the in-flight run completes and
// then runs its own.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

// refreshLocked performs one refresh run. Caller must hold mu.
func (c *Cache) refreshLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RefreshTimeout)
	defer cancel()

	start := time.Now()
	objects, err := c.refreshFn(ctx)
	duration := time.Since(start)

	if err != nil {
		c.failures.Add(1)
		metrics.ObserveRefresh(duration, "failure")
		c.logger.Warn("refresh failed, keeping previous entry",
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		return fmt.Errorf("refreshing debris data: %w", err)
	}

	e := &Entry{Objects: objects, FetchedAt: c.now()}
	c.entry.Store(e)
	c.refreshes.Add(1)
	metrics.ObserveRefresh(duration, "success")
	metrics.SetCacheObjects(len(objects))

	if c.snapshots != nil {
		if err := c.snapshots.Save(e); err != nil {
			// Persistence is best-effort: the in-memory entry is already
			// serving, so a dead snapshot dir degrades, not fails.
			c.logger.Warn("snapshot save failed", "error", err)
		}
	}

	c.logger.Info("refresh complete",
		"objects", len(objects),
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// GetOrRefresh returns a fresh entry, refreshing first when stale. Exactly
// one of N concurrent stale observers performs the fetch; the rest wait on
// the mutex and re-check, then serve the winner's result. When the refresh
// fails, a stale entry younger than TTL+StaleGrace is served instead of the
// error.
func (c *Cache) GetOrRefresh(ctx context.Context) (*Entry, error) {
	if e := c.Read(); e != nil {
		c.hits.Add(1)
		metrics.IncCacheHit()
		return e, nil
	}
	c.misses.Add(1)
	metrics.IncCacheMiss()

	c.mu.Lock()
	// Double-check: another caller may have completed a refresh while this
	// one waited on the lock.
	if e := c.Read(); e != nil {
		c.mu.Unlock()
		return e, nil
	}
	err := c.refreshLocked(ctx)
	c.mu.Unlock()

	if err != nil {
		if e := c.entry.Load(); e != nil && c.age(e) < c.cfg.TTL+c.cfg.StaleGrace {
			c.logger.Warn("serving stale entry after failed refresh",
				"age_seconds", c.age(e).Seconds(),
			)
			return e, nil
		}
		return nil, err
	}
	return c.entry.Load(), nil
}

// Start runs the background refresh loop: an immediate run when the cache
// is stale, then one unconditional refresh per interval. Errors are logged
// and the loop continues; the request path falls back to lazy refresh.
// Blocks until ctx is cancelled.
func (c *Cache) Start(ctx context.Context) {
	if c.IsStale() {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("initial refresh failed", "error", err)
		}
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("refresh loop stopped")
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("scheduled refresh failed", "error", err)
			}
		}
	}
}

// Stats is a snapshot of cache counters for the stats endpoint.
type Stats struct {
	Objects    int     `json:"objects"`
	AgeSeconds float64 `json:"age_seconds"`
	Stale      bool    `json:"stale"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Refreshes  int64   `json:"refreshes"`
	Failures   int64   `json:"failures"`
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	s := Stats{
		AgeSeconds: c.AgeSeconds(),
		Stale:      c.IsStale(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Refreshes:  c.refreshes.Load(),
		Failures:   c.failures.Load(),
	}
	if e := c.entry.Load(); e != nil {
		s.Objects = len(e.Objects)
	}
	return s
}
