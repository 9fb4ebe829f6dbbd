package insights

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mbd888/payrails/internal/metrics"
)

// DefaultTTL is how long a fetched adjustment stays usable.
const DefaultTTL = 4 * time.Hour

// Cache holds adjustments with a TTL and serves them without blocking.
// Lookups only ever read the cache; fetching happens in Refresh, which the
// background refresher drives. A processor whose entry expired or was
// never fetched simply gets no adjustment.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry

	ttl      time.Duration
	source   Source
	fallback Source
	store    Store
	logger   *slog.Logger
	now      func() time.Time
}

type cacheEntry struct {
	adj     Adjustment
	expires time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFallback sets the source used when the primary source fails.
func WithFallback(s Source) CacheOption {
	return func(c *Cache) { c.fallback = s }
}

// WithStore persists refreshed adjustments.
func WithStore(s Store) CacheOption {
	return func(c *Cache) { c.store = s }
}

// WithLogger sets the cache's logger.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache over source.
func NewCache(source Source, opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     DefaultTTL,
		source:  source,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Adjustments returns the cached adjustments for the given processors.
// Expired and never-fetched processors are absent from the result. This
// never fetches and never blocks on I/O.
func (c *Cache) Adjustments(processorIDs []string) map[string]Adjustment {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Adjustment, len(processorIDs))
	for _, id := range processorIDs {
		e, ok := c.entries[id]
		if !ok || now.After(e.expires) {
			continue
		}
		out[id] = e.adj
		metrics.InsightsLookupsTotal.WithLabelValues("cache").Inc()
	}
	return out
}

// Refresh fetches fresh adjustments for the given processors and replaces
// their cache entries. A primary source failure falls back to the
// configured fallback source; only a total failure returns an error and
// leaves existing entries in place.
func (c *Cache) Refresh(ctx context.Context, processorIDs []string) error {
	fetched, err := c.source.Fetch(ctx, processorIDs)
	if err == nil {
		metrics.InsightsLookupsTotal.WithLabelValues("live").Add(float64(len(fetched)))
	} else {
		if c.fallback == nil {
			return err
		}
		c.logger.Warn("insight source failed, using fallback", "error", err)
		fetched, err = c.fallback.Fetch(ctx, processorIDs)
		if err != nil {
			return err
		}
	}

	now := c.now()
	expires := now.Add(c.ttl)

	c.mu.Lock()
	for id, adj := range fetched {
		c.entries[id] = cacheEntry{adj: adj, expires: expires}
	}
	c.mu.Unlock()

	if c.store != nil {
		for id, adj := range fetched {
			if err := c.store.Save(ctx, id, adj, now, expires); err != nil {
				c.logger.Warn("persist insight failed", "processor", id, "error", err)
			}
		}
	}
	return nil
}

// Hydrate loads unexpired persisted adjustments into the cache. Called at
// startup so a restart does not lose intelligence gathered before it.
func (c *Cache) Hydrate(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	now := c.now()
	loaded, err := c.store.LoadActive(ctx, now)
	if err != nil {
		return err
	}

	expires := now.Add(c.ttl)
	c.mu.Lock()
	for id, adj := range loaded {
		if _, exists := c.entries[id]; !exists {
			c.entries[id] = cacheEntry{adj: adj, expires: expires}
		}
	}
	c.mu.Unlock()

	c.logger.Info("hydrated insight cache", "entries", len(loaded))
	return nil
}

// Refresher periodically refreshes the cache for a fixed processor set.
// It runs beside the server; routing keeps reading the cache regardless of
// what the refresher is doing.
type Refresher struct {
	cache    *Cache
	ids      []string
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a refresher for the given processors.
func NewRefresher(cache *Cache, processorIDs []string, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Refresher{cache: cache, ids: processorIDs, interval: interval, logger: logger}
}

// Run refreshes immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	// A panicking source must not take down the refresh loop.
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("insight refresh panicked", "panic", rec)
		}
	}()

	if err := r.cache.Refresh(ctx, r.ids); err != nil {
		r.logger.Warn("insight refresh failed", "error", err)
	}
}
