package sources

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/race"
)

// Default racer configuration.
const (
	DefaultRaceTimeout = 6 * time.Second
	DefaultCacheTTL    = 5 * time.Second
)

// Racer fires all source adapters concurrently under a shared timeout and
// merges whichever respond. A short-TTL cache keyed by the liquidity floor
// prevents redundant network calls when the orchestrator fires faster than
// market data can usefully change.
type Racer struct {
	adapters []PoolSource
	timeout  time.Duration
	cacheTTL time.Duration
	metrics  *observability.Metrics // optional
	logger   *log.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[float64]*cacheEntry
}

type cacheEntry struct {
	pools     []*domain.DiscoveredPool
	fetchedAt time.Time
}

// RacerOptions configures the Racer.
type RacerOptions struct {
	Adapters []PoolSource
	Timeout  time.Duration // shared race timeout, default DefaultRaceTimeout
	CacheTTL time.Duration // default DefaultCacheTTL
	Metrics  *observability.Metrics
	Logger   *log.Logger
}

// NewRacer creates a new discovery racer.
func NewRacer(opts RacerOptions) *Racer {
	r := &Racer{
		adapters: opts.Adapters,
		timeout:  opts.Timeout,
		cacheTTL: opts.CacheTTL,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      time.Now,
		cache:    make(map[float64]*cacheEntry),
	}
	if r.timeout <= 0 {
		r.timeout = DefaultRaceTimeout
	}
	if r.cacheTTL <= 0 {
		r.cacheTTL = DefaultCacheTTL
	}
	return r
}

// WithClock overrides the clock. Test helper.
func (r *Racer) WithClock(now func() time.Time) *Racer {
	r.now = now
	return r
}

// RaceDiscovery launches all adapters concurrently, waits for every one to
// settle, and merges successful results deduplicated by mint. An individual
// adapter failure contributes zero pools and never fails the race.
func (r *Racer) RaceDiscovery(ctx context.Context, minLiquiditySol float64) ([]*domain.DiscoveredPool, error) {
	r.mu.Lock()
	if entry, ok := r.cache[minLiquiditySol]; ok && r.now().Sub(entry.fetchedAt) < r.cacheTTL {
		pools := entry.pools
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.DiscoveryCacheHit.Inc()
		}
		return pools, nil
	}
	r.mu.Unlock()

	fns := make([]race.Fn[[]*domain.DiscoveredPool], len(r.adapters))
	for i, adapter := range r.adapters {
		fns[i] = race.Fn[[]*domain.DiscoveredPool]{
			Name: adapter.Name(),
			Run: func(ctx context.Context) ([]*domain.DiscoveredPool, error) {
				return adapter.Fetch(ctx, minLiquiditySol)
			},
		}
	}

	results := race.SettleAll(ctx, r.timeout, fns)

	merged := make(map[string]*domain.DiscoveredPool)
	var order []string
	for _, res := range results {
		if res.Err != nil {
			if r.metrics != nil {
				r.metrics.AdapterFailures.WithLabelValues(res.Name).Inc()
			}
			r.logf("adapter %s failed (%s): %v", res.Name, res.Took.Round(time.Millisecond), res.Err)
			continue
		}
		for _, pool := range res.Value {
			if pool == nil || pool.Mint == "" {
				continue
			}
			if existing, ok := merged[pool.Mint]; ok {
				// First adapter wins the slot; later merges refresh market fields only.
				existing.Merge(pool)
				continue
			}
			poolCopy := *pool
			merged[pool.Mint] = &poolCopy
			order = append(order, pool.Mint)
		}
	}

	pools := make([]*domain.DiscoveredPool, 0, len(merged))
	for _, mint := range order {
		pools = append(pools, merged[mint])
	}
	// Freshest pools first.
	sort.SliceStable(pools, func(i, j int) bool {
		return pools[i].PoolCreatedAt > pools[j].PoolCreatedAt
	})

	r.mu.Lock()
	r.cache[minLiquiditySol] = &cacheEntry{pools: pools, fetchedAt: r.now()}
	r.mu.Unlock()

	return pools, nil
}

// InvalidateCache drops all cached race results.
func (r *Racer) InvalidateCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[float64]*cacheEntry)
}

func (r *Racer) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf("[discovery] "+format, args...)
	}
}
