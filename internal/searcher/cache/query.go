// Package cache memoizes search results. An in-process TTL cache answers
// repeated queries; an optional shared tier (Redis) lets several search
// instances reuse each other's results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix       = "search:"
	sharedKeyPrefix = "catalog-search:"
	sharedTimeout   = 250 * time.Millisecond

	defaultTTL      = 10 * time.Minute
	defaultEmptyTTL = time.Minute
)

// Key is the one canonical cache key for a search. k and sort must already
// be resolved to the values the executor will use.
func Key(query string, k int, sort ranker.SortMode, inStockOnly bool) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	key := fmt.Sprintf("%s%s:k%d:sort%s", keyPrefix, normalized, k, sort)
	if inStockOnly {
		key += ":instock"
	}
	return key
}

// SharedStore is the shared second tier. *pkgredis.Client satisfies it.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Options struct {
	TTL            time.Duration
	EmptyResultTTL time.Duration
	MaxEntries     int
	// Shared is optional. Calls to it go through Breaker, which defaults to
	// a fresh breaker named "cache-shared".
	Shared  SharedStore
	Breaker *resilience.CircuitBreaker
	Metrics *metrics.Metrics
}

type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
	Shared  string  `json:"shared_tier"`
}

type QueryCache struct {
	local    *TTLCache[*executor.SearchResult]
	ttl      time.Duration
	emptyTTL time.Duration
	shared   SharedStore
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	group    singleflight.Group
	// genMu orders stores against Clear. gen counts clears so a compute
	// that started before one does not write its result back.
	genMu    sync.RWMutex
	gen      uint64
	hits     atomic.Int64
	misses   atomic.Int64
	logger   *slog.Logger
}

func New(opts Options) *QueryCache {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.EmptyResultTTL <= 0 {
		opts.EmptyResultTTL = defaultEmptyTTL
	}
	if opts.Shared != nil && opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("cache-shared", resilience.CircuitBreakerConfig{})
	}
	return &QueryCache{
		local:    NewTTLCache[*executor.SearchResult](opts.TTL, opts.MaxEntries),
		ttl:      opts.TTL,
		emptyTTL: opts.EmptyResultTTL,
		shared:   opts.Shared,
		breaker:  opts.Breaker,
		metrics:  opts.Metrics,
		logger:   slog.Default().With("component", "query-cache"),
	}
}

// Get looks key up locally, then in the shared tier. Results handed out are
// shared between callers and must not be modified.
func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	if result, ok := c.local.Get(key); ok {
		c.recordHit("local")
		c.logger.Debug("cache hit", "key", key, "tier", "local")
		return result, true
	}
	if result, ok := c.getShared(ctx, key); ok {
		c.local.Set(key, result, c.ttlFor(result))
		c.recordHit("shared")
		c.logger.Debug("cache hit", "key", key, "tier", "shared")
		return result, true
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
	return nil, false
}

// Set stores result. Empty results get the shorter empty-result TTL so a
// failed query is re-run sooner.
func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	c.local.Set(key, result, c.ttlFor(result))
	c.updateEntries()
	c.setShared(ctx, key, result)
}

// setIfCurrent stores result only if no Clear ran since generation gen was
// read. It reports whether the result was stored.
func (c *QueryCache) setIfCurrent(ctx context.Context, key string, result *executor.SearchResult, gen uint64) bool {
	c.genMu.RLock()
	if c.gen != gen {
		c.genMu.RUnlock()
		return false
	}
	c.local.Set(key, result, c.ttlFor(result))
	c.genMu.RUnlock()
	c.updateEntries()
	c.setShared(ctx, key, result)
	return true
}

func (c *QueryCache) generation() uint64 {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	return c.gen
}

func (c *QueryCache) setShared(ctx context.Context, key string, result *executor.SearchResult) {
	if c.shared == nil {
		return
	}
	ttl := c.ttlFor(result)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, sharedTimeout, "cache-shared-set", func(ctx context.Context) error {
			return c.shared.Set(ctx, sharedKey(key), data, ttl)
		})
	})
	if err != nil {
		c.logger.Warn("shared cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key or runs compute once for
// all concurrent callers missing the same key. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.local.Get(key); ok {
			return result, nil
		}
		gen := c.generation()
		result, err := compute()
		if err != nil {
			return nil, err
		}
		if !c.setIfCurrent(ctx, key, result, gen) {
			c.logger.Debug("cache cleared during compute, result not stored", "key", key)
		}
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Clear drops every cached result, including the shared tier's. Results
// being computed while Clear runs are returned to their callers but not
// cached.
func (c *QueryCache) Clear(ctx context.Context) error {
	c.genMu.Lock()
	c.gen++
	c.local.Clear()
	c.genMu.Unlock()
	c.updateEntries()
	if c.shared == nil {
		return nil
	}
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.shared.FlushByPattern(ctx, sharedKeyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("clearing shared cache: %w", err)
	}
	c.logger.Info("cache cleared", "shared_keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.local.Size(),
		Shared:  "disabled",
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	if c.breaker != nil {
		s.Shared = c.breaker.GetState().String()
	}
	return s
}

// RunJanitor purges expired local entries every interval until ctx is done.
func (c *QueryCache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.local.CleanupExpired(); removed > 0 {
				c.logger.Debug("expired cache entries removed", "count", removed)
			}
			c.updateEntries()
		}
	}
}

func (c *QueryCache) getShared(ctx context.Context, key string) (*executor.SearchResult, bool) {
	if c.shared == nil {
		return nil, false
	}
	var data []byte
	err := c.breaker.Execute(func() error {
		got, err := resilience.CallWithTimeout(ctx, sharedTimeout, "cache-shared-get", func(ctx context.Context) ([]byte, error) {
			return c.shared.Get(ctx, sharedKey(key))
		})
		if errors.Is(err, pkgredis.ErrNotFound) {
			return nil
		}
		data = got
		return err
	})
	if err != nil {
		c.logger.Warn("shared cache get failed", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

func (c *QueryCache) ttlFor(result *executor.SearchResult) time.Duration {
	if result.Empty() {
		return c.emptyTTL
	}
	return c.ttl
}

func (c *QueryCache) recordHit(tier string) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *QueryCache) updateEntries() {
	if c.metrics != nil {
		c.metrics.CacheEntries.Set(float64(c.local.Size()))
	}
}

// sharedKey hashes the canonical key so arbitrary query text never reaches
// Redis key syntax.
func sharedKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s%x", sharedKeyPrefix, sum[:16])
}
