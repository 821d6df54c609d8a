package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestTTLCache(clock *fakeClock, ttl time.Duration, max int) *TTLCache[string] {
	c := NewTTLCache[string](ttl, max)
	c.now = clock.Now
	return c
}

func TestTTLCacheExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestTTLCache(clock, time.Minute, 0)

	c.Set("k", "v", time.Second)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok, "an entry is live up to its expiry instant")

	clock.Advance(time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Size(), "expired entries are removed on read")
}

func TestTTLCacheCleanupExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestTTLCache(clock, time.Hour, 0)
	c.Set("short", "a", time.Second)
	c.Set("long", "b", time.Minute)
	c.Set("default", "c", 0)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 3, c.Size())
	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, 2, c.Size())

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, c.CleanupExpired())
	_, ok := c.Get("default")
	assert.True(t, ok)
}

func TestTTLCacheEvictsOldestInserted(t *testing.T) {
	clock := newFakeClock()
	c := newTestTTLCache(clock, time.Hour, 2)
	c.Set("a", "1", 0)
	c.Set("b", "2", 0)
	_, _ = c.Get("a")
	c.Set("a", "1b", 0)
	c.Set("c", "3", 0)

	_, ok := c.Get("a")
	assert.False(t, ok, "reads and updates do not refresh insertion order")
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestTTLCacheDeleteAndClear(t *testing.T) {
	c := NewTTLCache[int](time.Minute, 0)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Delete("a")
	c.Delete("missing")
	assert.Equal(t, 1, c.Size())
	c.Clear()
	assert.Zero(t, c.Size())
	c.Set("c", 3, 0)
	assert.Equal(t, 1, c.Size())
}

func TestTTLCacheConcurrentAccess(t *testing.T) {
	c := NewTTLCache[int](time.Minute, 50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (g*31+i)%120)
				c.Set(key, i, 0)
				c.Get(key)
				if i%50 == 0 {
					c.CleanupExpired()
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 50)
}

func TestKeyIsCanonical(t *testing.T) {
	a := Key("  Laptops   UNDER $1000 ", 5, ranker.SortRelevance, false)
	b := Key("laptops under $1000", 5, ranker.SortRelevance, false)
	assert.Equal(t, a, b)
	assert.Equal(t, "search:laptops under $1000:k5:sortrelevance", a)
	assert.NotEqual(t, a, Key("laptops under $1000", 6, ranker.SortRelevance, false))
	assert.NotEqual(t, a, Key("laptops under $1000", 5, ranker.SortPriceLow, false))
	assert.Equal(t, a+":instock", Key("laptops under $1000", 5, ranker.SortRelevance, true))
}

func result(ids ...string) *executor.SearchResult {
	r := &executor.SearchResult{Query: "q", Products: []catalog.Product{}}
	for _, id := range ids {
		r.Products = append(r.Products, catalog.Product{ID: id, Name: id, StockStatus: catalog.InStock})
	}
	r.TotalHits = len(ids)
	return r
}

func TestQueryCacheEmptyResultsExpireSooner(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{TTL: 10 * time.Minute, EmptyResultTTL: time.Minute})
	c.local.now = clock.Now
	ctx := context.Background()

	c.Set(ctx, "full", result("P1"))
	c.Set(ctx, "empty", result())

	clock.Advance(2 * time.Minute)
	_, ok := c.Get(ctx, "empty")
	assert.False(t, ok)
	got, ok := c.Get(ctx, "full")
	require.True(t, ok)
	assert.Equal(t, "P1", got.Products[0].ID)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, 0.5, s.HitRate)
	assert.Equal(t, "disabled", s.Shared)
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New(Options{})
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return result("P1"), nil
	}

	var wg sync.WaitGroup
	results := make([]*executor.SearchResult, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _, err := c.GetOrCompute(context.Background(), "k", compute)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}

	_, hit, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestGetOrComputeSkipsStoreWhenClearedMidCompute(t *testing.T) {
	store := newMemStore()
	c := New(Options{Shared: store})
	ctx := context.Background()

	got, hit, err := c.GetOrCompute(ctx, "k", func() (*executor.SearchResult, error) {
		// A catalog reload lands while the old snapshot is being searched.
		require.NoError(t, c.Clear(ctx))
		return result("OLD"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "OLD", got.Products[0].ID)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Empty(t, store.data)

	got, hit, err = c.GetOrCompute(ctx, "k", func() (*executor.SearchResult, error) {
		return result("NEW"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "NEW", got.Products[0].ID)
	got, ok = c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "NEW", got.Products[0].ID)
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(Options{})
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "k", func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Stats().Entries)
}

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	fail    error
	flushed int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	v, ok := s.data[key]
	if !ok {
		return nil, pkgredis.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.data[key] = value
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	s.flushed++
	return n, nil
}

func TestSharedTierIsReadThrough(t *testing.T) {
	store := newMemStore()
	m := metrics.New(nil)
	writer := New(Options{Shared: store})
	reader := New(Options{Shared: store, Metrics: m})
	ctx := context.Background()

	writer.Set(ctx, "k", result("P1", "P2"))
	got, ok := reader.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []string{"P1", "P2"}, []string{got.Products[0].ID, got.Products[1].ID})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("shared")))

	_, ok = reader.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("local")))

	require.NoError(t, writer.Clear(ctx))
	assert.Equal(t, 1, store.flushed)
	assert.Empty(t, store.data)
	assert.Equal(t, "closed", writer.Stats().Shared)
}

func TestSharedTierFailuresOpenBreaker(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection refused")
	breaker := resilience.NewCircuitBreaker("test-shared", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	c := New(Options{Shared: store, Breaker: breaker})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)
	}
	assert.Equal(t, resilience.StateOpen, breaker.GetState())
	assert.Equal(t, "open", c.Stats().Shared)

	c.Set(ctx, "k", result("P1"))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok, "the local tier keeps working while the shared tier is down")
	assert.Equal(t, "P1", got.Products[0].ID)
}

func TestRunJanitor(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{TTL: time.Second})
	c.local.now = clock.Now
	c.Set(context.Background(), "k", result("P1"))
	clock.Advance(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, func() bool { return c.Stats().Entries == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
