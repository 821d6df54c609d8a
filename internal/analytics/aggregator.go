package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kafka"
)

const (
	maxLatencySamples = 10000
	maxTrackedQueries = 10000
	topListSize       = 10
)

type Report struct {
	TotalSearches      int64        `json:"total_searches"`
	CacheHits          int64        `json:"cache_hits"`
	CacheMisses        int64        `json:"cache_misses"`
	ZeroResultCount    int64        `json:"zero_result_count"`
	GroupedCount       int64        `json:"grouped_count"`
	AvgLatencyMs       float64      `json:"avg_latency_ms"`
	P50LatencyMs       float64      `json:"p50_latency_ms"`
	P95LatencyMs       float64      `json:"p95_latency_ms"`
	P99LatencyMs       float64      `json:"p99_latency_ms"`
	TopQueries         []QueryCount `json:"top_queries"`
	ZeroResultQueries  []QueryCount `json:"zero_result_queries"`
	CategoryPopularity []QueryCount `json:"category_popularity"`
	QueriesPerMinute   float64      `json:"queries_per_minute"`
	Since              time.Time    `json:"since"`
}

// QueryCount pairs a query (or category label) with how often it was seen.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running search statistics. Latency percentiles cover the
// most recent maxLatencySamples searches. Per-query counts hold at most
// maxTrackedQueries distinct queries; the least-seen ones make room for new
// ones.
type Aggregator struct {
	mu             sync.Mutex
	totalSearches  int64
	cacheHits      int64
	cacheMisses    int64
	zeroResults    int64
	grouped        int64
	latencies      []float64
	nextLatency    int
	queryCounts    map[string]int64
	zeroQueries    map[string]int64
	categoryCounts map[string]int64
	queryLimit     int
	startTime      time.Time
	now            func() time.Time
	logger         *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:      make([]float64, 0, 1024),
		queryCounts:    make(map[string]int64),
		zeroQueries:    make(map[string]int64),
		categoryCounts: make(map[string]int64),
		queryLimit:     maxTrackedQueries,
		startTime:      time.Now(),
		now:            time.Now,
		logger:         slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to the analytics topic consumer.
// Undecodable messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(e SearchEvent) {
	query := normalizeQuery(e.Query)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	if e.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if e.Grouped {
		a.grouped++
	}
	if query != "" {
		a.bump(a.queryCounts, query)
	}
	if e.ZeroResult() {
		a.zeroResults++
		if query != "" {
			a.bump(a.zeroQueries, query)
		}
	}
	for _, c := range e.Categories {
		a.categoryCounts[c]++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.nextLatency] = e.LatencyMs
		a.nextLatency = (a.nextLatency + 1) % maxLatencySamples
	}
}

// bump increments counts[key]. When key is new and the map already holds
// queryLimit entries, every entry sharing the lowest count is evicted first.
// Callers hold a.mu.
func (a *Aggregator) bump(counts map[string]int64, key string) {
	if _, ok := counts[key]; !ok && a.queryLimit > 0 && len(counts) >= a.queryLimit {
		lowest := int64(-1)
		for _, n := range counts {
			if lowest < 0 || n < lowest {
				lowest = n
			}
		}
		for k, n := range counts {
			if n == lowest {
				delete(counts, k)
			}
		}
	}
	counts[key]++
}

func (a *Aggregator) Report() Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := Report{
		TotalSearches:      a.totalSearches,
		CacheHits:          a.cacheHits,
		CacheMisses:        a.cacheMisses,
		ZeroResultCount:    a.zeroResults,
		GroupedCount:       a.grouped,
		TopQueries:         topN(a.queryCounts, topListSize),
		ZeroResultQueries:  topN(a.zeroQueries, topListSize),
		CategoryPopularity: topN(a.categoryCounts, len(a.categoryCounts)),
		Since:              a.startTime,
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		r.AvgLatencyMs = sum / float64(len(sorted))
		r.P50LatencyMs = percentile(sorted, 50)
		r.P95LatencyMs = percentile(sorted, 95)
		r.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		r.QueriesPerMinute = float64(a.totalSearches) / elapsed
	}
	return r
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then by name, and keeps n entries.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
