// Package analytics records one event per search and aggregates them into
// query, category and latency statistics. Events travel through Kafka when
// it is enabled so every search instance feeds one shared view; otherwise
// they are aggregated in-process.
package analytics

import "time"

type SearchEvent struct {
	Query       string    `json:"query"`
	Categories  []string  `json:"categories,omitempty"`
	SortBy      string    `json:"sort_by"`
	InStockOnly bool      `json:"in_stock_only,omitempty"`
	Grouped     bool      `json:"grouped"`
	TotalHits   int       `json:"total_hits"`
	Returned    int       `json:"returned"`
	LatencyMs   float64   `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// ZeroResult reports whether the search returned nothing.
func (e SearchEvent) ZeroResult() bool {
	return e.Returned == 0
}
