// Package executor is the search entry point: it parses a query, scores the
// active catalog snapshot and returns either a flat ranked list or
// per-category groups.
package executor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/recommender"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/tracing"
)

// Result types reported to the search_queries_total metric.
const (
	ResultFlat    = "flat"
	ResultGrouped = "grouped"
	ResultEmpty   = "empty"
	ResultError   = "error"
)

// SearchResult is either flat (Products) or grouped (Groups); Grouped says
// which. TotalHits counts every candidate that passed filtering and scored
// above zero, before the k cut.
type SearchResult struct {
	Query     string               `json:"query"`
	Grouped   bool                 `json:"grouped"`
	Products  []catalog.Product    `json:"products"`
	Groups    []merger.Group       `json:"groups,omitempty"`
	TotalHits int                  `json:"total_hits"`
	Plan      parser.Decomposition `json:"plan"`
}

// Returned is the number of products in the result, counting a product once
// per group it appears in.
func (r *SearchResult) Returned() int {
	n := len(r.Products)
	for _, g := range r.Groups {
		n += len(g.Products)
	}
	return n
}

func (r *SearchResult) Empty() bool {
	return r.Returned() == 0
}

// Kind classifies the result for metrics and analytics.
func (r *SearchResult) Kind() string {
	switch {
	case r.Grouped:
		return ResultGrouped
	case r.Empty():
		return ResultEmpty
	}
	return ResultFlat
}

type Options struct {
	K           int
	SortBy      string
	InStockOnly bool
}

// SnapshotSource yields the catalog snapshot a call works against.
type SnapshotSource interface {
	Snapshot() *indexer.Snapshot
}

type Executor struct {
	source      SnapshotSource
	defaultK    int
	maxK        int
	defaultSort ranker.SortMode
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New creates an executor. m may be nil.
func New(source SnapshotSource, cfg config.SearchConfig, m *metrics.Metrics) *Executor {
	sortMode, err := ranker.ParseSortMode(cfg.DefaultSort)
	if err != nil {
		sortMode = ranker.SortRelevance
	}
	return &Executor{
		source:      source,
		defaultK:    cfg.DefaultLimit,
		maxK:        cfg.MaxResults,
		defaultSort: sortMode,
		metrics:     m,
		logger:      slog.Default().With("component", "query-executor"),
	}
}

// Limit resolves a requested result count: k <= 0 means the configured
// default and anything above the configured maximum is clamped.
func (e *Executor) Limit(k int) int {
	if k <= 0 {
		k = e.defaultK
	}
	if e.maxK > 0 && k > e.maxK {
		k = e.maxK
	}
	if k <= 0 {
		k = 1
	}
	return k
}

// SortMode resolves a requested sort name, falling back to the configured
// default for "". Unknown names are an ErrInvalidInput.
func (e *Executor) SortMode(name string) (ranker.SortMode, error) {
	if name == "" {
		return e.defaultSort, nil
	}
	mode, err := ranker.ParseSortMode(name)
	if err != nil {
		return "", apperrors.Invalid("%s", err.Error())
	}
	return mode, nil
}

// Search runs query against the active snapshot. A query that matches
// nothing yields an empty result, not an error; the only error is an
// unknown sort mode.
func (e *Executor) Search(ctx context.Context, query string, opts Options) (*SearchResult, error) {
	mode, err := e.SortMode(opts.SortBy)
	if err != nil {
		e.observe(ResultError, 0)
		return nil, err
	}
	k := e.Limit(opts.K)
	snap := e.source.Snapshot()

	ctx, span := tracing.StartChildSpan(ctx, "search")
	defer span.End()
	span.SetAttr("catalog_version", snap.Version)

	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	plan := parser.Parse(query)
	parseSpan.SetAttr("terms", len(plan.Terms))
	parseSpan.SetAttr("categories", len(plan.Categories))
	parseSpan.End()

	_, scoreSpan := tracing.StartChildSpan(ctx, "score")
	pool := ranker.Pool(plan, snap, ranker.Filter{InStockOnly: opts.InStockOnly})
	scoreSpan.SetAttr("candidates", len(pool))
	scoreSpan.End()

	result := &SearchResult{
		Query:     query,
		Products:  []catalog.Product{},
		TotalHits: len(pool),
		Plan: parser.Decomposition{
			Terms:       plan.Terms,
			Categories:  plan.Categories,
			PriceFilter: plan.Price,
		},
	}
	if plan.Grouped() {
		_, groupSpan := tracing.StartChildSpan(ctx, "group")
		groups := merger.Bucket(pool, plan.Categories, mode, k)
		groupSpan.SetAttr("groups", len(groups))
		groupSpan.End()
		switch len(groups) {
		case 0:
		case 1:
			result.Products = groups[0].Products
		default:
			result.Grouped = true
			result.Groups = groups
			result.Products = nil
		}
	} else {
		result.Products = ranker.Products(ranker.Rank(pool, mode, k))
	}

	e.observe(result.Kind(), result.Returned())
	e.logger.Debug("query executed",
		"query", query,
		"terms", plan.Terms,
		"categories", plan.Categories,
		"sort", mode,
		"candidates", len(pool),
		"returned", result.Returned(),
		"grouped", result.Grouped,
	)
	return result, nil
}

func (e *Executor) observe(kind string, returned int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(kind).Inc()
	if kind != ResultError {
		e.metrics.SearchResultsCount.Observe(float64(returned))
	}
}

// Recommend returns up to k products similar to the first product whose name
// contains name.
func (e *Executor) Recommend(ctx context.Context, name string, k int) []catalog.Product {
	_, span := tracing.StartChildSpan(ctx, "recommend")
	defer span.End()
	out := recommender.Recommend(e.source.Snapshot().Products, name, e.Limit(k))
	if out == nil {
		out = []catalog.Product{}
	}
	span.SetAttr("returned", len(out))
	return out
}

func (e *Executor) Decompose(query string) parser.Decomposition {
	return parser.Decompose(query)
}

// ProductsByCategory returns up to k products whose own category label
// contains label, case-insensitively, in catalog order.
func (e *Executor) ProductsByCategory(label string, k int) []catalog.Product {
	k = e.Limit(k)
	needle := strings.ToLower(strings.TrimSpace(label))
	out := make([]catalog.Product, 0, k)
	for _, p := range e.source.Snapshot().Products {
		if len(out) == k {
			break
		}
		if strings.Contains(strings.ToLower(p.Category), needle) {
			out = append(out, p)
		}
	}
	return out
}

// PriceRange returns every product priced within [lo, hi], in catalog
// order.
func (e *Executor) PriceRange(lo, hi float64) ([]catalog.Product, error) {
	if lo < 0 || hi < lo {
		return nil, apperrors.Invalid("invalid price range [%g, %g]", lo, hi)
	}
	r := parser.PriceRange{Min: lo, Max: hi}
	out := make([]catalog.Product, 0)
	for _, p := range e.source.Snapshot().Products {
		if r.Contains(p.Price) {
			out = append(out, p)
		}
	}
	return out, nil
}
