// Package handler exposes the search engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/tracing"
)

const defaultSlowThreshold = 100 * time.Millisecond

type Searcher interface {
	Search(ctx context.Context, query string, opts executor.Options) (*executor.SearchResult, error)
	Recommend(ctx context.Context, name string, k int) []catalog.Product
	Decompose(query string) parser.Decomposition
	ProductsByCategory(label string, k int) []catalog.Product
	PriceRange(lo, hi float64) ([]catalog.Product, error)
	Limit(k int) int
	SortMode(name string) (ranker.SortMode, error)
}

// Catalog is the snapshot owner; *indexer.Engine satisfies it.
type Catalog interface {
	Snapshot() *indexer.Snapshot
	Reload(ctx context.Context) (*indexer.Snapshot, error)
}

type Tracker interface {
	Track(e analytics.SearchEvent)
}

type Handler struct {
	search        Searcher
	catalog       Catalog
	cache         *cache.QueryCache
	tracker       Tracker
	metrics       *metrics.Metrics
	slowThreshold time.Duration
	logger        *slog.Logger
}

// New creates a Handler. queryCache, tracker and m may be nil.
func New(search Searcher, cat Catalog, queryCache *cache.QueryCache, tracker Tracker, m *metrics.Metrics) *Handler {
	return &Handler{
		search:        search,
		catalog:       cat,
		cache:         queryCache,
		tracker:       tracker,
		metrics:       m,
		slowThreshold: defaultSlowThreshold,
		logger:        slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", h.Search)
		r.Get("/recommendations", h.Recommendations)
		r.Get("/decompose", h.Decompose)
		r.Get("/categories/{category}", h.ProductsByCategory)
		r.Get("/products", h.ProductsByPrice)
		r.Get("/cache/stats", h.CacheStats)
		r.Post("/cache/clear", h.CacheClear)
		r.Post("/catalog/reload", h.CatalogReload)
		r.Get("/catalog/stats", h.CatalogStats)
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetRequestID(r.Context())
	ctx, span := tracing.StartSpan(r.Context(), "http.search", requestID)
	log := logger.FromContext(ctx)
	defer span.LogIfSlow(log, h.slowThreshold)

	q := r.URL.Query()
	query := q.Get("q")
	k, err := intParam(q.Get("k"), "k")
	if err != nil {
		h.writeError(w, err)
		return
	}
	mode, err := h.search.SortMode(q.Get("sort"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	inStock, err := boolParam(q.Get("in_stock"), "in_stock")
	if err != nil {
		h.writeError(w, err)
		return
	}
	opts := executor.Options{K: h.search.Limit(k), SortBy: string(mode), InStockOnly: inStock}

	var result *executor.SearchResult
	cacheStatus := "disabled"
	if h.cache != nil {
		var hit bool
		key := cache.Key(query, opts.K, mode, inStock)
		result, hit, err = h.cache.GetOrCompute(ctx, key, func() (*executor.SearchResult, error) {
			return h.search.Search(ctx, query, opts)
		})
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
		w.Header().Set("X-Cache", strings.ToUpper(cacheStatus))
	} else {
		result, err = h.search.Search(ctx, query, opts)
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	latency := time.Since(start)
	span.SetAttr("cache", cacheStatus)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"k", opts.K,
		"sort", mode,
		"grouped", result.Grouped,
		"total_hits", result.TotalHits,
		"returned", result.Returned(),
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		categories := make([]string, len(result.Plan.Categories))
		for i, c := range result.Plan.Categories {
			categories[i] = string(c)
		}
		h.tracker.Track(analytics.SearchEvent{
			Query:       query,
			Categories:  categories,
			SortBy:      string(mode),
			InStockOnly: inStock,
			Grouped:     result.Grouped,
			TotalHits:   result.TotalHits,
			Returned:    result.Returned(),
			LatencyMs:   float64(latency.Microseconds()) / 1000,
			CacheHit:    cacheStatus == "hit",
			Timestamp:   time.Now().UTC(),
			RequestID:   requestID,
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("product"))
	if name == "" {
		h.writeError(w, apperrors.Invalid("query parameter 'product' is required"))
		return
	}
	k, err := intParam(q.Get("k"), "k")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"product":         name,
		"recommendations": h.search.Recommend(r.Context(), name, k),
	})
}

func (h *Handler) Decompose(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.search.Decompose(r.URL.Query().Get("q")))
}

func (h *Handler) ProductsByCategory(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "category")
	k, err := intParam(r.URL.Query().Get("k"), "k")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"category": label,
		"products": h.search.ProductsByCategory(label, k),
	})
}

func (h *Handler) ProductsByPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lo, err := floatParam(q.Get("min_price"), "min_price", 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	hi, err := floatParam(q.Get("max_price"), "max_price", math.Inf(1))
	if err != nil {
		h.writeError(w, err)
		return
	}
	products, err := h.search.PriceRange(lo, hi)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"price_range": parser.PriceRange{Min: lo, Max: hi},
		"products":    products,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrCacheDisabled, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Clear(r.Context()); err != nil {
		h.logger.Error("cache clear failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache clear failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) CatalogReload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Reload(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("catalog reload failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable, "catalog reload failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, catalogStats(snap))
}

func (h *Handler) CatalogStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, catalogStats(h.catalog.Snapshot()))
}

type catalogStatsResponse struct {
	Version  uint64      `json:"version"`
	LoadedAt time.Time   `json:"loaded_at"`
	Products int         `json:"products"`
	Index    index.Stats `json:"index"`
}

func catalogStats(snap *indexer.Snapshot) catalogStatsResponse {
	return catalogStatsResponse{
		Version:  snap.Version,
		LoadedAt: snap.LoadedAt,
		Products: len(snap.Products),
		Index:    snap.Index.Stats(),
	}
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Invalid("%s must be a positive integer", name)
	}
	return n, nil
}

func boolParam(raw, name string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.Invalid("%s must be a boolean", name)
	}
	return b, nil
}

func floatParam(raw, name string, fallback float64) (float64, error) {
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) {
		return 0, apperrors.Invalid("%s must be a number", name)
	}
	return f, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": apperrors.Message(err)})
}
