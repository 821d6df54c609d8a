package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/category"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() []catalog.Product {
	return []catalog.Product{
		{ID: "P1", Name: "Gaming Laptop Pro", Description: "High performance gaming laptop with RTX graphics", Category: "Computers", Price: 1500, StockStatus: catalog.InStock},
		{ID: "P2", Name: "Budget Laptop", Description: "Affordable laptop for students", Category: "Computers", Price: 900, StockStatus: catalog.InStock},
		{ID: "P3", Name: "iPhone 15", Description: "Latest Apple smartphone", Category: "Phones", Price: 999, StockStatus: catalog.InStock},
		{ID: "P4", Name: "Wireless Headphones", Description: "Noise cancelling bluetooth headphones", Category: "Audio", Price: 199, StockStatus: catalog.LowStock},
		{ID: "P5", Name: "The Great Gatsby", Description: "Classic novel", Category: "Books", Price: 15, StockStatus: catalog.InStock},
		{ID: "P6", Name: "Garden Hose", Description: "50 ft expandable hose", Category: "Home & Garden", Price: 35, StockStatus: catalog.InStock},
		{ID: "P7", Name: "Yoga Mat", Description: "Non-slip exercise mat", Category: "Sports", Price: 25, StockStatus: catalog.OutOfStock},
		{ID: "P8", Name: "Discontinued Toaster", Description: "Chrome toaster", Category: "Kitchen", Price: 30, StockStatus: catalog.OutOfStock},
	}
}

func searchConfig() config.SearchConfig {
	return config.SearchConfig{DefaultLimit: 5, MaxResults: 20, DefaultSort: "relevance"}
}

func newExecutor(products []catalog.Product, m *metrics.Metrics) *Executor {
	engine := indexer.NewEngine(nil)
	engine.Rebuild(products)
	return New(engine, searchConfig(), m)
}

func ids(products []catalog.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestSearchEmptyCatalog(t *testing.T) {
	e := newExecutor(nil, nil)
	for _, q := range []string{"", "laptop", "books, garden and sports", "cheap phones"} {
		res, err := e.Search(context.Background(), q, Options{})
		require.NoError(t, err, q)
		assert.True(t, res.Empty(), q)
		assert.False(t, res.Grouped, q)
		assert.Equal(t, ResultEmpty, res.Kind())
	}
}

func TestSearchCategoryAndPrice(t *testing.T) {
	e := newExecutor(fixture(), nil)
	res, err := e.Search(context.Background(), "laptops under $1000", Options{K: 5})
	require.NoError(t, err)
	assert.False(t, res.Grouped)
	assert.Equal(t, []string{"P2"}, ids(res.Products))
	assert.Equal(t, []category.Category{category.Computers}, res.Plan.Categories)
	require.NotNil(t, res.Plan.PriceFilter)
	assert.Equal(t, 1000.0, res.Plan.PriceFilter.Max)
}

func TestSearchPriceFilterHolds(t *testing.T) {
	e := newExecutor(fixture(), nil)
	res, err := e.Search(context.Background(), "anything under $100", Options{K: 20})
	require.NoError(t, err)
	require.NotEmpty(t, res.Products)
	for _, p := range res.Products {
		assert.LessOrEqual(t, p.Price, 100.0, p.ID)
	}
}

func TestSearchGroupsMultipleCategories(t *testing.T) {
	e := newExecutor(fixture(), nil)
	res, err := e.Search(context.Background(), "books, garden and sports", Options{K: 5})
	require.NoError(t, err)
	require.True(t, res.Grouped)
	assert.Nil(t, res.Products)
	require.Len(t, res.Groups, 3)

	assert.Equal(t, category.Books, res.Groups[0].Category)
	assert.Equal(t, []string{"P5"}, ids(res.Groups[0].Products))
	// The out-of-stock toaster is home_garden by its category label but
	// scores zero for these terms.
	assert.Equal(t, category.HomeGarden, res.Groups[1].Category)
	assert.Equal(t, []string{"P6"}, ids(res.Groups[1].Products))
	assert.Equal(t, category.Sports, res.Groups[2].Category)
	assert.Equal(t, []string{"P7"}, ids(res.Groups[2].Products))
	assert.Equal(t, ResultGrouped, res.Kind())
	assert.Equal(t, 3, res.Returned())
}

func TestSearchUnwrapsSingleBucket(t *testing.T) {
	var products []catalog.Product
	for _, p := range fixture() {
		if p.ID != "P5" {
			products = append(products, p)
		}
	}
	e := newExecutor(products, nil)
	res, err := e.Search(context.Background(), "show me phones and books", Options{})
	require.NoError(t, err)
	assert.False(t, res.Grouped)
	assert.Empty(t, res.Groups)
	assert.Equal(t, []string{"P3"}, ids(res.Products))
	assert.Equal(t, []category.Category{category.Phones, category.Books}, res.Plan.Categories)
}

func TestSearchWordStartingKeywordIsNotACategory(t *testing.T) {
	e := newExecutor(fixture(), nil)
	res, err := e.Search(context.Background(), "play mat", Options{K: 20})
	require.NoError(t, err)
	assert.Empty(t, res.Plan.Categories)
	assert.False(t, res.Grouped)
	require.NotEmpty(t, res.Products)
	assert.Equal(t, "P7", res.Products[0].ID)
}

func TestSearchExcludesZeroScores(t *testing.T) {
	e := newExecutor(fixture(), nil)
	res, err := e.Search(context.Background(), "unicorn", Options{K: 20})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "P3", "P5", "P6", "P4"}, ids(res.Products))
	assert.Equal(t, 6, res.TotalHits)
}

func TestSearchSortModes(t *testing.T) {
	e := newExecutor(fixture(), nil)
	res, err := e.Search(context.Background(), "laptop", Options{K: 20, SortBy: "price_low"})
	require.NoError(t, err)
	for i := 1; i < len(res.Products); i++ {
		assert.LessOrEqual(t, res.Products[i-1].Price, res.Products[i].Price)
	}

	res, err = e.Search(context.Background(), "laptop", Options{K: 20, SortBy: "price_high"})
	require.NoError(t, err)
	for i := 1; i < len(res.Products); i++ {
		assert.GreaterOrEqual(t, res.Products[i-1].Price, res.Products[i].Price)
	}

	res, err = e.Search(context.Background(), "laptop", Options{K: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"P2", "P1"}, ids(res.Products))

	_, err = e.Search(context.Background(), "laptop", Options{SortBy: "rating"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestSearchInStockOnly(t *testing.T) {
	e := newExecutor(fixture(), nil)
	res, err := e.Search(context.Background(), "yoga mat", Options{})
	require.NoError(t, err)
	assert.Contains(t, ids(res.Products), "P7")

	res, err = e.Search(context.Background(), "yoga mat", Options{InStockOnly: true})
	require.NoError(t, err)
	assert.NotContains(t, ids(res.Products), "P7")
}

func TestLimit(t *testing.T) {
	e := newExecutor(nil, nil)
	assert.Equal(t, 5, e.Limit(0))
	assert.Equal(t, 5, e.Limit(-3))
	assert.Equal(t, 7, e.Limit(7))
	assert.Equal(t, 20, e.Limit(500))
}

func TestSearchRecordsSpansAndMetrics(t *testing.T) {
	m := metrics.New(nil)
	e := newExecutor(fixture(), m)
	ctx, root := tracing.StartSpan(context.Background(), "request", "trace-1")

	_, err := e.Search(ctx, "books, garden and sports", Options{})
	require.NoError(t, err)
	_, err = e.Search(ctx, "laptop", Options{})
	require.NoError(t, err)
	_, err = e.Search(ctx, "laptop", Options{SortBy: "bogus"})
	require.Error(t, err)

	children := root.Children()
	require.Len(t, children, 2)
	var names []string
	for _, s := range children[0].Children() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"parse", "score", "group"}, names)
	assert.Len(t, children[1].Children(), 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(ResultGrouped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(ResultFlat)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(ResultError)))
}

func TestRecommend(t *testing.T) {
	e := newExecutor(fixture(), nil)
	got := e.Recommend(context.Background(), "budget laptop", 3)
	assert.Equal(t, []string{"P1", "P3", "P5"}, ids(got))
	assert.Empty(t, e.Recommend(context.Background(), "toaster oven deluxe", 3))
	assert.NotNil(t, e.Recommend(context.Background(), "nothing", 3))
}

func TestProductsByCategory(t *testing.T) {
	e := newExecutor(fixture(), nil)
	assert.Equal(t, []string{"P6"}, ids(e.ProductsByCategory("GARDEN", 5)))
	assert.Equal(t, []string{"P1", "P2"}, ids(e.ProductsByCategory("comp", 2)))
	assert.Empty(t, e.ProductsByCategory("toys", 5))
}

func TestPriceRange(t *testing.T) {
	e := newExecutor(fixture(), nil)
	got, err := e.PriceRange(25, 35)
	require.NoError(t, err)
	assert.Equal(t, []string{"P6", "P7", "P8"}, ids(got))

	_, err = e.PriceRange(50, 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDecompose(t *testing.T) {
	e := newExecutor(nil, nil)
	d := e.Decompose("cheap headphones")
	assert.Contains(t, d.Terms, "headphone")
	assert.Equal(t, []category.Category{category.Audio}, d.Categories)
	require.NotNil(t, d.PriceFilter)
	assert.Equal(t, 200.0, d.PriceFilter.Max)
}

func benchCatalog(n int) []catalog.Product {
	templates := fixture()
	out := make([]catalog.Product, n)
	for i := range out {
		p := templates[i%len(templates)]
		p.ID = fmt.Sprintf("B%05d", i)
		p.Price += float64(i % 100)
		out[i] = p
	}
	return out
}

func BenchmarkSearch(b *testing.B) {
	queries := map[string]string{
		"flat":    "gaming laptop",
		"price":   "cheap headphones under $300",
		"grouped": "books, garden and sports",
	}
	for _, size := range []int{100, 1000, 10000} {
		e := newExecutor(benchCatalog(size), nil)
		for name, q := range queries {
			b.Run(fmt.Sprintf("%s/docs_%d", name, size), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := e.Search(context.Background(), q, Options{K: 10}); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
