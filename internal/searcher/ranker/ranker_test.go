package ranker

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/category"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(products []catalog.Product) *indexer.Snapshot {
	return &indexer.Snapshot{Products: products, Index: index.Build(products)}
}

func fixture() *indexer.Snapshot {
	return snapshot([]catalog.Product{
		{ID: "C1", Name: "MacBook Air", Description: "Thin laptop", Category: "Computers", Price: 1200, StockStatus: catalog.InStock},
		{ID: "C2", Name: "Budget Laptop", Description: "Everyday laptop", Category: "Computers", Price: 900, StockStatus: catalog.LowStock},
		{ID: "PH", Name: "Pixel 8 Phone", Description: "Android smartphone", Category: "Electronics", Price: 700, StockStatus: catalog.InStock},
		{ID: "LAMP", Name: "Desk Lamp", Description: "LED lamp", Category: "Home", Price: 40, StockStatus: catalog.OutOfStock},
		{ID: "HP", Name: "Wireless Headphones", Description: "Noise cancelling", Category: "Electronics", Price: 200, StockStatus: catalog.InStock},
	})
}

func ids(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Product.ID
	}
	return out
}

func TestComputeTFNorm(t *testing.T) {
	assert.Zero(t, computeTFNorm(3, 10, 0))
	// At average length the norm is tf*(k1+1)/(tf+k1).
	assert.InDelta(t, 2.5/2.5, computeTFNorm(1, 5, 5), 1e-12)
	assert.Greater(t, computeTFNorm(1, 2, 5), computeTFNorm(1, 8, 5))
}

func TestScoreComponents(t *testing.T) {
	snap := fixture()
	plan := &parser.QueryPlan{Terms: []string{"laptop"}}
	c := Score(plan, snap, 1)

	ix := snap.Index
	dl := float64(ix.DocLength(1))
	want := ix.IDF("laptop") * (2 * (k1 + 1)) / (2 + k1*(1-b+b*dl/ix.AvgDocLength()))
	assert.InDelta(t, want, c.BM25, 1e-12)
	assert.Equal(t, 2.0, c.NameBonus)
	assert.Equal(t, 0.2, c.StockBonus)
	assert.InDelta(t, want+2.2, c.Total(), 1e-12)
}

func TestPoolDropsNonPositiveTotals(t *testing.T) {
	snap := fixture()
	pool := Pool(&parser.QueryPlan{Terms: []string{"laptop"}}, snap, Filter{})
	// The lamp matches nothing and is out of stock; in-stock products
	// survive on their stock bonus alone.
	assert.Equal(t, []string{"C1", "C2", "PH", "HP"}, ids(pool))
	for _, c := range pool {
		assert.Greater(t, c.Total(), 0.0)
		assert.Nil(t, c.Categories)
	}
}

func TestPoolPriceFilter(t *testing.T) {
	snap := fixture()
	plan := &parser.QueryPlan{Terms: []string{"laptop"}, Price: &parser.PriceRange{Min: 0, Max: 1000}}
	pool := Pool(plan, snap, Filter{})
	assert.Equal(t, []string{"C2", "PH", "HP"}, ids(pool))
	for _, c := range pool {
		assert.True(t, plan.Price.Contains(c.Product.Price))
	}
}

func TestPoolCategoryFilter(t *testing.T) {
	snap := fixture()
	plan := &parser.QueryPlan{Terms: []string{"laptop"}, Categories: []category.Category{category.Computers}}
	pool := Pool(plan, snap, Filter{})
	require.Equal(t, []string{"C1", "C2"}, ids(pool))
	assert.Equal(t, []category.Category{category.Computers}, pool[0].Categories)

	plan.Categories = []category.Category{category.Phones, category.Audio}
	pool = Pool(plan, snap, Filter{})
	require.Equal(t, []string{"PH", "HP"}, ids(pool))
	assert.Equal(t, []category.Category{category.Phones}, pool[0].Categories)
	assert.Equal(t, []category.Category{category.Audio}, pool[1].Categories)
}

func TestPoolInStockOnly(t *testing.T) {
	snap := fixture()
	plan := &parser.QueryPlan{Terms: []string{"lamp"}}
	assert.Contains(t, ids(Pool(plan, snap, Filter{})), "LAMP")
	assert.NotContains(t, ids(Pool(plan, snap, Filter{InStockOnly: true})), "LAMP")
}

func TestPoolEmptyCatalog(t *testing.T) {
	pool := Pool(parser.Parse("laptop"), snapshot(nil), Filter{})
	assert.Empty(t, pool)
}

func TestRankModes(t *testing.T) {
	snap := fixture()
	plan := &parser.QueryPlan{Terms: []string{"laptop"}}

	assert.Equal(t, []string{"C2", "C1", "PH", "HP"}, ids(Rank(Pool(plan, snap, Filter{}), SortRelevance, 0)))
	assert.Equal(t, []string{"HP", "PH", "C2", "C1"}, ids(Rank(Pool(plan, snap, Filter{}), SortPriceLow, 0)))
	assert.Equal(t, []string{"C1", "C2", "PH", "HP"}, ids(Rank(Pool(plan, snap, Filter{}), SortPriceHigh, 0)))
	assert.Equal(t, []string{"C2", "C1"}, ids(Rank(Pool(plan, snap, Filter{}), SortRelevance, 2)))
}

func TestRankIsStable(t *testing.T) {
	products := []catalog.Product{
		{ID: "a", Price: 10}, {ID: "b", Price: 5}, {ID: "c", Price: 10}, {ID: "d", Price: 5},
	}
	cands := make([]Candidate, len(products))
	for i := range products {
		cands[i] = Candidate{Doc: i, Product: &products[i], StockBonus: 0.5}
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(Rank(append([]Candidate(nil), cands...), SortRelevance, 0)))
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids(Rank(append([]Candidate(nil), cands...), SortPriceLow, 0)))
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(Rank(append([]Candidate(nil), cands...), SortPriceHigh, 0)))
}

func TestParseSortMode(t *testing.T) {
	for in, want := range map[string]SortMode{
		"":           SortRelevance,
		"relevance":  SortRelevance,
		"price_low":  SortPriceLow,
		"price_high": SortPriceHigh,
	} {
		got, err := ParseSortMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseSortMode("rating")
	assert.Error(t, err)
}

func TestProducts(t *testing.T) {
	snap := fixture()
	ranked := Rank(Pool(&parser.QueryPlan{Terms: []string{"laptop"}}, snap, Filter{}), SortRelevance, 1)
	assert.Equal(t, []catalog.Product{snap.Products[1]}, Products(ranked))
}

func BenchmarkPool(b *testing.B) {
	products := make([]catalog.Product, 5000)
	for i := range products {
		products[i] = catalog.Product{
			ID:          fmt.Sprintf("P%d", i),
			Name:        fmt.Sprintf("Product %d laptop", i%50),
			Description: "A reasonably long description mentioning wireless audio and gaming gear",
			Category:    "Electronics",
			Price:       float64(i % 2000),
			StockStatus: catalog.InStock,
		}
	}
	snap := snapshot(products)
	plan := parser.Parse("wireless gaming laptop under $1000")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Rank(Pool(plan, snap, Filter{}), SortRelevance, 10)
	}
}
