// Package ranker scores catalog products against a parsed query with BM25
// plus a name-match bonus and a stock bonus, and orders the survivors.
package ranker

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/category"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/parser"
)

const (
	k1 = 1.5
	b  = 0.75

	nameMatchWeight = 2.0
	inStockBonus    = 0.5
	lowStockBonus   = 0.2
)

type SortMode string

const (
	SortRelevance SortMode = "relevance"
	SortPriceLow  SortMode = "price_low"
	SortPriceHigh SortMode = "price_high"
)

// ParseSortMode accepts the three sort names; "" means relevance.
func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(s); m {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortPriceLow, SortPriceHigh:
		return m, nil
	}
	return "", fmt.Errorf("unknown sort mode %q (want relevance, price_low or price_high)", s)
}

// Candidate is one scored product. Categories holds the requested
// categories the product belongs to, for grouping.
type Candidate struct {
	Doc        int
	Product    *catalog.Product
	BM25       float64
	NameBonus  float64
	StockBonus float64
	Categories []category.Category
}

func (c Candidate) Total() float64 {
	return c.BM25 + c.NameBonus + c.StockBonus
}

// Filter restricts which products are scored at all. The price range and
// categories come from the query plan.
type Filter struct {
	InStockOnly bool
}

// Pool applies the plan's price and category filters, scores the remaining
// products and returns every candidate with a positive total, in catalog
// order. With categories present a product must belong to at least one of
// them; the ones it belongs to are recorded on the candidate.
func Pool(plan *parser.QueryPlan, snap *indexer.Snapshot, f Filter) []Candidate {
	out := make([]Candidate, 0, len(snap.Products))
	for i := range snap.Products {
		p := &snap.Products[i]
		if f.InStockOnly && p.StockStatus == catalog.OutOfStock {
			continue
		}
		if plan.Price != nil && !plan.Price.Contains(p.Price) {
			continue
		}
		var cats []category.Category
		if len(plan.Categories) > 0 {
			if cats = category.MatchAll(*p, plan.Categories); len(cats) == 0 {
				continue
			}
		}
		c := Score(plan, snap, i)
		if c.Total() <= 0 {
			continue
		}
		c.Categories = cats
		out = append(out, c)
	}
	return out
}

// Score computes the score components of the product at position doc.
func Score(plan *parser.QueryPlan, snap *indexer.Snapshot, doc int) Candidate {
	p := &snap.Products[doc]
	ix := snap.Index
	c := Candidate{Doc: doc, Product: p}
	c.BM25 = bm25(ix, plan.Terms, doc)
	c.NameBonus = nameMatchWeight * float64(ix.NameMatches(doc, plan.Terms))
	c.StockBonus = stockBonus(p.StockStatus)
	return c
}

func bm25(ix *index.Index, terms []string, doc int) float64 {
	avg := ix.AvgDocLength()
	docLen := float64(ix.DocLength(doc))
	var score float64
	for _, term := range terms {
		tf := ix.TermFreq(doc, term)
		if tf == 0 {
			continue
		}
		score += ix.IDF(term) * computeTFNorm(float64(tf), docLen, avg)
	}
	return score
}

func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

func stockBonus(s catalog.StockStatus) float64 {
	switch s {
	case catalog.InStock:
		return inStockBonus
	case catalog.LowStock:
		return lowStockBonus
	}
	return 0
}

// Before returns the ordering for mode: whether a sorts ahead of b.
// Relevance compares total score descending; the price modes compare price
// alone. Equal candidates report false both ways.
func Before(mode SortMode) func(a, b *Candidate) bool {
	switch mode {
	case SortPriceLow:
		return func(a, b *Candidate) bool { return a.Product.Price < b.Product.Price }
	case SortPriceHigh:
		return func(a, b *Candidate) bool { return a.Product.Price > b.Product.Price }
	}
	return func(a, b *Candidate) bool { return a.Total() > b.Total() }
}

// Rank orders cands in place and returns at most k of them (all when k <= 0).
// Ties keep their incoming order.
func Rank(cands []Candidate, mode SortMode, k int) []Candidate {
	before := Before(mode)
	sort.SliceStable(cands, func(i, j int) bool { return before(&cands[i], &cands[j]) })
	if k > 0 && len(cands) > k {
		cands = cands[:k]
	}
	return cands
}

// Products unwraps ranked candidates.
func Products(cands []Candidate) []catalog.Product {
	out := make([]catalog.Product, len(cands))
	for i, c := range cands {
		out[i] = *c.Product
	}
	return out
}
