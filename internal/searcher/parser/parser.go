// Package parser turns a free-text shopping query into a QueryPlan: the
// synonym-expanded terms the ranker scores with, an optional price range,
// and the categories the shopper named. Every function here is a pure
// function of the query string.
package parser

import (
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/category"
)

type QueryPlan struct {
	RawQuery   string
	Terms      []string
	Price      *PriceRange
	Categories []category.Category
}

// Grouped reports whether the plan asks for per-category result buckets.
func (p *QueryPlan) Grouped() bool {
	return len(p.Categories) > 1
}

func Parse(query string) *QueryPlan {
	return &QueryPlan{
		RawQuery:   query,
		Terms:      ExpandSynonyms(query),
		Price:      ExtractPriceFilter(query),
		Categories: ExtractCategories(query),
	}
}

// Decomposition is the introspection view of a parsed query.
type Decomposition struct {
	Terms       []string            `json:"terms"`
	Categories  []category.Category `json:"categories"`
	PriceFilter *PriceRange         `json:"price_filter"`
}

func Decompose(query string) Decomposition {
	plan := Parse(query)
	return Decomposition{
		Terms:       plan.Terms,
		Categories:  plan.Categories,
		PriceFilter: plan.Price,
	}
}
