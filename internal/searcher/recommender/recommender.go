// Package recommender suggests products similar to a reference product by
// category, price and availability.
package recommender

import (
	"math"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
)

const (
	sameCategoryScore = 3
	similarPriceScore = 2
	inStockScore      = 1

	// Prices within this fraction of the reference price count as similar.
	priceTolerance = 0.3
)

type scored struct {
	score   int
	product catalog.Product
}

// Reference returns the first product whose name contains name,
// case-insensitively.
func Reference(products []catalog.Product, name string) (catalog.Product, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return catalog.Product{}, false
	}
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p, true
		}
	}
	return catalog.Product{}, false
}

// Recommend returns up to k products similar to the reference found by name,
// best first; products scoring zero are left out. Equal scores keep catalog
// order. It returns nil when no reference product exists.
func Recommend(products []catalog.Product, name string, k int) []catalog.Product {
	ref, ok := Reference(products, name)
	if !ok {
		return nil
	}
	candidates := make([]scored, 0, len(products))
	for _, p := range products {
		if p.ID == ref.ID {
			continue
		}
		if s := similarity(ref, p); s > 0 {
			candidates = append(candidates, scored{score: s, product: p})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]catalog.Product, len(candidates))
	for i, c := range candidates {
		out[i] = c.product
	}
	return out
}

func similarity(ref, p catalog.Product) int {
	score := 0
	if p.Category == ref.Category {
		score += sameCategoryScore
	}
	if ref.Price > 0 && math.Abs(p.Price-ref.Price)/ref.Price < priceTolerance {
		score += similarPriceScore
	}
	if p.StockStatus == catalog.InStock {
		score += inStockScore
	}
	return score
}
