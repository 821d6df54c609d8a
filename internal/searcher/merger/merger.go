// Package merger splits one scored candidate pool into per-category result
// buckets for queries that name several categories.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/category"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/ranker"
)

type Group struct {
	Category category.Category `json:"category"`
	Products []catalog.Product `json:"products"`
}

// Bucket splits pool by the categories each candidate matched. Buckets
// follow the order of categories and hold at most k products each, ranked by
// mode; categories with no products are left out. A product appears in every
// bucket it matched but at most once per bucket. Ties fall back to catalog
// order, so the result agrees with ranker.Rank on the same candidates.
func Bucket(pool []ranker.Candidate, categories []category.Category, mode ranker.SortMode, k int) []Group {
	if k <= 0 {
		k = len(pool)
	}
	before := ranker.Before(mode)
	buckets := make(map[category.Category]*candidateHeap, len(categories))
	seen := make(map[category.Category]map[string]struct{}, len(categories))
	for _, c := range categories {
		if _, dup := buckets[c]; dup {
			continue
		}
		buckets[c] = &candidateHeap{before: before}
		seen[c] = make(map[string]struct{})
	}
	for _, cand := range pool {
		for _, c := range cand.Categories {
			h, ok := buckets[c]
			if !ok {
				continue
			}
			if _, dup := seen[c][cand.Product.ID]; dup {
				continue
			}
			seen[c][cand.Product.ID] = struct{}{}
			heap.Push(h, cand)
			if h.Len() > k {
				heap.Pop(h)
			}
		}
	}
	groups := make([]Group, 0, len(buckets))
	for _, c := range categories {
		h, ok := buckets[c]
		if !ok || h.Len() == 0 {
			continue
		}
		ranked := make([]ranker.Candidate, h.Len())
		for i := len(ranked) - 1; i >= 0; i-- {
			ranked[i] = heap.Pop(h).(ranker.Candidate)
		}
		groups = append(groups, Group{Category: c, Products: ranker.Products(ranked)})
		delete(buckets, c)
	}
	return groups
}

// candidateHeap keeps the weakest candidate on top so that popping past k
// discards it.
type candidateHeap struct {
	items  []ranker.Candidate
	before func(a, b *ranker.Candidate) bool
}

func (h *candidateHeap) Len() int { return len(h.items) }

func (h *candidateHeap) Less(i, j int) bool {
	a, b := &h.items[i], &h.items[j]
	if h.before(b, a) {
		return true
	}
	if h.before(a, b) {
		return false
	}
	return a.Doc > b.Doc
}

func (h *candidateHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *candidateHeap) Push(x interface{}) {
	h.items = append(h.items, x.(ranker.Candidate))
}

func (h *candidateHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
