package category

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
)

// text is the lowercased view of one product that rules are evaluated on.
type text struct {
	name      string
	body      string // name + description
	category  string
	nameWords map[string]struct{}
	bodyWords map[string]struct{}
}

func newText(p catalog.Product) *text {
	name := strings.ToLower(p.Name)
	body := name + " " + strings.ToLower(p.Description)
	return &text{
		name:      name,
		body:      body,
		category:  strings.ToLower(p.Category),
		nameWords: wordSet(name),
		bodyWords: wordSet(body),
	}
}

func wordSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func containsAny(s string, words map[string]struct{}, keywords []string) bool {
	for _, kw := range keywords {
		if len(kw) <= 3 {
			if _, ok := words[kw]; ok {
				return true
			}
			continue
		}
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func (t *text) bodyHas(keywords []string) bool {
	return containsAny(t.body, t.bodyWords, keywords)
}

func (t *text) nameHas(keywords []string) bool {
	return containsAny(t.name, t.nameWords, keywords)
}

func (t *text) categoryHas(fields []string) bool {
	for _, f := range fields {
		if strings.Contains(t.category, f) {
			return true
		}
	}
	return false
}

func (t *text) matches(c Category) bool {
	r, ok := rules[c]
	if !ok {
		return false
	}
	if r.TrustCategoryField && t.categoryHas(r.CategoryFields) {
		return true
	}
	if t.bodyHas(r.Exclude) || t.nameHas(r.NameExclude) {
		return false
	}
	for _, v := range r.Vetoes {
		if t.bodyHas(rules[v].CoreNouns) {
			return false
		}
	}
	if r.Pairing != nil && t.bodyHas(r.Pairing.Trigger) && !t.bodyHas(r.Pairing.Requires) {
		return false
	}
	return t.bodyHas(r.Keywords) || t.nameHas(r.NameKeywords)
}

// Matches reports whether p belongs to c.
func Matches(p catalog.Product, c Category) bool {
	return newText(p).matches(c)
}

// MatchAll returns the members of cats that p belongs to, in the order
// given. It lowercases and splits the product text once for all of them.
func MatchAll(p catalog.Product, cats []Category) []Category {
	if len(cats) == 0 {
		return nil
	}
	t := newText(p)
	var out []Category
	for _, c := range cats {
		if t.matches(c) {
			out = append(out, c)
		}
	}
	return out
}
