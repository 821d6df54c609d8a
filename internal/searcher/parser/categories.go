package parser

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/category"
)

var (
	fillerPattern = regexp.MustCompile(`\b(?:show me|i want|i need|i'm looking for|i am looking for|looking for|find me|find|search for|get me|give me|can you|could you|please|recommend)\b`)
	punctPattern  = regexp.MustCompile(`[?!.;:]+`)
	splitPattern  = regexp.MustCompile(`,|\band\b`)

	boundaryPatterns = compileBoundaryPatterns()
)

const minPrefixLen = 4

func compileBoundaryPatterns() map[category.Category][]*regexp.Regexp {
	out := make(map[category.Category][]*regexp.Regexp, len(category.All))
	for _, c := range category.All {
		r, _ := category.Lookup(c)
		for _, kw := range r.QueryKeywords {
			out[c] = append(out[c], regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
		}
	}
	return out
}

// ExtractCategories returns the categories named in query, in the order they
// are first mentioned and without duplicates. The query is stripped of
// filler phrases and split on commas and "and"; each segment is matched
// whole against the category keywords, then word by word. Only when no
// segment names a category is the whole query scanned for keywords.
func ExtractCategories(query string) []category.Category {
	q := strings.ToLower(query)
	stripped := punctPattern.ReplaceAllString(fillerPattern.ReplaceAllString(q, " "), " ")

	var found []category.Category
	seen := make(map[category.Category]struct{})
	add := func(c category.Category) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		found = append(found, c)
	}
	for _, segment := range splitPattern.Split(stripped, -1) {
		segment = strings.Join(strings.Fields(segment), " ")
		if segment == "" {
			continue
		}
		if c, ok := matchSegment(segment); ok {
			add(c)
			continue
		}
		for _, word := range segmentWords(segment) {
			for _, c := range category.All {
				if matchWord(word, c) {
					add(c)
				}
			}
		}
	}
	if len(found) > 0 {
		return found
	}
	return scanWholeQuery(q)
}

func matchSegment(segment string) (category.Category, bool) {
	for _, c := range category.All {
		r, _ := category.Lookup(c)
		for _, kw := range r.QueryKeywords {
			if segment == kw {
				return c, true
			}
		}
	}
	return "", false
}

func segmentWords(segment string) []string {
	return strings.FieldsFunc(segment, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
}

// matchWord accepts an exact keyword, or a keyword of at least four runes
// that prefixes the word ("gamer", "laptopbag"). A word that merely starts a
// keyword ("desk", "play") does not count. Exact-only categories skip the
// prefix test.
func matchWord(word string, c category.Category) bool {
	r, _ := category.Lookup(c)
	for _, kw := range r.QueryKeywords {
		if word == kw {
			return true
		}
		if r.ExactQueryOnly || len(word) < minPrefixLen || len(kw) < minPrefixLen {
			continue
		}
		if strings.HasPrefix(word, kw) {
			return true
		}
	}
	return false
}

type hit struct {
	c   category.Category
	pos int
}

// scanWholeQuery looks for keywords anywhere in q: at word boundaries first,
// then, if that finds nothing, as bare substrings. The substring pass skips
// exact-only categories and keywords shorter than four characters, which
// would otherwise hide inside unrelated words.
func scanWholeQuery(q string) []category.Category {
	var hits []hit
	for _, c := range category.All {
		pos := -1
		for _, re := range boundaryPatterns[c] {
			if loc := re.FindStringIndex(q); loc != nil && (pos < 0 || loc[0] < pos) {
				pos = loc[0]
			}
		}
		if pos >= 0 {
			hits = append(hits, hit{c, pos})
		}
	}
	if len(hits) == 0 {
		for _, c := range category.All {
			r, _ := category.Lookup(c)
			if r.ExactQueryOnly {
				continue
			}
			pos := -1
			for _, kw := range r.QueryKeywords {
				if len(kw) < minPrefixLen {
					continue
				}
				if i := strings.Index(q, kw); i >= 0 && (pos < 0 || i < pos) {
					pos = i
				}
			}
			if pos >= 0 {
				hits = append(hits, hit{c, pos})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]category.Category, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.c)
	}
	return out
}
