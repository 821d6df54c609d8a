package parser

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// PriceRange is an inclusive price interval. Max is +Inf for "over N".
type PriceRange struct {
	Min float64
	Max float64
}

// Contains reports whether price lies within the range.
func (r PriceRange) Contains(price float64) bool {
	return price >= r.Min && price <= r.Max
}

// MarshalJSON writes an unbounded maximum as null.
func (r PriceRange) MarshalJSON() ([]byte, error) {
	out := struct {
		Min float64  `json:"min"`
		Max *float64 `json:"max"`
	}{Min: r.Min}
	if !math.IsInf(r.Max, 1) {
		out.Max = &r.Max
	}
	return json.Marshal(out)
}

func (r *PriceRange) UnmarshalJSON(data []byte) error {
	var in struct {
		Min float64  `json:"min"`
		Max *float64 `json:"max"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Min, r.Max = in.Min, math.Inf(1)
	if in.Max != nil {
		r.Max = *in.Max
	}
	return nil
}

const amount = `\$?\s*(\d[\d,]*(?:\.\d+)?)`

var (
	betweenPattern = regexp.MustCompile(`\bbetween\s*` + amount + `\s*(?:and|-|to)\s*` + amount)

	explicitPatterns = []struct {
		re    *regexp.Regexp
		upper bool
	}{
		{regexp.MustCompile(`\bunder\s*` + amount), true},
		{regexp.MustCompile(`\bbelow\s*` + amount), true},
		{regexp.MustCompile(`\bover\s*` + amount), false},
		{regexp.MustCompile(`\babove\s*` + amount), false},
	}

	priceBands = []struct {
		re   *regexp.Regexp
		band PriceRange
	}{
		{regexp.MustCompile(`\bcheap`), PriceRange{0, 200}},
		{regexp.MustCompile(`\bbudget`), PriceRange{0, 300}},
		{regexp.MustCompile(`\baffordable`), PriceRange{0, 500}},
		{regexp.MustCompile(`\bmid-range`), PriceRange{300, 800}},
		{regexp.MustCompile(`\bexpensive`), PriceRange{800, math.Inf(1)}},
		{regexp.MustCompile(`\bpremium`), PriceRange{1000, math.Inf(1)}},
		{regexp.MustCompile(`\bflagship`), PriceRange{1000, math.Inf(1)}},
	}
)

// ExtractPriceFilter returns the first price constraint found in query, or
// nil. Explicit "under/below/over/above N" phrases win over qualitative
// bands such as "cheap" or "premium". A "between A and B" phrase is not
// supported and yields nil rather than a half-understood bound.
func ExtractPriceFilter(query string) *PriceRange {
	q := strings.ToLower(query)
	if betweenPattern.MatchString(q) {
		return nil
	}
	for _, p := range explicitPatterns {
		m := p.re.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if p.upper {
			return &PriceRange{Min: 0, Max: n}
		}
		return &PriceRange{Min: n, Max: math.Inf(1)}
	}
	for _, b := range priceBands {
		if b.re.MatchString(q) {
			band := b.band
			return &band
		}
	}
	return nil
}
