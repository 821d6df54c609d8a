package parser

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/tokenizer"
)

var rawSynonyms = map[string][]string{
	"laptop":     {"laptop", "macbook", "dell", "notebook", "xps", "portable", "ultrabook"},
	"phone":      {"phone", "iphone", "samsung", "galaxy", "smartphone", "mobile", "cellphone"},
	"headphones": {"headphones", "headphone", "earbuds", "airpods", "earphones", "headset", "wh-1000", "audio"},
	"watch":      {"watch", "smartwatch", "apple watch", "fitness", "wearable"},
	"tablet":     {"tablet", "ipad", "surface", "tab"},
	"computer":   {"computer", "laptop", "macbook", "desktop", "pc", "workstation"},
	"monitor":    {"monitor", "display", "screen", "lg", "ultragear"},
	"keyboard":   {"keyboard", "logitech", "mechanical", "wireless keyboard"},
	"mouse":      {"mouse", "logitech", "gaming mouse", "wireless mouse"},
	"camera":     {"camera", "canon", "sony", "dslr", "mirrorless", "photography"},
	"speaker":    {"speaker", "bluetooth speaker", "sonos", "bose", "audio"},
	"tv":         {"tv", "television", "smart tv", "oled", "4k", "display"},
	"gaming":     {"gaming", "ps5", "playstation", "xbox", "nintendo", "console", "controller"},
	"cheap":      {"cheap", "budget", "affordable", "inexpensive", "low cost"},
	"expensive":  {"expensive", "premium", "high-end", "flagship", "pro", "ultra"},
}

// synonyms is rawSynonyms keyed and valued in tokenizer space, so a query
// term always meets the table in the same form documents are indexed in.
// Phrases that tokenize to several terms could never equal a single query
// term and are dropped.
var synonyms = normalizeSynonyms(rawSynonyms)

func normalizeSynonyms(raw map[string][]string) map[string][]string {
	out := make(map[string][]string, len(raw))
	for key, values := range raw {
		k := tokenizer.Terms(key)
		if len(k) != 1 {
			continue
		}
		set := make(map[string]struct{}, len(values)+1)
		set[k[0]] = struct{}{}
		for _, v := range out[k[0]] {
			set[v] = struct{}{}
		}
		for _, v := range values {
			if t := tokenizer.Terms(v); len(t) == 1 {
				set[t[0]] = struct{}{}
			}
		}
		out[k[0]] = sortedKeys(set)
	}
	return out
}

// ExpandSynonyms tokenizes query and unions in the synonym list of every
// term that has one. The result is sorted and free of duplicates.
func ExpandSynonyms(query string) []string {
	set := make(map[string]struct{})
	for _, term := range tokenizer.Terms(query) {
		set[term] = struct{}{}
		for _, syn := range synonyms[term] {
			set[syn] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
