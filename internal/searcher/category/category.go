// Package category holds the product category rule table. Each rule carries
// the words a shopper uses to ask for the category and the tests a product
// must pass to belong to it. Query parsing, single-category filtering and
// multi-category grouping all read this one table.
package category

import "fmt"

// Category is a canonical category label.
type Category string

const (
	Phones      Category = "phones"
	Computers   Category = "computers"
	Audio       Category = "audio"
	Gaming      Category = "gaming"
	Wearables   Category = "wearables"
	Books       Category = "books"
	Electronics Category = "electronics"
	HomeGarden  Category = "home_garden"
	Clothing    Category = "clothing"
	Sports      Category = "sports"
)

// All lists every category in scan order.
var All = []Category{
	Phones, Computers, Audio, Gaming, Wearables,
	Books, Electronics, HomeGarden, Clothing, Sports,
}

// Pairing vetoes a match when any Trigger word appears without any of the
// Requires words.
type Pairing struct {
	Trigger  []string
	Requires []string
}

// Rule describes one category. Keyword lists are lowercase. Keywords of
// three characters or fewer only match whole words; longer ones match
// anywhere in the text.
type Rule struct {
	// QueryKeywords are the words in a search query that name the category.
	QueryKeywords []string
	// ExactQueryOnly disables prefix and substring matching of QueryKeywords.
	ExactQueryOnly bool

	// CategoryFields match against the product's own category label. When
	// TrustCategoryField is set, such a match is sufficient on its own.
	CategoryFields     []string
	TrustCategoryField bool

	// Keywords match name or description; NameKeywords match the name only.
	Keywords     []string
	NameKeywords []string
	// Exclude vetoes on name or description; NameExclude on the name only.
	Exclude     []string
	NameExclude []string
	// CoreNouns are the words other categories may veto on.
	CoreNouns []string
	Vetoes    []Category
	Pairing   *Pairing
}

var rules = map[Category]Rule{
	Phones: {
		QueryKeywords: []string{"phone", "phones", "smartphone", "smartphones", "mobile", "mobiles", "iphone", "cellphone"},
		Keywords:      []string{"iphone", "samsung", "galaxy", "smartphone", "pixel", "mobile phone", "cell phone"},
		NameKeywords:  []string{"phone"},
		Exclude:       []string{"headphone", "earbud", "airpod", "speaker", "earphone"},
	},
	Computers: {
		QueryKeywords: []string{"computer", "computers", "laptop", "laptops", "pc", "pcs", "desktop", "desktops", "notebook", "notebooks", "macbook"},
		Keywords:      []string{"laptop", "macbook", "computer", "pc", "desktop", "xps", "notebook", "chromebook", "ultrabook"},
		CoreNouns:     []string{"laptop", "macbook", "computer", "xps", "desktop", "chromebook"},
		Vetoes:        []Category{Gaming},
	},
	Audio: {
		QueryKeywords: []string{"audio", "sound", "music", "headphone", "headphones", "speaker", "speakers", "earbuds", "earphones"},
		Keywords:      []string{"headphone", "earbud", "speaker", "airpod", "audio", "sound", "earphone", "headset"},
	},
	Gaming: {
		QueryKeywords: []string{"gaming", "game", "games", "console", "consoles", "playstation", "xbox", "nintendo"},
		Keywords:      []string{"playstation", "xbox", "nintendo", "switch", "console", "controller", "ps5", "gaming", "video game"},
		Exclude:       []string{"dell"},
		CoreNouns:     []string{"playstation", "xbox", "nintendo", "console", "controller", "ps5"},
		Vetoes:        []Category{Computers},
		Pairing: &Pairing{
			Trigger:  []string{"accessories", "accessory"},
			Requires: []string{"console", "controller", "playstation", "xbox", "nintendo", "ps5"},
		},
	},
	Wearables: {
		QueryKeywords: []string{"wearable", "wearables", "watch", "watches", "smartwatch", "tracker"},
		Keywords:      []string{"watch", "smartwatch", "fitness tracker", "tracker", "wearable"},
	},
	Books: {
		QueryKeywords:      []string{"book", "books", "novel", "novels", "reading"},
		ExactQueryOnly:     true,
		CategoryFields:     []string{"book"},
		TrustCategoryField: true,
		Keywords:           []string{"book", "novel", "reading"},
		NameExclude:        []string{"macbook", "notebook", "laptop", "chromebook"},
	},
	Electronics: {
		QueryKeywords:      []string{"electronic", "electronics", "tech", "gadget", "gadgets"},
		CategoryFields:     []string{"electronic"},
		TrustCategoryField: true,
	},
	HomeGarden: {
		QueryKeywords:      []string{"home", "garden", "gardening", "kitchen", "furniture", "home & garden"},
		CategoryFields:     []string{"home", "garden", "kitchen"},
		TrustCategoryField: true,
		Keywords:           []string{"garden", "kitchen", "furniture", "lawn", "patio", "cookware", "planter"},
	},
	Clothing: {
		QueryKeywords:      []string{"clothing", "clothes", "apparel", "fashion", "shirt", "shirts", "jacket", "jackets"},
		CategoryFields:     []string{"cloth", "apparel", "fashion"},
		TrustCategoryField: true,
		Keywords:           []string{"shirt", "jacket", "jeans", "hoodie", "sweater", "dress"},
	},
	Sports: {
		QueryKeywords:      []string{"sport", "sports", "exercise", "outdoor", "athletic", "gym"},
		CategoryFields:     []string{"sport", "outdoor"},
		TrustCategoryField: true,
		Keywords:           []string{"yoga", "dumbbell", "treadmill", "bicycle", "tennis", "football", "basketball", "soccer", "racket", "gym"},
	},
}

// Lookup returns the rule for c.
func Lookup(c Category) (Rule, bool) {
	r, ok := rules[c]
	return r, ok
}

// Parse converts a label such as "home_garden" into a Category.
func Parse(label string) (Category, error) {
	c := Category(label)
	if _, ok := rules[c]; !ok {
		return "", fmt.Errorf("unknown category %q", label)
	}
	return c, nil
}
