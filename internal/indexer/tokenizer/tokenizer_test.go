package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"  ,,, !!", []string{}},
		{"Wireless Headphones", []string{"wireles", "headphone"}},
		{"running shoes", []string{"runn", "shoe"}},
		{"things", []string{"thing"}},
		{"bus gas", []string{"bus", "gas"}},
		{"Gaming-Console (PS5)", []string{"gam", "console", "ps5"}},
		{"home_garden", []string{"home_garden"}},
		{"$1,000 budget", []string{"1", "000", "budget"}},
		{"Café Crème", []string{"café", "crème"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Terms(tt.in))
		})
	}
}

func TestTokenizePositions(t *testing.T) {
	tokens := Tokenize("The Laptops, the Tablets")
	assert.Equal(t, []Token{
		{Term: "the", Position: 0},
		{Term: "laptop", Position: 1},
		{Term: "the", Position: 2},
		{Term: "tablet", Position: 3},
	}, tokens)
}

func TestStemRuleOrder(t *testing.T) {
	// "s" is stripped first, so "ings" loses both suffixes when long enough.
	assert.Equal(t, "paint", stem("paintings"))
	assert.Equal(t, "sing", stem("sings"))
	assert.Equal(t, "ring", stem("ring"))
	assert.Equal(t, "str", stem("string"))
	assert.Equal(t, "is", stem("is"))
}

func TestTermsDeterministic(t *testing.T) {
	text := strings.Repeat("Noise cancelling earbuds with charging case. ", 10)
	assert.Equal(t, Terms(text), Terms(text))
}

var benchTexts = map[string]string{
	"query": "cheap wireless headphones under $100",
	"product": `Premium over-ear headphones with active noise cancellation, 30-hour battery
		life and fast charging. Includes carrying case and audio cable.`,
	"catalog": strings.Repeat(`Ultra-thin laptop with a 14 inch display, 16GB memory and
		all-day battery. Ideal for students, travel and office productivity. `, 50),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range benchTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTermsParallel(b *testing.B) {
	text := benchTexts["product"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Terms(text)
		}
	})
}
