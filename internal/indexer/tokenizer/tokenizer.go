// Package tokenizer turns free text into index terms. It lower-cases input,
// treats every rune other than a letter, digit or underscore as a separator,
// and folds two common suffixes. The same function runs over catalog
// documents and queries, so any change here changes matching on both sides.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a normalised term and its ordinal position in the source text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased, suffix-folded Tokens. Empty or
// separator-only input yields an empty slice.
func Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, 0, len(words))
	for i, w := range words {
		tokens = append(tokens, Token{Term: stem(w), Position: i})
	}
	return tokens
}

// Terms is Tokenize without positions.
func Terms(text string) []string {
	words := split(text)
	for i, w := range words {
		words[i] = stem(w)
	}
	return words
}

func split(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), isSeparator)
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

// stem drops a plural "s" from words longer than three runes, then an "ing"
// from what remains when it is longer than five. Deliberately crude: "glass"
// becomes "glas" and "running" becomes "runn", on queries and documents
// alike.
func stem(word string) string {
	if strings.HasSuffix(word, "s") && utf8.RuneCountInString(word) > 3 {
		word = word[:len(word)-1]
	}
	if strings.HasSuffix(word, "ing") && utf8.RuneCountInString(word) > 5 {
		word = word[:len(word)-3]
	}
	return word
}
