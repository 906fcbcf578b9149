// Package textnorm turns page text into a bag of normalized terms: letters
// only, stop words removed, Snowball-stemmed, lowercased.
package textnorm

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// skipPrefix drops tokens that begin with it. Pages crawled by the first
// deployment were full of "wg..." template identifiers and existing term
// bags never contain them.
const skipPrefix = "wg"

// Normalize returns the term histogram of text. Malformed or empty input
// yields an empty bag.
func Normalize(text string) map[string]int {
	bag := make(map[string]int)
	for _, field := range strings.Fields(text) {
		if term, ok := Term(field); ok {
			bag[term]++
		}
	}
	return bag
}

// Term normalizes a single whitespace-delimited token. It reports false
// when the token carries no indexable word.
func Term(token string) (string, bool) {
	word := leadingWord(token)
	if word == "" || strings.HasPrefix(word, skipPrefix) {
		return "", false
	}
	lower := strings.ToLower(word)
	if IsStopWord(lower) {
		return "", false
	}
	stemmed := strings.ToLower(english.Stem(lower, true))
	if stemmed == "" || IsStopWord(stemmed) {
		return "", false
	}
	return stemmed, true
}

// Terms normalizes query input token by token, keeping order and repeats.
func Terms(text string) []string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if term, ok := Term(field); ok {
			terms = append(terms, term)
		}
	}
	return terms
}

// leadingWord returns the first maximal run of letters in token.
func leadingWord(token string) string {
	start := strings.IndexFunc(token, unicode.IsLetter)
	if start < 0 {
		return ""
	}
	rest := token[start:]
	if end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) }); end >= 0 {
		return rest[:end]
	}
	return rest
}
