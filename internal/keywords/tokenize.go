package keywords

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "also": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "how": {}, "i": {},
	"in": {}, "include": {}, "is": {}, "it": {}, "if": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "so": {},
	"such": {}, "that": {}, "the": {}, "their": {}, "then": {}, "this": {}, "through": {}, "to": {},
	"we": {}, "were": {}, "which": {}, "will": {}, "with": {}, "yet": {},
}

// anything that is not a word character or whitespace
var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// IsStopword reports whether word is ignored by the index, regardless of its case.
func IsStopword(word string) bool {
	_, ok := stopwords[strings.ToLower(word)]
	return ok
}

func isUpper(word string) bool {
	cased := false
	for _, r := range word {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// Normalize applies the index's case rule to a single word: acronyms written entirely
// in uppercase are kept as-is, everything else is lowercased.
func Normalize(word string) string {
	if isUpper(word) {
		return word
	}
	return strings.ToLower(word)
}

// Words strips punctuation from text and splits it on whitespace.
func Words(text string) []string {
	return strings.Fields(punctuation.ReplaceAllString(text, ""))
}

// Tokenize returns the sorted, deduplicated keywords an award is indexed under.
func Tokenize(title, abstract string) []string {
	seen := map[string]struct{}{}
	var tokens []string
	for _, word := range Words(title + " " + abstract) {
		if IsStopword(word) {
			continue
		}
		keyword := Normalize(word)
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		tokens = append(tokens, keyword)
	}
	slices.Sort(tokens)
	return tokens
}
