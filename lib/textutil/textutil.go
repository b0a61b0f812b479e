package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)
var punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// NormalizeName lowercases a name and strips its punctuation, so that
// "Univ. of Chicago" and "UNIV OF CHICAGO" normalize to the same string.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = punctuationRegex.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

// MatchName reports whether the normalized name contains any of the matchers,
// which are expected to be normalized already.
func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
