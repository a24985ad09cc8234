package lib

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

func LimitStringLength(s string, max int) (string, bool) {
	asRunes := []rune(s)

	if len(asRunes) > max {
		return string(asRunes[:max]), true
	}

	return s, false
}

func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FuzzyContains reports whether query fuzzy-matches s, ignoring case and
// diacritics.
func FuzzyContains(s, query string) bool {
	return fuzzy.MatchNormalizedFold(query, s)
}
