// Package fold normalizes Portuguese text for matching: accents are
// stripped and case is folded, so "Ação" and "acao" compare equal.
package fold

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// String removes combining marks and lower-cases s.
func String(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Equal compares two strings after folding and trimming.
func Equal(a, b string) bool {
	return String(strings.TrimSpace(a)) == String(strings.TrimSpace(b))
}

// Contains reports whether needle occurs in haystack after folding.
func Contains(haystack, needle string) bool {
	return strings.Contains(String(haystack), String(needle))
}

// Slug turns s into a lowercase ASCII identifier joined by dashes.
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(String(s), "-"), "-")
}
