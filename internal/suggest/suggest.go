// Package suggest finds close matches for mistyped filter values using
// Levenshtein distance over accent- and case-folded text.
package suggest

import (
	"sort"

	"github.com/marcus/pratica/internal/fold"
)

// levenshtein calculates the edit distance between two strings, by rune.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(
				prev[j]+1,      // deletion
				cur[j-1]+1,     // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// Similar returns up to three candidates close to unknown, best first.
// Comparison ignores accents and case, so "portugues" finds "Português".
// An exact folded match returns nil: nothing to suggest.
func Similar(unknown string, candidates []string) []string {
	needle := fold.String(unknown)
	if needle == "" {
		return nil
	}

	type scored struct {
		value string
		dist  int
	}
	var found []scored
	maxDist := max(2, len([]rune(needle))/3)
	for _, c := range candidates {
		d := levenshtein(needle, fold.String(c))
		if d == 0 {
			return nil
		}
		if d <= maxDist {
			found = append(found, scored{c, d})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })

	var out []string
	for i := 0; i < len(found) && i < 3; i++ {
		out = append(out, found[i].value)
	}
	return out
}
