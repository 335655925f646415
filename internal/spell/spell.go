// Package spell suggests corrections for misspelled names.
package spell

import (
	"github.com/agext/levenshtein"
)

// Nearest returns the candidate closest to word, or the empty string if no candidate is close
// enough to be a plausible misspelling. Ties go to the earliest candidate.
func Nearest(word string, candidates []string) string {
	limit := max(1, len(word)/3)

	nearest, best := "", limit+1
	for _, c := range candidates {
		if d := levenshtein.Distance(word, c, nil); d < best {
			nearest, best = c, d
		}
	}
	return nearest
}
