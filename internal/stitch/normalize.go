package stitch

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// separatorReplacer maps punctuation and structural characters to spaces
// before whitespace collapsing. The set is fixed: two names that differ
// only in separators normalize identically.
var separatorReplacer = strings.NewReplacer(
	"-", " ", "_", " ", ".", " ", ",", " ",
	"(", " ", ")", " ", "[", " ", "]", " ",
	"{", " ", "}", " ", "\\", " ", "/", " ",
	"|", " ", ":", " ", ";", " ", "'", " ",
	"\"", " ", "`", " ", "\t", " ", "\n", " ", "\r", " ",
)

// Normalize canonicalizes a name or description for comparison: NFC
// normalization at the boundary, lowercase, separators to spaces, runs of
// whitespace collapsed, trimmed.
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = separatorReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// stripSpaces removes every space from an already-normalized string.
// Edit distance is measured spaceless so "VSCode" and "VS Code" are a
// distance-zero pair.
func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// levenshtein computes the edit distance between a and b over runes,
// with unit costs for insert, delete, and substitute. Two rows of the
// classic DP table are kept.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}
