package matching

import (
	"math"
	"strings"
)

// normalizeName upper-cases s, drops punctuation that suppliers write
// inconsistently and collapses whitespace.
func normalizeName(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Similarity scores two supplier names from 0 to 100. Every token of each
// name is matched against its closest token in the other; the weaker
// direction wins, so "TOKO" never looks like "TOKO ABADI".
func Similarity(a, b string) float64 {
	ta := strings.Fields(normalizeName(a))
	tb := strings.Fields(normalizeName(b))
	return math.Min(tokenScore(ta, tb), tokenScore(tb, ta))
}

// tokenScore averages, over the tokens of want, the best per-token
// similarity found in have.
func tokenScore(want, have []string) float64 {
	if len(want) == 0 || len(have) == 0 {
		return 0
	}
	total := 0.0
	for _, w := range want {
		best := 0.0
		for _, h := range have {
			if sim := tokenSimilarity(w, h); sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(want)) * 100
}

func tokenSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
