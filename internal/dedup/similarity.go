package dedup

import (
	"math"
	"strings"
)

// Similarity scores two text fields 0..100 using normalized Levenshtein
// distance. Strings are trimmed and lowercased first; blank input on either
// side scores 0.
func Similarity(a, b string) int {
	s1 := []rune(strings.ToLower(strings.TrimSpace(a)))
	s2 := []rune(strings.ToLower(strings.TrimSpace(b)))

	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}
	if string(s1) == string(s2) {
		return 100
	}

	// Keep the DP row over the shorter string.
	if len(s1) < len(s2) {
		s1, s2 = s2, s1
	}

	distance := levenshtein(s1, s2)
	maxLen := len(s1)
	return int(math.Round((1 - float64(distance)/float64(maxLen)) * 100))
}

// levenshtein computes edit distance with unit insert/delete/substitute
// costs, retaining only the previous DP row.
func levenshtein(s1, s2 []rune) int {
	n, m := len(s1), len(s2)

	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}

	for i := 1; i <= n; i++ {
		curr[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[m]
}
