package match

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity compares two text values and returns a score in [0,1].
// Both inputs are normalized before comparison so punctuation and casing
// differences ("Guns N' Roses" vs "guns n roses") do not count against
// the match. Empty input on either side scores 0.
func Similarity(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0.0
	}

	na := Normalize(a)
	nb := Normalize(b)

	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.8
	}

	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(na, nb)
	score := 1.0 - float64(distance)/float64(maxLen)
	if score < 0 {
		return 0.0
	}
	return score
}

// Normalize lowercases s and strips the punctuation variations that
// discography sources disagree on: "&" vs "and", apostrophes, hyphens.
// Repeated whitespace collapses to a single space.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", "and")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "’", "")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
