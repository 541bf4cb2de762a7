package query

import (
	"strings"

	edlib "github.com/hbollon/go-edlib"
)

// FuzzyScore computes a similarity score in [0, 1] between query q and a
// candidate line's text. Jaro-Winkler similarity is the base, boosted to
// reward: exact substring hits strongest, filename-tail matches
// (line_number == 0) over mid-content matches, contiguous character runs
// of two or more characters, and word-boundary matches.
func FuzzyScore(q, line string, lineNumber int) float64 {
	if q == "" || line == "" {
		return 0
	}
	qLower := strings.ToLower(q)
	lineLower := strings.ToLower(line)

	if qLower == lineLower {
		return 1.0
	}

	base, err := edlib.StringsSimilarity(qLower, lineLower, edlib.JaroWinkler)
	score := float64(base)
	if err != nil {
		score = 0
	}

	if strings.Contains(lineLower, qLower) {
		score = max(score, 0.9)
		if lineNumber == 0 {
			score = max(score, 0.97)
		}
		if atWordBoundary(lineLower, qLower) {
			score = max(score, 0.95)
		}
	}

	if run := longestCommonRun(qLower, lineLower); run > 1 {
		runBoost := float64(run) / float64(len(qLower))
		score = max(score, 0.5+0.4*runBoost)
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// atWordBoundary reports whether needle occurs in haystack starting (and
// ending) on a non-alphanumeric boundary or string edge.
func atWordBoundary(haystack, needle string) bool {
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return false
	}
	before := idx == 0 || !isWordChar(rune(haystack[idx-1]))
	afterIdx := idx + len(needle)
	after := afterIdx >= len(haystack) || !isWordChar(rune(haystack[afterIdx]))
	return before && after
}

func isWordChar(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// longestCommonRun returns the length of the longest contiguous substring
// shared by a and b.
func longestCommonRun(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	prev := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			}
		}
		prev = cur
	}
	return best
}
