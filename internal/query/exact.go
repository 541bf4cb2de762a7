package query

import "strings"

// ExactMatch reports whether line contains q as a case-insensitive
// substring. A matching candidate scores 1.0.
func ExactMatch(q, line string) bool {
	return strings.Contains(strings.ToLower(line), strings.ToLower(q))
}
