// Package query implements the search pipeline: FTS5 trigram candidate
// generation, per-mode rescoring, alias expansion, and context-window
// retrieval.
package query

import (
	"strings"
	"unicode"
)

// Trigrams returns the multiset of 3-character windows of q after
// lowercasing, windowed within each whitespace-delimited token. Windows
// never cross token boundaries: the FTS index holds the line's own
// character sequence, so a trigram spanning two query words would demand a
// sequence no line can contain and turn the candidate set from a
// conservative superset into an empty set. Tokens shorter than 3 runes
// contribute nothing; a query yielding no trigrams at all is rejected
// upstream as too short.
func Trigrams(q string) []string {
	var trigrams []string
	for _, token := range strings.FieldsFunc(strings.ToLower(q), unicode.IsSpace) {
		runes := []rune(token)
		for i := 0; i+3 <= len(runes); i++ {
			trigrams = append(trigrams, string(runes[i:i+3]))
		}
	}
	return trigrams
}

// MatchExpression builds an FTS5 MATCH expression requiring every trigram
// (implicit AND via space-separated quoted terms), giving FTS5 a
// conservative superset of true matches for the engine to rescore.
func MatchExpression(trigrams []string) string {
	terms := make([]string, len(trigrams))
	for i, t := range trigrams {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
