// Package search holds the text folding and bleve query construction shared
// by the reference dataset and the override store.
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold normalises a product name or query for indexing and matching:
// lowercase, ß → ss, accents removed, punctuation turned into single spaces.
func Fold(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), "ß", "ss")

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
