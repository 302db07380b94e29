package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName folds Vietnamese diacritics, uppercases and collapses
// whitespace so company names from different documents compare equal.
// "Công Ty TNHH ABC" and "CONG  TY TNHH ABC" normalize to the same string.
func NormalizeName(s string) string {
	folded, _, err := transform.String(foldMarks, s)
	if err != nil {
		folded = s
	}
	// Đ carries no combining mark, NFD leaves it alone.
	folded = strings.NewReplacer("Đ", "D", "đ", "d").Replace(folded)
	folded = strings.ToUpper(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// NormalizeTaxNumber keeps only digits and the branch separator of a
// Vietnamese tax code, so "0312 345 678" equals "0312345678".
func NormalizeTaxNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
