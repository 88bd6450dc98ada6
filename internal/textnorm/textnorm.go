// Package textnorm folds, strips and tokenizes free text so that titles and
// bodies written in different languages and casings compare equal.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold applies Unicode case folding. A new Caser is built per call because
// Casers keep state and must not be shared between goroutines.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// StripMarks removes combining marks, so "Sénégal" becomes "Senegal".
func StripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokens case-folds s and splits it on every non-word character.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), isSeparator)
}

// TokenSet returns the distinct tokens of s.
func TokenSet(s string) map[string]struct{} {
	tokens := Tokens(s)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// Words case-folds s, strips diacritics and returns its tokens in order.
func Words(s string) []string {
	return strings.FieldsFunc(StripMarks(Fold(s)), isSeparator)
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}
