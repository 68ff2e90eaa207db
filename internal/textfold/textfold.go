// Package textfold folds text for case- and accent-insensitive matching.
//
// The same functions back the SQLite domex_fold and domex_lower SQL
// functions and the in-memory evaluator, so that both match alike.
// PostgreSQL's unaccent extension also expands a few ligatures (œ, ß)
// that Unaccent leaves alone.
package textfold

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Unaccent removes combining marks: "Émile" becomes "Emile".
//
// Transformers and casers keep state, so each call builds its own.
func Unaccent(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Lower lower-cases s with the root locale rules.
func Lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Fold is Lower(Unaccent(s)).
func Fold(s string) string {
	return Lower(Unaccent(s))
}
