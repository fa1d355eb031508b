// Package textutil normalises user-typed text before it is stored or
// compared.
package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Clean returns s in NFC with surrounding space trimmed and inner runs of
// whitespace collapsed to one space.
func Clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Capitalize upper-cases the first letter of the cleaned s and lower-cases
// the rest: "pHYSICS homework" becomes "Physics homework".
func Capitalize(s string) string {
	s = Clean(s)
	if s == "" {
		return s
	}
	_, size := utf8.DecodeRuneInString(s)
	head := cases.Upper(language.Und).String(s[:size])
	tail := cases.Lower(language.Und).String(s[size:])
	return head + tail
}

// Lower returns the cleaned, lower-cased s. Used for button payloads.
func Lower(s string) string {
	return cases.Lower(language.Und).String(Clean(s))
}

// Fold returns a key for case-insensitive comparison of s.
func Fold(s string) string {
	return cases.Fold().String(Clean(s))
}

// Equal reports whether a and b are the same text ignoring case, width of
// whitespace and Unicode composition.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// StripCommas replaces commas with spaces, then cleans.
func StripCommas(s string) string {
	return Clean(strings.ReplaceAll(s, ",", " "))
}
