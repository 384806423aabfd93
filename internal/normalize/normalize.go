// Package normalize prepares Portuguese procurement text for comparison:
// lowercase, accent-free, punctuation-free, single-spaced. Every matcher
// and rule table in the engine compares normalized forms, never raw text.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases and strips diacritics: "Certidão Negativa" → "certidao negativa".
func Fold(s string) string {
	folded, _, err := transform.String(folder, s)
	if err != nil {
		// Transform only fails on malformed UTF-8; fall back to the raw string.
		folded = s
	}
	return strings.ToLower(folded)
}

// Text fully normalizes for matching: fold, drop punctuation, collapse
// whitespace.
func Text(s string) string {
	n := Fold(s)
	n = punctuation.ReplaceAllString(n, " ")
	return strings.Join(strings.Fields(n), " ")
}

// Tokens returns the set of normalized words longer than two characters.
// Short connectives (de, da, e) carry no matching signal in pt-BR names.
func Tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(Text(s)) {
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

// Filename normalizes a file name for rule lookup: the extension is dropped
// and separators become spaces before the usual folding.
func Filename(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return Text(name)
}
