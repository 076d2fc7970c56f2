// Package textnorm canonicalizes the free-text location and category strings
// that come out of the gestion table: department and municipio lists typed by
// hand, with accents, stray whitespace and several delimiter conventions.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns the lookup form of s: lower-cased, accent-free, trimmed,
// with internal whitespace runs collapsed to one space. Normalize is
// idempotent. The result is a key, never something to show to a user.
func Normalize(s string) string {
	// Lower-case before stripping: some upper-case runes lower to a base
	// letter plus a combining mark (İ -> i + U+0307).
	lowered := strings.ToLower(s)
	out, _, err := transform.String(stripAccents, lowered)
	if err != nil {
		out = lowered
	}
	return strings.Join(strings.Fields(out), " ")
}

var (
	connectorRe = regexp.MustCompile(`(?i)[\s\p{Zs}]+(?:y|and)[\s\p{Zs}]+`)
	separatorRe = regexp.MustCompile(`[;,\n\r|/]`)
)

// SplitList splits a multi-value field ("Meta; Casanare y Arauca") into its
// unique items. The connectors "y" and "and" count as separators. Items are
// de-duplicated on their normalized form; the first spelling seen is kept and
// input order is preserved. Empty input yields an empty slice.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}

	s = connectorRe.ReplaceAllString(s, ";")
	parts := separatorRe.Split(s, -1)

	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		item := strings.Join(strings.Fields(p), " ")
		if item == "" {
			continue
		}
		key := Normalize(item)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// Equal reports whether a and b are the same once normalized.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
