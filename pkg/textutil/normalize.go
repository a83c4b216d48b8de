// Package textutil provides the name normalization used to compare place names
// coming from different providers.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, strips diacritics and replaces punctuation with spaces.
// Runs of whitespace collapse to a single space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range strings.ToLower(stripped) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the set of normalized words in s.
func Tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(Normalize(s)) {
		set[w] = struct{}{}
	}
	return set
}

// TokenOverlap returns |A ∩ B| / min(|A|, |B|) over the normalized word sets of a and b.
// It is 0 when either side has no words.
func TokenOverlap(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	small, large := ta, tb
	if len(tb) < len(ta) {
		small, large = tb, ta
	}
	shared := 0
	for w := range small {
		if _, ok := large[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// SameName reports whether a and b are equal after normalization.
func SameName(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}

// ContainsAny reports whether the normalized form of s contains any of the
// (already normalized) terms as a substring.
func ContainsAny(s string, terms []string) bool {
	n := Normalize(s)
	if n == "" {
		return false
	}
	for _, t := range terms {
		if strings.Contains(n, t) {
			return true
		}
	}
	return false
}
