package fields

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics and collapses whitespace runs to a
// single space. It is the comparison key for labels.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Map(mapSymbol), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = string(foldRunes(s))
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// foldRunes folds s rune by rune. The result has exactly one rune per rune of
// s, so offsets found in the folded slice index the original []rune(s).
func foldRunes(s string) []rune {
	src := []rune(s)
	out := make([]rune, len(src))
	for i, r := range src {
		out[i] = foldRune(r)
	}
	return out
}

func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		return unicode.ToLower(r)
	}
	if m := mapSymbol(r); m != r {
		return m
	}
	for _, c := range norm.NFKD.String(string(r)) {
		if !unicode.Is(unicode.Mn, c) {
			return unicode.ToLower(c)
		}
	}
	return unicode.ToLower(r)
}

// mapSymbol handles look-alikes that have no decomposition.
func mapSymbol(r rune) rune {
	switch r {
	case '°':
		return 'o'
	case '\u00a0':
		return ' '
	case '\u2013', '\u2014':
		return '-'
	}
	return r
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// matchAt reports the end offset of label in text starting at pos, or -1.
// A space in label matches any non-empty run of whitespace in text.
func matchAt(text []rune, pos int, label []rune) int {
	i := pos
	for j := 0; j < len(label); j++ {
		if label[j] == ' ' {
			if i >= len(text) || !unicode.IsSpace(text[i]) {
				return -1
			}
			for i < len(text) && unicode.IsSpace(text[i]) {
				i++
			}
			continue
		}
		if i >= len(text) || text[i] != label[j] {
			return -1
		}
		i++
	}
	return i
}

// boundedMatch is matchAt plus word boundaries on both sides of the label.
func boundedMatch(text []rune, pos int, label []rune) int {
	if len(label) == 0 {
		return -1
	}
	if pos > 0 && isWordRune(text[pos-1]) && isWordRune(label[0]) {
		return -1
	}
	end := matchAt(text, pos, label)
	if end < 0 {
		return -1
	}
	if end < len(text) && isWordRune(text[end]) && isWordRune(label[len(label)-1]) {
		return -1
	}
	return end
}

// indexLabel returns the start and end of the first bounded occurrence of label.
func indexLabel(text []rune, label []rune) (int, int) {
	for pos := 0; pos < len(text); pos++ {
		if text[pos] != label[0] {
			continue
		}
		if end := boundedMatch(text, pos, label); end >= 0 {
			return pos, end
		}
	}
	return -1, -1
}

// SanitizeKey turns a free-form label into a lower_snake_case key.
func SanitizeKey(label string) string {
	folded := Fold(strings.TrimSuffix(strings.TrimSpace(label), ":"))
	var b strings.Builder
	underscore := false
	for _, r := range folded {
		if isWordRune(r) && r < utf8.RuneSelf {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if r == '.' {
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
