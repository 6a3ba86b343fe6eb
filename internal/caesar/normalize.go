package caesar

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ligatures = map[rune]string{
	'Æ': "AE",
	'æ': "ae",
	'Œ': "OE",
	'œ': "oe",
	'ß': "ss",
}

const combiningTilde = '\u0303'

// dropMarks removes nonspacing marks. It holds no state and is safe for
// concurrent use, unlike a transform.Chain.
var dropMarks = runes.Remove(runes.In(unicode.Mn))

// Normalize expands ligatures and strips diacritics from text, keeping ñ and
// Ñ. It is the form a Transform round trip gives back.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if seq := normalizeRune(r); seq != "" {
			b.WriteString(seq)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeRune(r rune) string {
	expanded, ok := ligatures[r]
	if !ok {
		return stripDiacritics(r)
	}
	var b strings.Builder
	for _, e := range expanded {
		b.WriteString(stripDiacritics(e))
	}
	return b.String()
}

// stripDiacritics decomposes r and drops its combining marks. An n with a
// combining tilde stays ñ.
func stripDiacritics(r rune) string {
	if r < utf8.RuneSelf {
		return string(r)
	}
	decomposed := norm.NFD.String(string(r))
	if enye, ok := keepEnye(decomposed); ok {
		return string(enye)
	}
	out, _, err := transform.String(dropMarks, decomposed)
	if err != nil {
		return string(r)
	}
	return out
}

func keepEnye(decomposed string) (rune, bool) {
	if !strings.ContainsRune(decomposed, combiningTilde) {
		return 0, false
	}
	switch []rune(decomposed)[0] {
	case 'n':
		return 'ñ', true
	case 'N':
		return 'Ñ', true
	}
	return 0, false
}
