package conversation

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after NFKD decomposition, which drops
// Arabic diacritics (tashkeel) along with Latin accents.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var arabicFolds = strings.NewReplacer(
	"أ", "ا",
	"إ", "ا",
	"آ", "ا",
	"ة", "ه",
	"ى", "ي",
)

// Normalize canonicalizes free text for keyword matching: diacritics are
// stripped, Arabic letter variants folded, anything outside letters, digits,
// underscore, whitespace and the Arabic block removed, whitespace collapsed,
// and the result lowercased. Idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	stripped, _, err := transform.String(stripMarks, text)
	if err != nil {
		stripped = text
	}
	folded := arabicFolds.Replace(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 0x0621 && r <= 0x064A:
			b.WriteRune(r)
		case r >= 0x0660 && r <= 0x0669: // Arabic-Indic digits fold to ASCII
			b.WriteRune('0' + (r - 0x0660))
		case r >= 0x06F0 && r <= 0x06F9: // extended (eastern) variants too
			b.WriteRune('0' + (r - 0x06F0))
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}

	return strings.ToLower(strings.Join(strings.Fields(b.String()), " "))
}
