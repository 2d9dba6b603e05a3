// Package titles provides pure string transforms that reduce media titles to
// a comparable canonical form, plus helpers that recognize article-only and
// season-numbering differences between two titles.
package titles

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parentheticalPattern = regexp.MustCompile(`\([^)]*\)`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// lookalikes maps non-Latin letters that commonly stand in for Latin ones to
// their Latin skeleton. Some expand to more than one letter.
var lookalikes = map[rune]string{
	// Ligatures and letters NFKD does not decompose.
	'œ': "oe", 'Œ': "oe",
	'æ': "ae", 'Æ': "ae",
	'ß': "ss",
	'ø': "o", 'Ø': "o",
	'đ': "d", 'Đ': "d",
	'ł': "l", 'Ł': "l",
	'þ': "th", 'Þ': "th",
	'ð': "d", 'Ð': "d",
	// Cyrillic look-alikes.
	'а': "a", 'в': "b", 'е': "e", 'ё': "e", 'к': "k", 'м': "m", 'н': "h",
	'о': "o", 'р': "p", 'с': "c", 'т': "t", 'у': "y", 'х': "x",
	'А': "a", 'В': "b", 'Е': "e", 'К': "k", 'М': "m", 'Н': "h",
	'О': "o", 'Р': "p", 'С': "c", 'Т': "t", 'У': "y", 'Х': "x",
	// Greek look-alikes.
	'α': "a", 'β': "b", 'ε': "e", 'κ': "k", 'ο': "o", 'ρ': "p",
	'τ': "t", 'υ': "u", 'χ': "x", 'ν': "v", 'η': "n", 'μ': "m",
	// Common typographic stand-ins.
	'×': "x",
}

// foldMarks strips diacritics by decomposing to NFKD and removing combining
// marks. NFKD also folds fullwidth forms to their ASCII counterparts.
var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize reduces a title to its canonical comparable form: lower-cased,
// parenthetical asides stripped, look-alike letters transliterated to a Latin
// skeleton, underscores and dashes treated as spaces, punctuation removed, and
// whitespace collapsed. Deterministic and idempotent.
func Normalize(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	if s == "" {
		return ""
	}

	s = parentheticalPattern.ReplaceAllString(s, " ")

	if folded, _, err := transform.String(foldMarks, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == '–' || r == '—':
			b.WriteByte(' ')
		case lookalikes[r] != "":
			b.WriteString(lookalikes[r])
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
		// Everything else is punctuation; drop it.
	}

	return strings.TrimSpace(whitespacePattern.ReplaceAllString(b.String(), " "))
}

// articles are the leading tokens ignored by DiffersOnlyByArticles.
var articles = map[string]bool{"a": true, "an": true, "the": true}

// DiffersOnlyByArticles reports whether two titles are identical once leading
// articles are stripped token-wise from each. Used to avoid rejecting true
// matches over minor article differences.
func DiffersOnlyByArticles(a, b string) bool {
	sa := stripLeadingArticles(Normalize(a))
	sb := stripLeadingArticles(Normalize(b))
	return sa != "" && sa == sb
}

func stripLeadingArticles(normalized string) string {
	tokens := strings.Fields(normalized)
	for len(tokens) > 1 && articles[tokens[0]] {
		tokens = tokens[1:]
	}
	return strings.Join(tokens, " ")
}
