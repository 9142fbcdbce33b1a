package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitSentences cuts text after '.', '!' or '?' when the next non-space
// rune is an upper-case letter. Fragments shorter than minLen runes are
// dropped.
func SplitSentences(text string, minLen int) []string {
	var out []string
	emit := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && utf8.RuneCountInString(s) >= minLen {
			out = append(out, s)
		}
	}

	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + utf8.RuneLen(r)
		rest := strings.TrimLeftFunc(text[end:], unicode.IsSpace)
		next, _ := utf8.DecodeRuneInString(rest)
		if rest == "" || !unicode.IsUpper(next) {
			continue
		}
		emit(text[start:end])
		start = end
	}
	emit(text[start:])
	return out
}
