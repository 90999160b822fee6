package categorize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContainsKeyword reports whether kw occurs in text at the start of a word.
// "IGA" matches "IGA X-PRESS" but not "AMIGA" or "INVESTIGATIONS"; the
// keyword may still run into a longer word, so "MCDONALD" matches "MCDONALDS".
// Both arguments are expected in upper case.
func ContainsKeyword(text, kw string) bool {
	if kw == "" {
		return false
	}
	for offset := 0; ; {
		i := strings.Index(text[offset:], kw)
		if i < 0 {
			return false
		}
		i += offset
		if i == 0 || !isWordRune(lastRune(text[:i])) || !isWordRune(firstRune(kw)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		offset = i + size
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
