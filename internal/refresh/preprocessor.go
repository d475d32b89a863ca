package refresh

import (
	"strings"
	"unicode"
)

// Preprocess prepares a record title or body for indexing: control characters
// go, every run of whitespace becomes one space and the ends are trimmed.
func Preprocess(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(cleaned), " ")
}
