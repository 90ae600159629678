package textutil

import (
	"strings"
	"unicode"
)

// WordSegment splits a sentence into word and punctuation tokens and returns
// them joined by single spaces.
func WordSegment(sentence string) string {
	return strings.Join(Tokens(sentence), " ")
}

// Tokens returns the tokens WordSegment would join. Runs of letters, digits
// and marks form a word; every other non-space rune is a token of its own.
func Tokens(sentence string) []string {
	var (
		out  []string
		word strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			out = append(out, word.String())
			word.Reset()
		}
	}
	for _, r := range sentence {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '\'' && word.Len() > 0:
			word.WriteRune(r)
		default:
			flush()
			out = append(out, string(r))
		}
	}
	flush()
	return out
}

var displayReplacer = strings.NewReplacer(
	":", " ",
	`"`, "",
	"'", "",
	"/", "",
	`\`, "",
	"{", "",
	"}", "",
	"\t", " ",
	"\n", " ",
)

// Sanitize strips characters that break the report's error-case encoding.
func Sanitize(text string) string {
	return displayReplacer.Replace(text)
}
