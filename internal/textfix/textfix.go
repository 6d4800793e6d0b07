// Package textfix holds deterministic corrections for transcription backend
// output and the optional formatting pass applied before text is injected.
package textfix

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
)

var (
	bracketAnnotation = regexp.MustCompile(`\[[^\]]*\]`)
	parenAnnotation   = regexp.MustCompile(`(?i)\((?:[^)]*\b(?:music|noise|applause|laughter|laughs|silence|inaudible|static|blank audio|coughs?|sighs?)\b[^)]*)\)`)
	starAnnotation    = regexp.MustCompile(`\*[^*]{1,40}\*`)
	whitespace        = regexp.MustCompile(`\s+`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([,.!?;:])`)
)

// hallucinations are phrases backends emit on near silent input. They are
// dropped only when they make up the whole transcript.
var hallucinations = []string{
	"thanks for watching",
	"thanks for watching!",
	"thank you for watching",
	"thank you for watching.",
	"subtitles by the amara.org community",
}

// Clean removes backend artefacts: bracketed markers like [BLANK_AUDIO],
// sound annotations like (music) or *laughs*, and stray whitespace.
func Clean(text string) string {
	text = bracketAnnotation.ReplaceAllString(text, " ")
	text = parenAnnotation.ReplaceAllString(text, " ")
	text = starAnnotation.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(text)

	if lo.Contains(hallucinations, strings.ToLower(text)) {
		return ""
	}
	return text
}

// Format capitalizes the first letter and ends the text with a full stop when
// it does not already end in sentence punctuation.
func Format(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	first, size := utf8.DecodeRuneInString(text)
	if unicode.IsLower(first) {
		text = string(unicode.ToUpper(first)) + text[size:]
	}

	last, _ := utf8.DecodeLastRuneInString(text)
	if unicode.IsLetter(last) || unicode.IsDigit(last) {
		text += "."
	}
	return text
}

// WithTrailingSpace appends a single space to non-empty text so consecutive
// dictations do not run together.
func WithTrailingSpace(text string, enabled bool) string {
	if !enabled || text == "" || strings.HasSuffix(text, " ") {
		return text
	}
	return text + " "
}
