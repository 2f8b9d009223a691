package docproc

import (
	"regexp"
	"strings"
)

// MaxTextLength caps sanitized text, in characters.
const MaxTextLength = 100000

var (
	lineBreakRe   = regexp.MustCompile(`[\t\n\v\f\r]`)
	controlCharRe = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	scriptBlockRe = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe  = regexp.MustCompile(`[\s\p{Z}]+`)
)

// Sanitize strips control characters and markup from extracted text.
// The steps run in a fixed order: whitespace is collapsed only after tags are
// gone, so the gap a removed tag leaves behind folds into a single space.
// Tabs and line breaks separate words in extracted text and become spaces;
// every other control character is dropped.
func Sanitize(text string) string {
	text = lineBreakRe.ReplaceAllString(text, " ")
	text = controlCharRe.ReplaceAllString(text, "")
	text = scriptBlockRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = truncateRunes(text, MaxTextLength)
	return strings.TrimSpace(text)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
