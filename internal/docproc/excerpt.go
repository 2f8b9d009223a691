package docproc

import (
	"strings"
	"unicode/utf8"
)

const (
	maxExcerptLength     = 300
	minSentenceLength    = 20
	maxExcerptSentences  = 3
	excerptTruncatedMark = "..."
)

// Excerpt builds a short preview from the first substantial sentences.
func Excerpt(text string) string {
	fragments := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	sentences := make([]string, 0, maxExcerptSentences)
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if utf8.RuneCountInString(f) < minSentenceLength {
			continue
		}
		sentences = append(sentences, f)
		if len(sentences) == maxExcerptSentences {
			break
		}
	}

	excerpt := strings.Join(sentences, ". ")
	if utf8.RuneCountInString(excerpt) > maxExcerptLength {
		excerpt = truncateRunes(excerpt, maxExcerptLength) + excerptTruncatedMark
	}
	return excerpt
}
