package services

import (
	"errors"
	"strings"
)

var (
	// ErrModelRefusal means the model declined to write the document.
	ErrModelRefusal = errors.New("model response indicates refusal")
	// ErrEmptyOutput means the model returned no usable text.
	ErrEmptyOutput = errors.New("model returned no content")
)

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"as a large language model",
	"als großes sprachmodell",
	"als ki-sprachmodell",
	"ich kann diese anfrage nicht",
	"ich bin nicht in der lage",
}

// CleanModelOutput strips markdown fences around a model answer and rejects
// refusals and empty answers.
func CleanModelOutput(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```markdown")
	content = strings.TrimPrefix(content, "```md")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if content == "" {
		return "", ErrEmptyOutput
	}
	lower := strings.ToLower(content)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return "", ErrModelRefusal
		}
	}
	return content, nil
}
