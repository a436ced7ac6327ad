package preparation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTopicRunes caps a stored topic.
const MaxTopicRunes = 120

var (
	topicLabel    = regexp.MustCompile(`(?i)^\s*(topic:|main topic:)\s*`)
	trailingPunct = regexp.MustCompile(`[\s.!?]+$`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// NormalizeTopic cleans a generated topic: it drops a leading "Topic:" or
// "Main topic:" label and trailing punctuation, collapses whitespace, caps the
// length and capitalizes the first letter. It returns "" when nothing is left.
func NormalizeTopic(raw string) string {
	t := strings.TrimSpace(raw)
	t = strings.TrimSpace(topicLabel.ReplaceAllString(t, ""))
	t = strings.TrimSpace(trailingPunct.ReplaceAllString(t, ""))
	t = whitespaceRun.ReplaceAllString(t, " ")

	if utf8.RuneCountInString(t) > MaxTopicRunes {
		t = string([]rune(t)[:MaxTopicRunes])
	}
	if t == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(t)
	return string(unicode.ToUpper(r)) + t[size:]
}
