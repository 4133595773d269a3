package pipeline

import (
	"regexp"
	"strings"
)

// sentenceBoundary matches Unicode whitespace, not just ASCII, so no-break
// and ideographic spaces in OCR output still end a sentence.
var sentenceBoundary = regexp.MustCompile(`[.!?][\s\v\p{Z}\x{0085}]+`)

// SplitSentences splits text at whitespace that follows '.', '!' or '?'.
// The punctuation stays with its sentence. Sentences are trimmed and
// empty ones dropped.
func SplitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		sentences = appendTrimmed(sentences, text[last:loc[0]+1])
		last = loc[1]
	}
	return appendTrimmed(sentences, text[last:])
}

func appendTrimmed(list []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return list
	}
	return append(list, s)
}
