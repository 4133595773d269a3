package pipeline

import (
	"regexp"
	"strings"
)

var headingPattern = regexp.MustCompile(`(?m)^(#{1,4})\s+(.+)$`)

// Section is a piece of text with the chapter and section headings it falls under.
type Section struct {
	Text    string
	Chapter string
	Section string
}

// SplitByStructure splits markdown-like text at headings of level 1 to 4.
// A level 1 heading starts a chapter and clears the section, deeper levels
// set the section. Text without headings is returned as one unlabelled section.
func SplitByStructure(text string) []Section {
	var sections []Section
	chapter, section := "", ""
	last := 0

	add := func(piece string) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			sections = append(sections, Section{Text: piece, Chapter: chapter, Section: section})
		}
	}

	for _, m := range headingPattern.FindAllStringSubmatchIndex(text, -1) {
		add(text[last:m[0]])

		level := m[3] - m[2]
		title := strings.TrimSpace(text[m[4]:m[5]])
		if level == 1 {
			chapter = title
			section = ""
		} else {
			section = title
		}

		last = m[1]
	}
	add(text[last:])

	if len(sections) == 0 {
		sections = append(sections, Section{Text: text})
	}

	return sections
}
