package extract

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kukmin84ai/bibliotheca/helper"
)

// TextExtractor reads plain text and markdown files as a single page.
type TextExtractor struct{}

// NewTextExtractor returns a new TextExtractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract reads path. Invalid UTF-8 sequences are replaced with the
// replacement character.
func (e *TextExtractor) Extract(ctx context.Context, path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, helper.NewError("read text file", err)
	}
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}

	return &Document{
		SourceFile: path,
		Pages:      []Page{{Number: 1, Text: string(content), Confidence: 1.0}},
	}, nil
}
