package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads the text layer of a PDF page by page. Pages without
// text get confidence 0, since they most likely need OCR.
type PDFExtractor struct{}

// NewPDFExtractor returns a new PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads path.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, helper.NewError("read pdf file", err)
	}

	pages, err := extractPDFPages(ctx, content)
	if err != nil {
		return nil, helper.NewError("extract pdf", err)
	}
	return &Document{SourceFile: path, Pages: pages}, nil
}

func extractPDFPages(ctx context.Context, content []byte) ([]Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := r.NumPage()
	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}

		confidence := 0.0
		if strings.TrimSpace(text) != "" {
			confidence = 1.0
		}
		pages = append(pages, Page{Number: i, Text: text, Confidence: confidence})
	}
	return pages, nil
}
