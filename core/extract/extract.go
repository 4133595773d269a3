// Package extract turns book files into page-wise plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupported is returned for files without a registered extractor.
var ErrUnsupported = errors.New("unsupported file type")

// Page is the text of one page. Number starts at 1.
type Page struct {
	Number     int
	Text       string
	Confidence float64
}

// Document is the extracted content of a file.
type Document struct {
	SourceFile string
	Pages      []Page
}

// Text joins all pages separated by blank lines.
func (d *Document) Text() string {
	texts := make([]string, 0, len(d.Pages))
	for _, page := range d.Pages {
		texts = append(texts, page.Text)
	}
	return strings.Join(texts, "\n\n")
}

// Empty reports whether no page holds any text.
func (d *Document) Empty() bool {
	for _, page := range d.Pages {
		if strings.TrimSpace(page.Text) != "" {
			return false
		}
	}
	return true
}

// Extractor reads a file into a Document.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// Registry selects an extractor by lowercase file extension.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a registry with the text and PDF extractors.
func NewRegistry() *Registry {
	r := &Registry{extractors: map[string]Extractor{}}
	text := NewTextExtractor()
	r.Register(".txt", text)
	r.Register(".md", text)
	r.Register(".markdown", text)
	r.Register(".pdf", NewPDFExtractor())
	return r
}

// Register sets the extractor for ext, with or without the leading dot.
func (r *Registry) Register(ext string, extractor Extractor) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.extractors[ext] = extractor
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the registered extensions sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads path with the extractor registered for its extension.
func (r *Registry) Extract(ctx context.Context, path string) (*Document, error) {
	extractor, ok := r.extractors[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return extractor.Extract(ctx, path)
}
