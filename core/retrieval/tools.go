package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kukmin84ai/bibliotheca/core/pipeline"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

// sectionFallbackLimit chunks are returned when no chapter or section matches.
const sectionFallbackLimit = 20

// ChapterEntry is one chapter of a table of contents.
type ChapterEntry struct {
	Chapter  string   `json:"chapter"`
	Sections []string `json:"sections"`
}

// TableOfContents is the chapter structure of a book as seen in its chunks.
type TableOfContents struct {
	BookTitle   string          `json:"book_title"`
	Chapters    []*ChapterEntry `json:"chapters"`
	TotalChunks int             `json:"total_chunks"`
}

// Tools are the direct lookups offered next to the query engine.
type Tools struct {
	embedder pipeline.Embedder
	store    VectorStore
	books    BookStore
}

// NewTools creates the tool set.
func NewTools(embedder pipeline.Embedder, store VectorStore, books BookStore) *Tools {
	return &Tools{embedder: embedder, store: store, books: books}
}

// SearchVector runs a dense search without parent expansion.
func (t *Tools) SearchVector(ctx context.Context, query string, topK int, filters model.Metadata) ([]*model.SearchResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	embedding, err := t.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}

	records, err := t.store.Search(ctx, embedding, topK, filters)
	if err != nil {
		return nil, helper.NewError("search chunks", err)
	}

	results := make([]*model.SearchResult, 0, len(records))
	for _, record := range records {
		results = append(results, ToSearchResult(record))
	}
	return results, nil
}

// TableOfContents lists the distinct chapters of a book with their
// sorted sections. bookTitle may also be the source file.
func (t *Tools) TableOfContents(ctx context.Context, bookTitle string) (*TableOfContents, error) {
	records, err := t.books.SelectChunksByBook(ctx, bookTitle)
	if err != nil {
		return nil, helper.NewError("select book chunks", err)
	}

	sections := map[string]map[string]bool{}
	for _, record := range records {
		if record.Chapter == "" {
			continue
		}
		if sections[record.Chapter] == nil {
			sections[record.Chapter] = map[string]bool{}
		}
		if record.Section != "" {
			sections[record.Chapter][record.Section] = true
		}
	}

	toc := &TableOfContents{
		BookTitle:   bookTitle,
		Chapters:    []*ChapterEntry{},
		TotalChunks: len(records),
	}
	for chapter, set := range sections {
		entry := &ChapterEntry{Chapter: chapter, Sections: []string{}}
		for section := range set {
			entry.Sections = append(entry.Sections, section)
		}
		sort.Strings(entry.Sections)
		toc.Chapters = append(toc.Chapters, entry)
	}
	sort.Slice(toc.Chapters, func(i, j int) bool {
		return toc.Chapters[i].Chapter < toc.Chapters[j].Chapter
	})

	return toc, nil
}

// Section returns the chunks of a book whose chapter or section contains
// path case-insensitively, ordered by page. Parent chunks are preferred
// since they hold the full text. Without any match the first chunks of
// the book are returned.
func (t *Tools) Section(ctx context.Context, bookTitle string, path string) ([]*model.SearchResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, helper.NewError("get section", fmt.Errorf("section path is empty"))
	}

	records, err := t.books.SelectChunksByBook(ctx, bookTitle)
	if err != nil {
		return nil, helper.NewError("select book chunks", err)
	}
	records = preferParents(records)

	lower := strings.ToLower(path)
	var matching []*model.Record
	for _, record := range records {
		if strings.Contains(strings.ToLower(record.Chapter), lower) || strings.Contains(strings.ToLower(record.Section), lower) {
			matching = append(matching, record)
		}
	}
	if len(matching) == 0 {
		matching = records[:min(sectionFallbackLimit, len(records))]
	}

	results := make([]*model.SearchResult, 0, len(matching))
	for _, record := range matching {
		result := ToSearchResult(record)
		result.Score = 0
		results = append(results, result)
	}
	return results, nil
}

func preferParents(records []*model.Record) []*model.Record {
	var parents []*model.Record
	for _, record := range records {
		if record.IsParent {
			parents = append(parents, record)
		}
	}
	if len(parents) == 0 {
		return records
	}
	return parents
}
