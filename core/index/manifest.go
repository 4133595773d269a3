package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

// MemoryManifest is a book manifest kept in memory, keyed by file path.
type MemoryManifest struct {
	mu    sync.RWMutex
	books map[string]*model.Book
}

// NewMemoryManifest creates an empty manifest.
func NewMemoryManifest() *MemoryManifest {
	return &MemoryManifest{books: map[string]*model.Book{}}
}

// UpsertBook inserts the book or updates the entry with the same file path.
// Empty metadata fields keep the stored values. The book is refreshed with
// the stored entry.
func (m *MemoryManifest) UpsertBook(ctx context.Context, book *model.Book) error {
	if book.FilePath == "" {
		return helper.NewError("upsert book", fmt.Errorf("file path is empty"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	stored, ok := m.books[book.FilePath]
	if !ok {
		stored = &model.Book{ID: book.ID, FilePath: book.FilePath, CreatedAt: now}
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		m.books[book.FilePath] = stored
	}

	stored.FileHash = book.FileHash
	keep(&stored.Title, book.Title)
	keep(&stored.Author, book.Author)
	keep(&stored.ISBN, book.ISBN)
	keep(&stored.DOI, book.DOI)
	keep(&stored.Publisher, book.Publisher)
	keep(&stored.Language, book.Language)
	keep(&stored.Subject, book.Subject)
	if book.Year != nil {
		year := *book.Year
		stored.Year = &year
	}
	if book.PageCount > 0 {
		stored.PageCount = book.PageCount
	}
	if len(book.Tags) > 0 {
		stored.Tags = append([]string(nil), book.Tags...)
	}
	if book.Status != "" {
		stored.Status = book.Status
	}
	stored.UpdatedAt = now

	*book = *clone(stored)
	return nil
}

// SelectBookByPath returns the book or nil when it is unknown.
func (m *MemoryManifest) SelectBookByPath(ctx context.Context, filePath string) (*model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	book, ok := m.books[filePath]
	if !ok {
		return nil, nil
	}
	return clone(book), nil
}

// SelectAllBooks returns all books ordered by file path.
func (m *MemoryManifest) SelectAllBooks(ctx context.Context) ([]*model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	books := make([]*model.Book, 0, len(m.books))
	for _, book := range m.books {
		books = append(books, clone(book))
	}
	sort.Slice(books, func(i, j int) bool { return books[i].FilePath < books[j].FilePath })
	return books, nil
}

// UpdateBookStatus records the processing outcome of a file.
func (m *MemoryManifest) UpdateBookStatus(ctx context.Context, filePath string, status model.BookStatus, chunkCount int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.books[filePath]
	if !ok {
		return helper.NewError("update book status", fmt.Errorf("book %s not found", filePath))
	}
	book.Status = status
	book.ChunkCount = chunkCount
	book.Error = errMsg
	book.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteBook removes the entry of filePath.
func (m *MemoryManifest) DeleteBook(ctx context.Context, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.books, filePath)
	return nil
}

func keep(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func clone(book *model.Book) *model.Book {
	c := *book
	if book.Year != nil {
		year := *book.Year
		c.Year = &year
	}
	c.Tags = append([]string(nil), book.Tags...)
	return &c
}
