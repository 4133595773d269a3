package ingest

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kukmin84ai/bibliotheca/model"
)

type memoryManifest struct {
	mu    sync.Mutex
	books map[string]*model.Book
}

func newMemoryManifest() *memoryManifest {
	return &memoryManifest{books: map[string]*model.Book{}}
}

func (m *memoryManifest) UpsertBook(ctx context.Context, book *model.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *book
	m.books[book.FilePath] = &stored
	return nil
}

func (m *memoryManifest) SelectBookByPath(ctx context.Context, filePath string) (*model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[filePath]
	if !ok {
		return nil, nil
	}
	copied := *book
	return &copied, nil
}

func (m *memoryManifest) UpdateBookStatus(ctx context.Context, filePath string, status model.BookStatus, chunkCount int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[filePath]
	if !ok {
		return fmt.Errorf("book %s not found", filePath)
	}
	book.Status = status
	book.ChunkCount = chunkCount
	book.Error = errMsg
	return nil
}

func (m *memoryManifest) DeleteBook(ctx context.Context, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, filePath)
	return nil
}

func (m *memoryManifest) book(filePath string) *model.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books[filePath]
}

type memoryChunks struct {
	mu      sync.Mutex
	chunks  map[string][]*model.Chunk
	deletes []string
}

func newMemoryChunks() *memoryChunks {
	return &memoryChunks{chunks: map[string][]*model.Chunk{}}
}

func (c *memoryChunks) InsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chunk := range chunks {
		c.chunks[chunk.SourceFile] = append(c.chunks[chunk.SourceFile], chunk)
	}
	return nil
}

func (c *memoryChunks) DeleteBySource(ctx context.Context, sourceFile string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, sourceFile)
	delete(c.chunks, sourceFile)
	return nil
}

func (c *memoryChunks) of(sourceFile string) []*model.Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunks[sourceFile]
}

// fakeEmbedder returns [1,0,0] vectors, NaN vectors for texts containing
// poison, and err when set.
type fakeEmbedder struct {
	err    error
	poison string
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if f.poison != "" && strings.Contains(text, f.poison) {
			nan := float32(math.NaN())
			vectors[i] = []float32{nan, nan, nan}
			continue
		}
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) Dimension() int {
	return 3
}

type fakeTripletExtractor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTripletExtractor) ExtractTriplets(ctx context.Context, text string, sourceFile string, chunkID string) ([]*model.Triplet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []*model.Triplet{{
		Subject:       "Grounding",
		Predicate:     model.RelationshipRelatedTo,
		Object:        fmt.Sprintf("Topic %d", f.calls),
		SourceFile:    sourceFile,
		SourceChunkID: chunkID,
		Confidence:    1.0,
	}}, nil
}

type memoryGraph struct {
	triplets []*model.Triplet
}

func (g *memoryGraph) AddTriplets(ctx context.Context, triplets []*model.Triplet) error {
	g.triplets = append(g.triplets, triplets...)
	return nil
}
