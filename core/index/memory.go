// Package index provides an in-process chunk store with the same search
// contracts as the Postgres chunks table.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/kukmin84ai/bibliotheca/core/pipeline"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

type entry struct {
	record    *model.Record
	embedding []float32
	order     int
}

// keywordDoc is the document indexed in bleve.
type keywordDoc struct {
	Text string `json:"text"`
}

// MemoryStore keeps chunks in memory. Dense search is brute-force cosine,
// keyword relevance comes from an in-memory bleve index.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]*entry
	next      int
	keywords  bleve.Index
}

// NewMemoryStore creates an empty store for vectors of the given dimension.
func NewMemoryStore(dimension int) (*MemoryStore, error) {
	if dimension <= 0 {
		return nil, helper.NewError("create memory store", fmt.Errorf("dimension must be positive"))
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	im.DefaultMapping = docMapping

	keywords, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, helper.NewError("create keyword index", err)
	}

	return &MemoryStore{
		dimension: dimension,
		entries:   map[string]*entry{},
		keywords:  keywords,
	}, nil
}

// Close releases the keyword index.
func (s *MemoryStore) Close() error {
	return s.keywords.Close()
}

// InsertChunks adds or replaces chunks. Chunks without id get one. The
// whole batch is validated and indexed before any chunk becomes visible.
func (s *MemoryStore) InsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	for _, chunk := range chunks {
		if chunk.Embedding != nil && len(chunk.Embedding) != s.dimension {
			return helper.NewError("insert chunk", fmt.Errorf("embedding has %d dimensions, expected %d", len(chunk.Embedding), s.dimension))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.keywords.NewBatch()
	for _, chunk := range chunks {
		if chunk.ChunkID == "" {
			chunk.ChunkID = model.NewChunkID()
		}
		if err := batch.Index(chunk.ChunkID, keywordDoc{Text: chunk.Text}); err != nil {
			return helper.NewError("index chunk text", err)
		}
	}
	if err := s.keywords.Batch(batch); err != nil {
		return helper.NewError("index chunk text", err)
	}

	for _, chunk := range chunks {
		var embedding []float32
		if chunk.Embedding != nil {
			embedding = make([]float32, len(chunk.Embedding))
			copy(embedding, chunk.Embedding)
		}

		order := s.next
		if existing, ok := s.entries[chunk.ChunkID]; ok {
			order = existing.order
		} else {
			s.next++
		}
		s.entries[chunk.ChunkID] = &entry{record: chunk.ToRecord(), embedding: embedding, order: order}
	}

	return nil
}

// DeleteBySource removes every chunk of sourceFile.
func (s *MemoryStore) DeleteBySource(ctx context.Context, sourceFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.keywords.NewBatch()
	for id, e := range s.entries {
		if e.record.SourceFile == sourceFile {
			delete(s.entries, id)
			batch.Delete(id)
		}
	}

	if err := s.keywords.Batch(batch); err != nil {
		return helper.NewError("delete chunk text", err)
	}
	return nil
}

// GetByID returns a copy of the record or nil when missing.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	record := *e.record
	return &record, nil
}

// CountChunks returns the number of stored chunks.
func (s *MemoryStore) CountChunks(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries), nil
}

// Search returns the topK records closest to embedding by cosine distance.
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error) {
	if len(embedding) != s.dimension {
		return nil, helper.NewError("search chunks", fmt.Errorf("query has %d dimensions, expected %d", len(embedding), s.dimension))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		entry    *entry
		distance float64
	}
	var candidates []scored
	for _, e := range s.candidates(filters) {
		candidates = append(candidates, scored{entry: e, distance: 1 - pipeline.CosineSimilarity(embedding, e.embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	records := make([]*model.Record, 0, min(topK, len(candidates)))
	for i := 0; i < len(candidates) && i < topK; i++ {
		record := *candidates[i].entry.record
		record.Distance = candidates[i].distance
		records = append(records, &record)
	}
	return records, nil
}

// HybridSearch ranks by 0.7 * cosine similarity + 0.3 * keyword score,
// with keyword scores divided by the best score among the candidates.
// The returned distance is the cosine distance.
func (s *MemoryStore) HybridSearch(ctx context.Context, query string, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error) {
	if len(embedding) != s.dimension {
		return nil, helper.NewError("hybrid search chunks", fmt.Errorf("query has %d dimensions, expected %d", len(embedding), s.dimension))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.candidates(filters)
	keywordScores, err := s.keywordScores(query)
	if err != nil {
		return nil, err
	}

	maxKeyword := 0.0
	for _, e := range candidates {
		maxKeyword = math.Max(maxKeyword, keywordScores[e.record.ID])
	}

	type scored struct {
		entry      *entry
		similarity float64
		fused      float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, e := range candidates {
		similarity := pipeline.CosineSimilarity(embedding, e.embedding)
		keyword := 0.0
		if maxKeyword > 0 {
			keyword = keywordScores[e.record.ID] / maxKeyword
		}
		ranked = append(ranked, scored{
			entry:      e,
			similarity: similarity,
			fused:      model.HybridDenseWeight*similarity + model.HybridKeywordWeight*keyword,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].fused > ranked[j].fused
	})

	records := make([]*model.Record, 0, min(topK, len(ranked)))
	for i := 0; i < len(ranked) && i < topK; i++ {
		record := *ranked[i].entry.record
		record.Distance = 1 - ranked[i].similarity
		records = append(records, &record)
	}
	return records, nil
}

// SelectChunksByBook returns the chunks whose book title or source file is
// bookTitle, ordered by page with unknown pages last.
func (s *MemoryStore) SelectChunksByBook(ctx context.Context, bookTitle string) ([]*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*entry
	for _, e := range s.entries {
		if e.record.BookTitle == bookTitle || e.record.SourceFile == bookTitle {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		pi, pj := entries[i].record.PageNum, entries[j].record.PageNum
		if (pi == 0) != (pj == 0) {
			return pj == 0
		}
		if pi != pj {
			return pi < pj
		}
		return entries[i].order < entries[j].order
	})

	records := make([]*model.Record, 0, len(entries))
	for _, e := range entries {
		record := *e.record
		records = append(records, &record)
	}
	return records, nil
}

// candidates returns the embedded entries matching filters in insertion
// order. Must be called with the lock held.
func (s *MemoryStore) candidates(filters model.Metadata) []*entry {
	var entries []*entry
	for _, e := range s.entries {
		if e.embedding != nil && e.record.Matches(filters) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].order < entries[j].order
	})
	return entries
}

func (s *MemoryStore) keywordScores(query string) (map[string]float64, error) {
	scores := map[string]float64{}
	if strings.TrimSpace(query) == "" || len(s.entries) == 0 {
		return scores, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("text")
	request := bleve.NewSearchRequest(matchQuery)
	request.Size = len(s.entries)

	results, err := s.keywords.Search(request)
	if err != nil {
		return nil, helper.NewError("keyword search", err)
	}
	for _, hit := range results.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}
