package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/kukmin84ai/bibliotheca/model"
)

type fakeStore struct {
	records     []*model.Record
	byID        map[string]*model.Record
	lookups     map[string]int
	searchErr   error
	getErr      error
	lastMode    string
	lastFilters model.Metadata
}

func newFakeStore(records ...*model.Record) *fakeStore {
	store := &fakeStore{records: records, byID: map[string]*model.Record{}, lookups: map[string]int{}}
	for _, record := range records {
		store.byID[record.ID] = record
	}
	return store
}

func (s *fakeStore) Search(ctx context.Context, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error) {
	s.lastMode = "dense"
	return s.results(topK, filters)
}

func (s *fakeStore) HybridSearch(ctx context.Context, query string, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error) {
	s.lastMode = "hybrid"
	return s.results(topK, filters)
}

func (s *fakeStore) results(topK int, filters model.Metadata) ([]*model.Record, error) {
	s.lastFilters = filters
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var out []*model.Record
	for _, record := range s.records {
		if record.IsParent || !record.Matches(filters) {
			continue
		}
		out = append(out, record)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*model.Record, error) {
	s.lookups[id]++
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.byID[id], nil
}

func (s *fakeStore) SelectChunksByBook(ctx context.Context, bookTitle string) ([]*model.Record, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var out []*model.Record
	for _, record := range s.records {
		if record.BookTitle == bookTitle || record.SourceFile == bookTitle {
			out = append(out, record)
		}
	}
	return out, nil
}

type fakeGraph struct {
	entities      map[string]*model.Entity
	relationships []*model.Relationship
	err           error
	searched      []string
}

func (g *fakeGraph) SearchEntity(ctx context.Context, name string) (*model.Entity, error) {
	g.searched = append(g.searched, name)
	if g.err != nil {
		return nil, g.err
	}
	if entity, ok := g.entities[name]; ok {
		return entity, nil
	}
	for key, entity := range g.entities {
		if strings.Contains(strings.ToLower(key), strings.ToLower(name)) {
			return entity, nil
		}
	}
	return nil, nil
}

func (g *fakeGraph) GetRelationships(ctx context.Context, name string, relType string) ([]*model.Relationship, error) {
	var out []*model.Relationship
	for _, rel := range g.relationships {
		if rel.Touches(name) {
			out = append(out, rel)
		}
	}
	return out, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
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

func childRecord(id string, parentID string, text string, distance float64) *model.Record {
	return &model.Record{
		ID:         id,
		Text:       text,
		ParentID:   parentID,
		SourceFile: "book.pdf",
		BookTitle:  "Book",
		Distance:   distance,
	}
}

func searchResults(prefix string, n int) []*model.SearchResult {
	results := make([]*model.SearchResult, n)
	for i := range results {
		results[i] = &model.SearchResult{Text: fmt.Sprintf("%s%d", prefix, i+1)}
	}
	return results
}

func texts(results []*model.SearchResult) []string {
	out := make([]string, len(results))
	for i, result := range results {
		out[i] = result.Text
	}
	return out
}
