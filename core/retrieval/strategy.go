package retrieval

import (
	"context"
	"fmt"

	"github.com/kukmin84ai/bibliotheca/model"
)

// Strategy retrieves candidate records for a query.
type Strategy interface {
	Retrieve(ctx context.Context, query string, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error)
}

// HybridStrategy fuses dense similarity with keyword relevance.
type HybridStrategy struct {
	store VectorStore
}

// NewHybridStrategy creates a new hybrid strategy
func NewHybridStrategy(store VectorStore) *HybridStrategy {
	return &HybridStrategy{store: store}
}

// Retrieve performs hybrid retrieval
func (s *HybridStrategy) Retrieve(ctx context.Context, query string, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error) {
	return s.store.HybridSearch(ctx, query, embedding, topK, filters)
}

// DenseStrategy performs pure vector similarity search
type DenseStrategy struct {
	store VectorStore
}

// NewDenseStrategy creates a new dense strategy
func NewDenseStrategy(store VectorStore) *DenseStrategy {
	return &DenseStrategy{store: store}
}

// Retrieve performs dense retrieval, the query text is not used.
func (s *DenseStrategy) Retrieve(ctx context.Context, query string, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error) {
	return s.store.Search(ctx, embedding, topK, filters)
}

// NewStrategy returns the strategy for mode. An empty mode is hybrid.
func NewStrategy(mode model.RetrievalMode, store VectorStore) (Strategy, error) {
	switch mode {
	case model.RetrievalModeHybrid, "":
		return NewHybridStrategy(store), nil
	case model.RetrievalModeDense:
		return NewDenseStrategy(store), nil
	default:
		return nil, fmt.Errorf("unknown retrieval mode %q", mode)
	}
}
