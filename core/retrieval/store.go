package retrieval

import (
	"context"

	"github.com/kukmin84ai/bibliotheca/model"
)

// VectorStore is the chunk store the query engine retrieves from.
// GetByID returns nil, nil for unknown ids.
type VectorStore interface {
	Search(ctx context.Context, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error)
	HybridSearch(ctx context.Context, query string, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error)
	GetByID(ctx context.Context, id string) (*model.Record, error)
}

// BookStore lists the chunks of one book.
type BookStore interface {
	SelectChunksByBook(ctx context.Context, bookTitle string) ([]*model.Record, error)
}

// GraphStore is the part of the knowledge graph used for augmentation.
type GraphStore interface {
	SearchEntity(ctx context.Context, name string) (*model.Entity, error)
	GetRelationships(ctx context.Context, name string, relType string) ([]*model.Relationship, error)
}
