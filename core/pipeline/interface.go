package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/kukmin84ai/bibliotheca/model"
)

// Embedder turns texts into unit-normalised vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// TripletExtractor extracts knowledge graph triplets from a chunk of text.
type TripletExtractor interface {
	ExtractTriplets(ctx context.Context, text string, sourceFile string, chunkID string) ([]*model.Triplet, error)
}

// EmbedFunc is a function that generates an embedding for a single text
type EmbedFunc func(text string) ([]float32, error)

// FuncEmbedder adapts an EmbedFunc to the Embedder interface.
// Vectors are normalised after each call.
type FuncEmbedder struct {
	fn        EmbedFunc
	dimension int
}

// NewFuncEmbedder wraps fn, which must return vectors of the given dimension.
func NewFuncEmbedder(fn EmbedFunc, dimension int) *FuncEmbedder {
	return &FuncEmbedder{fn: fn, dimension: dimension}
}

// Embed embeds texts one by one.
func (e *FuncEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vector, err := e.fn(text)
		if err != nil {
			return nil, err
		}
		if len(vector) != e.dimension {
			return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vector), e.dimension)
		}
		vectors = append(vectors, Normalize(vector))
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (e *FuncEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension returns the vector dimension.
func (e *FuncEmbedder) Dimension() int {
	return e.dimension
}

// Normalize scales v to unit length in place and returns it.
// Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// ValidVector reports whether v is non-empty and holds only finite values.
func ValidVector(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}
