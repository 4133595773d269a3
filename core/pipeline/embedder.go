package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/kukmin84ai/bibliotheca/helper"
)

// DefaultEmbeddingModel produces 384-dimensional embeddings.
const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

type featureRunner interface {
	RunPipeline(inputs []string) (*pipelines.FeatureExtractionOutput, error)
}

// HugotEmbedder embeds texts with a local sentence transformer model run
// by hugot's pure Go backend. Access to the session is serialised.
type HugotEmbedder struct {
	mu        sync.Mutex
	session   *hugot.Session
	runner    featureRunner
	dimension int
	batchSize int
}

// NewHugotEmbedder downloads modelName into modelDir if needed and starts
// a feature extraction pipeline for it.
func NewHugotEmbedder(modelDir string, modelName string, dimension int, batchSize int) (*HugotEmbedder, error) {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}

	modelPath, err := helper.PrepareModel(modelDir, modelName, "")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	embedder := newHugotEmbedder(sentencePipeline, dimension, batchSize)
	embedder.session = session
	return embedder, nil
}

func newHugotEmbedder(runner featureRunner, dimension int, batchSize int) *HugotEmbedder {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &HugotEmbedder{
		runner:    runner,
		dimension: dimension,
		batchSize: batchSize,
	}
}

// Embed embeds texts in batches and returns unit-normalised vectors in
// input order.
func (e *HugotEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runner == nil {
		return nil, fmt.Errorf("embedder is closed")
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+e.batchSize, len(texts))
		result, err := e.runner.RunPipeline(texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(result.Embeddings) != end-start {
			return nil, fmt.Errorf("got %d embeddings for %d texts", len(result.Embeddings), end-start)
		}

		for _, embedding := range result.Embeddings {
			if len(embedding) != e.dimension {
				return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(embedding), e.dimension)
			}
			vectors = append(vectors, Normalize(embedding))
		}
	}

	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (e *HugotEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding generated")
	}
	return vectors[0], nil
}

// Dimension returns the vector dimension.
func (e *HugotEmbedder) Dimension() int {
	return e.dimension
}

// Close destroys the hugot session.
func (e *HugotEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.runner = nil
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
