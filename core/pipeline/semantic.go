package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// SemanticMerger groups consecutive sentences of a section while their
// embeddings stay similar.
type SemanticMerger struct {
	embedder  Embedder
	threshold float64
	childSize int
	overlap   int
	log       *slog.Logger
}

// NewSemanticMerger creates a merger. A nil embedder always uses the word
// window fallback.
func NewSemanticMerger(embedder Embedder, threshold float64, childSize int, overlap int, logger *slog.Logger) *SemanticMerger {
	return &SemanticMerger{
		embedder:  embedder,
		threshold: threshold,
		childSize: childSize,
		overlap:   overlap,
		log:       logger,
	}
}

// Merge splits text into semantically coherent segments.
func (m *SemanticMerger) Merge(ctx context.Context, text string) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return []string{text}
	}
	if len(sentences) == 1 {
		return sentences
	}

	embeddings, err := m.embedSentences(ctx, sentences)
	if err != nil {
		if m.log != nil {
			m.log.Debug("Semantic splitting unavailable, using word windows", "error", err)
		}
		return WindowSplit(text, m.childSize, m.overlap)
	}

	return mergeBySimilarity(sentences, embeddings, m.threshold)
}

func (m *SemanticMerger) embedSentences(ctx context.Context, sentences []string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}

	embeddings, err := m.embedder.Embed(ctx, sentences)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(sentences) {
		return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d sentences", len(embeddings), len(sentences))
	}

	return embeddings, nil
}

// mergeBySimilarity joins sentence i to the running segment when
// cos(emb[i-1], emb[i]) >= threshold.
func mergeBySimilarity(sentences []string, embeddings [][]float32, threshold float64) []string {
	var segments []string
	current := []string{sentences[0]}

	for i := 1; i < len(sentences); i++ {
		if CosineSimilarity(embeddings[i-1], embeddings[i]) >= threshold {
			current = append(current, sentences[i])
			continue
		}
		segments = append(segments, strings.Join(current, " "))
		current = []string{sentences[i]}
	}

	return append(segments, strings.Join(current, " "))
}

// CosineSimilarity calculates the cosine similarity between two embedding
// vectors. Vectors of different length or zero norm score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
