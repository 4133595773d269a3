package pipeline

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncEmbedder(t *testing.T) {
	t.Run("Vectors are normalised", func(t *testing.T) {
		embedder := NewFuncEmbedder(func(text string) ([]float32, error) {
			return []float32{3, 4}, nil
		}, 2)

		vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})

		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.InDelta(t, 0.6, vectors[0][0], 1e-6)
		assert.InDelta(t, 0.8, vectors[0][1], 1e-6)
		assert.Equal(t, 2, embedder.Dimension())
	})

	t.Run("Wrong dimension is an error", func(t *testing.T) {
		embedder := NewFuncEmbedder(func(text string) ([]float32, error) {
			return []float32{1, 2, 3}, nil
		}, 2)

		_, err := embedder.EmbedQuery(context.Background(), "a")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "expected 2")
	})

	t.Run("Function errors are returned", func(t *testing.T) {
		embedder := NewFuncEmbedder(func(text string) ([]float32, error) {
			return nil, fmt.Errorf("boom")
		}, 2)

		_, err := embedder.EmbedQuery(context.Background(), "a")

		assert.EqualError(t, err, "boom")
	})

	t.Run("Cancelled context stops embedding", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		embedder := NewFuncEmbedder(func(text string) ([]float32, error) {
			return []float32{1, 0}, nil
		}, 2)

		_, err := embedder.Embed(ctx, []string{"a"})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestValidVector(t *testing.T) {
	assert.True(t, ValidVector([]float32{0.1, 0.2}))
	assert.False(t, ValidVector(nil))
	assert.False(t, ValidVector([]float32{float32(math.NaN())}))
	assert.False(t, ValidVector([]float32{float32(math.Inf(1))}))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
	v := Normalize([]float32{0, 5})
	assert.InDelta(t, 1.0, v[1], 1e-6)
}
