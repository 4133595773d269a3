package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps each text to a deterministic vector derived from its
// first word. Sentences sharing a first word are identical.
type fakeEmbedder struct {
	dim   int
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.vector(text)
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
	return f.dim
}

func (f *fakeEmbedder) vector(text string) []float32 {
	first := ""
	if words := strings.Fields(text); len(words) > 0 {
		first = strings.ToLower(words[0])
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(first))
	v := make([]float32, f.dim)
	v[int(h.Sum32())%f.dim] = 1
	return v
}

func testMetadata() model.Metadata {
	return model.Metadata{
		model.MetadataSourceFile: "books/optics.pdf",
		model.MetadataBookTitle:  "Test Book",
		model.MetadataAuthor:     "Jane Doe",
		model.MetadataLanguage:   "en",
	}
}

func assertReferentialClosure(t *testing.T, chunks []*model.Chunk) {
	t.Helper()

	parents := map[string]bool{}
	ids := map[string]bool{}
	for _, chunk := range chunks {
		assert.False(t, ids[chunk.ChunkID], "duplicate chunk id %s", chunk.ChunkID)
		ids[chunk.ChunkID] = true
		if chunk.IsParent {
			assert.Nil(t, chunk.ParentID)
			parents[chunk.ChunkID] = true
		}
	}
	for _, chunk := range chunks {
		if !chunk.IsParent {
			require.NotNil(t, chunk.ParentID)
			assert.True(t, parents[*chunk.ParentID], "child %s points to unknown parent", chunk.ChunkID)
		}
	}
}

func TestChunkDocument(t *testing.T) {
	logger := helper.NewLogger("error")

	t.Run("Blank text yields no chunks", func(t *testing.T) {
		engine := NewChunkingEngine(model.DefaultChunkingConfig(), nil, logger)

		assert.Empty(t, engine.ChunkDocument(context.Background(), "", testMetadata()))
		assert.Empty(t, engine.ChunkDocument(context.Background(), "  \n\t ", testMetadata()))
	})

	t.Run("Non-empty text yields parents and children", func(t *testing.T) {
		engine := NewChunkingEngine(model.DefaultChunkingConfig(), &fakeEmbedder{dim: 8}, logger)
		text := "# Chapter 1\nContent here. Alpha beta.\n## Section 1.1\nMore content. Gamma delta."

		chunks := engine.ChunkDocument(context.Background(), text, testMetadata())

		require.NotEmpty(t, chunks)
		assert.True(t, chunks[0].IsParent)
		assertReferentialClosure(t, chunks)
		for _, chunk := range chunks {
			assert.Equal(t, "books/optics.pdf", chunk.SourceFile)
			assert.Equal(t, "Chapter 1", chunk.Chapter)
			assert.Equal(t, "en", chunk.Metadata.String(model.MetadataLanguage))
			assert.True(t, strings.HasPrefix(chunk.ContextPrefix, "From 'Test Book' by Jane Doe in chapter 'Chapter 1'"))
			assert.NotContains(t, chunk.Text, chunk.ContextPrefix)
		}
		assert.Equal(t, "Section 1.1", chunks[len(chunks)-1].Section)
	})

	t.Run("Page number is copied to every chunk", func(t *testing.T) {
		engine := NewChunkingEngine(model.DefaultChunkingConfig(), nil, logger)
		metadata := testMetadata()
		metadata[model.MetadataPageNum] = 12

		chunks := engine.ChunkDocument(context.Background(), "One sentence on a page.", metadata)

		require.Len(t, chunks, 2)
		for _, chunk := range chunks {
			require.NotNil(t, chunk.PageNum)
			assert.Equal(t, 12, *chunk.PageNum)
			assert.Contains(t, chunk.ContextPrefix, "(page 12)")
		}
		assert.NotSame(t, chunks[0].PageNum, chunks[1].PageNum)
	})

	t.Run("Long text without embedder falls back to word windows", func(t *testing.T) {
		config := model.DefaultChunkingConfig()
		engine := NewChunkingEngine(config, nil, logger)
		text := numberedWords(500) + ". " + numberedWords(500) + "."

		chunks := engine.ChunkDocument(context.Background(), text, testMetadata())

		assertReferentialClosure(t, chunks)
		children := 0
		for _, chunk := range chunks {
			if !chunk.IsParent {
				children++
				assert.LessOrEqual(t, len(strings.Fields(chunk.Text)), config.ChildSize)
			}
		}
		assert.Equal(t, 4, children)
	})

	t.Run("Embedding failures degrade to word windows", func(t *testing.T) {
		embedder := &fakeEmbedder{dim: 8, err: fmt.Errorf("model unavailable")}
		engine := NewChunkingEngine(model.DefaultChunkingConfig(), embedder, logger)

		chunks := engine.ChunkDocument(context.Background(), "First sentence. Second sentence.", testMetadata())

		require.Len(t, chunks, 2)
		assert.Equal(t, 1, embedder.calls)
		assert.Equal(t, "First sentence. Second sentence.", chunks[1].Text)
	})

	t.Run("Chunking is idempotent with a deterministic embedder", func(t *testing.T) {
		engine := NewChunkingEngine(model.DefaultChunkingConfig(), &fakeEmbedder{dim: 16}, logger)
		text := "# Waves\nLight bends. Light reflects. Sound travels. Sound echoes.\n## Interference\nPhases add. Phases cancel."

		first := engine.ChunkDocument(context.Background(), text, testMetadata())
		second := engine.ChunkDocument(context.Background(), text, testMetadata())

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].Text, second[i].Text)
			assert.Equal(t, first[i].IsParent, second[i].IsParent)
			assert.NotEqual(t, first[i].ChunkID, second[i].ChunkID)
		}
	})

	t.Run("Nil logger uses the default logger", func(t *testing.T) {
		engine := NewChunkingEngine(model.DefaultChunkingConfig(), nil, nil)
		assert.NotNil(t, engine.log)
		assert.Equal(t, 300, engine.Config().ChildSize)
	})
}
