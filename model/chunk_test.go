package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	parentID := "parent-1"
	page := 12
	chunk := &Chunk{
		ChunkID:       "child-1",
		Text:          "Maxwell unified electricity and magnetism.",
		ParentID:      &parentID,
		SourceFile:    "books/maxwell.pdf",
		PageNum:       &page,
		Chapter:       "Fields",
		Section:       "Equations",
		ContextPrefix: "From 'Treatise' by Maxwell. ",
		Metadata: Metadata{
			MetadataBookTitle:     "Treatise",
			MetadataAuthor:        "Maxwell",
			MetadataLanguage:      "en",
			MetadataOCRConfidence: 0.9,
		},
	}

	t.Run("Embedding text starts with the context prefix", func(t *testing.T) {
		assert.Equal(t, "From 'Treatise' by Maxwell. Maxwell unified electricity and magnetism.", chunk.EmbeddingText())
		assert.Equal(t, "Maxwell unified electricity and magnetism.", chunk.Text, "Expected text to stay without prefix")
	})

	t.Run("ToRecord flattens optional fields", func(t *testing.T) {
		record := chunk.ToRecord()

		require.NotNil(t, record)
		assert.Equal(t, "child-1", record.ID)
		assert.Equal(t, "parent-1", record.ParentID)
		assert.Equal(t, 12, record.PageNum)
		assert.Equal(t, "Treatise", record.BookTitle)
		assert.Equal(t, "Maxwell", record.Author)
		assert.Equal(t, "en", record.Language)
		assert.InDelta(t, 0.9, record.OCRConfidence, 1e-9)
	})

	t.Run("Parent chunk record has no parent id and no page", func(t *testing.T) {
		parent := &Chunk{ChunkID: "p", Text: "parent", IsParent: true}

		record := parent.ToRecord()

		assert.Equal(t, "", record.ParentID)
		assert.Equal(t, 0, record.PageNum)
		assert.True(t, record.IsParent)
	})

	t.Run("Chunk ids are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := NewChunkID()
			assert.False(t, seen[id], "Expected chunk id %s to be unique", id)
			seen[id] = true
		}
	})
}

func TestRecordMatches(t *testing.T) {
	record := &Record{
		SourceFile: "a.pdf",
		BookTitle:  "Optics",
		Language:   "en",
		Chapter:    "Light",
		PageNum:    3,
	}

	t.Run("Empty filters match everything", func(t *testing.T) {
		assert.True(t, record.Matches(nil))
		assert.True(t, record.Matches(Metadata{}))
	})

	t.Run("Matching filters", func(t *testing.T) {
		assert.True(t, record.Matches(Metadata{"book_title": "Optics", "language": "en"}))
		assert.True(t, record.Matches(Metadata{"page_num": float64(3)}))
	})

	t.Run("Mismatching filter", func(t *testing.T) {
		assert.False(t, record.Matches(Metadata{"book_title": "Mechanics"}))
		assert.False(t, record.Matches(Metadata{"page_num": 4}))
	})

	t.Run("Unknown keys are ignored", func(t *testing.T) {
		assert.True(t, record.Matches(Metadata{"shelf": "B"}))
	})
}
