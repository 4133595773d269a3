package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, part := range parts {
		if text, ok := part.(genai.Text); ok {
			g.prompts = append(g.prompts, string(text))
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(g.response)}},
		}},
	}, nil
}

func TestGeminiTripletExtractor(t *testing.T) {
	t.Run("Triplets are parsed from the model response", func(t *testing.T) {
		generator := &fakeGenerator{response: "```json\n[{\"subject\": \"Newton\", \"predicate\": \"proposes\", \"object\": \"Gravity\"}]\n```"}
		extractor := newGeminiTripletExtractor(generator, 5)

		triplets, err := extractor.ExtractTriplets(context.Background(), "Newton proposed gravity.", "physics.pdf", "chunk-1")

		require.NoError(t, err)
		require.Len(t, triplets, 1)
		assert.Equal(t, "Newton", triplets[0].Subject)
		assert.Equal(t, "PROPOSES", triplets[0].Predicate)
		assert.Equal(t, "physics.pdf", triplets[0].SourceFile)
		assert.Equal(t, "chunk-1", triplets[0].SourceChunkID)
		require.Len(t, generator.prompts, 1)
		assert.Contains(t, generator.prompts[0], "Extract up to 5 triplets")
		assert.Contains(t, generator.prompts[0], "Newton proposed gravity.")
	})

	t.Run("Blank text is not sent", func(t *testing.T) {
		generator := &fakeGenerator{}
		extractor := newGeminiTripletExtractor(generator, 0)

		triplets, err := extractor.ExtractTriplets(context.Background(), "  ", "a.pdf", "c")

		require.NoError(t, err)
		assert.Empty(t, triplets)
		assert.Empty(t, generator.prompts)
		assert.Equal(t, 12, extractor.maxTriplets)
	})

	t.Run("Generation errors are returned", func(t *testing.T) {
		extractor := newGeminiTripletExtractor(&fakeGenerator{err: fmt.Errorf("quota exceeded")}, 5)

		_, err := extractor.ExtractTriplets(context.Background(), "Some text.", "a.pdf", "c")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("Unparsable responses give no triplets", func(t *testing.T) {
		extractor := newGeminiTripletExtractor(&fakeGenerator{response: "I cannot help with that."}, 5)

		triplets, err := extractor.ExtractTriplets(context.Background(), "Some text.", "a.pdf", "c")

		require.NoError(t, err)
		assert.Empty(t, triplets)
	})

	t.Run("Missing api key is an error", func(t *testing.T) {
		_, err := NewGeminiTripletExtractor(context.Background(), "", "gemini-1.5-flash", 5)
		assert.Error(t, err)
	})

	t.Run("Empty responses give no text", func(t *testing.T) {
		assert.Empty(t, responseText(nil))
		assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
	})
}
