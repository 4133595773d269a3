package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/kukmin84ai/bibliotheca/core/graph"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	"google.golang.org/api/option"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiTripletExtractor asks a Gemini model for knowledge graph triplets.
type GeminiTripletExtractor struct {
	client      *genai.Client
	generator   contentGenerator
	maxTriplets int
}

// NewGeminiTripletExtractor creates an extractor for the given model name.
func NewGeminiTripletExtractor(ctx context.Context, apiKey string, modelName string, maxTriplets int) (*GeminiTripletExtractor, error) {
	if apiKey == "" {
		return nil, helper.NewError("create triplet extractor", fmt.Errorf("gemini api key is empty"))
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, helper.NewError("create gemini client", err)
	}

	generativeModel := client.GenerativeModel(modelName)
	generativeModel.SetTemperature(0)

	extractor := newGeminiTripletExtractor(generativeModel, maxTriplets)
	extractor.client = client
	return extractor, nil
}

func newGeminiTripletExtractor(generator contentGenerator, maxTriplets int) *GeminiTripletExtractor {
	if maxTriplets <= 0 {
		maxTriplets = 12
	}
	return &GeminiTripletExtractor{
		generator:   generator,
		maxTriplets: maxTriplets,
	}
}

// ExtractTriplets returns the triplets found in text. A response without a
// parsable JSON array yields no triplets.
func (e *GeminiTripletExtractor) ExtractTriplets(ctx context.Context, text string, sourceFile string, chunkID string) ([]*model.Triplet, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt := graph.TripletPrompt(text, e.maxTriplets)
	resp, err := e.generator.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, helper.NewError("generate triplets", err)
	}

	return graph.ParseTriplets(responseText(resp), sourceFile, chunkID), nil
}

// Close closes the underlying client.
func (e *GeminiTripletExtractor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
