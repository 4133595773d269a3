package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

// ChunkingEngine turns document text into parent and child chunks:
// structure split, semantic merge per section, parent/child hierarchy and
// context prefixes.
type ChunkingEngine struct {
	config    model.ChunkingConfig
	merger    *SemanticMerger
	hierarchy *HierarchyBuilder
	log       *slog.Logger
}

// NewChunkingEngine creates an engine. embedder may be nil, sections are
// then split into word windows only.
func NewChunkingEngine(config model.ChunkingConfig, embedder Embedder, logger *slog.Logger) *ChunkingEngine {
	if logger == nil {
		logger = helper.NewLogger("info")
	}

	return &ChunkingEngine{
		config:    config,
		merger:    NewSemanticMerger(embedder, config.SemanticThreshold, config.ChildSize, config.Overlap, logger),
		hierarchy: NewHierarchyBuilder(config.ChildSize, config.ParentSize, config.Overlap),
		log:       logger,
	}
}

// Config returns the engine configuration.
func (e *ChunkingEngine) Config() model.ChunkingConfig {
	return e.config
}

// ChunkDocument chunks text. metadata supplies source_file, page_num,
// book_title, author, language and ocr_confidence; it is copied onto every
// chunk. Blank text yields no chunks.
func (e *ChunkingEngine) ChunkDocument(ctx context.Context, text string, metadata model.Metadata) []*model.Chunk {
	if strings.TrimSpace(text) == "" {
		return []*model.Chunk{}
	}

	sourceFile := metadata.String(model.MetadataSourceFile)
	var pageNum *int
	if page, ok := metadata.Int(model.MetadataPageNum); ok {
		pageNum = &page
	}

	var chunks []*model.Chunk
	for _, section := range SplitByStructure(text) {
		if strings.TrimSpace(section.Text) == "" {
			continue
		}

		segments := e.merger.Merge(ctx, section.Text)
		for _, chunk := range e.hierarchy.Build(segments, sourceFile, pageNum, section) {
			chunk.ContextPrefix = ContextPrefix(chunk, metadata)
			chunk.Metadata = metadata.Clone()
			chunks = append(chunks, chunk)
		}
	}

	parents := 0
	for _, chunk := range chunks {
		if chunk.IsParent {
			parents++
		}
	}
	e.log.Info(
		"Chunked document",
		slog.String("source_file", sourceFile),
		slog.Int("chunks", len(chunks)),
		slog.Int("parents", parents),
		slog.Int("children", len(chunks)-parents),
	)

	return chunks
}
