package bibliotheca

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kukmin84ai/bibliotheca/core/index"
	"github.com/kukmin84ai/bibliotheca/core/ingest"
	"github.com/kukmin84ai/bibliotheca/core/pipeline"
	"github.com/kukmin84ai/bibliotheca/core/retrieval"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

// Scratch is a library kept entirely in memory. It needs no database and
// forgets everything on Close, which makes it suited to trying a directory
// before ingesting it for good. It has no knowledge graph.
type Scratch struct {
	Settings *helper.Settings
	Chunks   *index.MemoryStore
	Books    *index.MemoryManifest
	Engine   *retrieval.QueryEngine
	Tools    *retrieval.Tools
	Ingester *ingest.Ingester
	log      *slog.Logger
	closers  []io.Closer
}

// NewScratch creates an in-memory library. A nil settings uses the
// defaults, a nil embedder loads the configured hugot model.
func NewScratch(settings *helper.Settings, embedder pipeline.Embedder) (*Scratch, error) {
	if settings == nil {
		settings = helper.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s := &Scratch{Settings: settings, log: settings.Logger()}
	if err := s.init(embedder); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Scratch) init(embedder pipeline.Embedder) error {
	settings := s.Settings

	if embedder == nil {
		hugotEmbedder, err := pipeline.NewHugotEmbedder(settings.ModelDir, settings.EmbeddingModel, settings.EmbeddingDimension, settings.EmbeddingBatchSize)
		if err != nil {
			return helper.NewError("create embedder", err)
		}
		s.closers = append(s.closers, hugotEmbedder)
		embedder = hugotEmbedder
	}
	if embedder.Dimension() != settings.EmbeddingDimension {
		return helper.NewError("create embedder", fmt.Errorf("embedder has %d dimensions, settings expect %d", embedder.Dimension(), settings.EmbeddingDimension))
	}

	var err error
	s.Chunks, err = index.NewMemoryStore(settings.EmbeddingDimension)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, s.Chunks)
	s.Books = index.NewMemoryManifest()

	classifier, err := retrieval.NewClassifier(settings.ClassifierKeywordsFile)
	if err != nil {
		return helper.NewError("create classifier", err)
	}
	s.Engine, err = retrieval.NewQueryEngine(embedder, s.Chunks, nil, classifier, s.log)
	if err != nil {
		return err
	}
	s.Tools = retrieval.NewTools(embedder, s.Chunks, s.Chunks)

	chunker := pipeline.NewChunkingEngine(model.ChunkingConfig{
		ChildSize:         settings.ChunkSizeSearch,
		ParentSize:        settings.ChunkSizeParent,
		Overlap:           settings.ChunkOverlap,
		SemanticThreshold: settings.SemanticThreshold,
	}, embedder, s.log)

	s.Ingester, err = ingest.NewIngester(nil, chunker, embedder, s.Chunks, s.Books, s.log,
		ingest.WithWorkers(settings.IngestWorkers),
		ingest.WithBatchSize(settings.EmbeddingBatchSize),
		ingest.WithSubject(settings.GraphSubject),
	)
	return err
}

// Ingest ingests the supported files below dir.
func (s *Scratch) Ingest(ctx context.Context, dir string) (*ingest.Report, error) {
	return s.Ingester.Ingest(ctx, dir, false)
}

// Query answers a query. A zero TopK uses the configured default.
func (s *Scratch) Query(ctx context.Context, text string, config model.QueryConfig) (*model.QueryResponse, error) {
	if config.TopK <= 0 {
		config.TopK = s.Settings.DefaultTopK
	}
	return s.Engine.QueryWithConfig(ctx, text, config)
}

// Close releases the keyword index and the embedder.
func (s *Scratch) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}
