package bibliotheca

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kukmin84ai/bibliotheca/core/backup"
	"github.com/kukmin84ai/bibliotheca/core/graph"
	"github.com/kukmin84ai/bibliotheca/core/ingest"
	"github.com/kukmin84ai/bibliotheca/core/pipeline"
	"github.com/kukmin84ai/bibliotheca/core/retrieval"
	"github.com/kukmin84ai/bibliotheca/database"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/mcpserver"
	"github.com/kukmin84ai/bibliotheca/model"
	loadSql "github.com/kukmin84ai/bibliotheca/sql"
)

// Library wires the database handlers, the chunking and embedding
// pipeline, the knowledge graph, the query engine and the ingester.
type Library struct {
	DB            *helper.Database
	Settings      *helper.Settings
	Chunks        *database.ChunksDBHandler
	Books         *database.BooksDBHandler
	Entities      *database.EntitiesDBHandler
	Relationships *database.RelationshipsDBHandler
	Graph         graph.Store
	Embedder      pipeline.Embedder
	Chunker       *pipeline.ChunkingEngine
	Engine        *retrieval.QueryEngine
	Tools         *retrieval.Tools
	Ingester      *ingest.Ingester
	// Logging
	log *slog.Logger
	// closers are released by Close in reverse order
	closers []io.Closer
}

// NewLibrary creates a library. A nil settings uses the defaults. A nil
// embedder loads the configured hugot model, which is downloaded on first
// use. Triplet extraction is enabled when a Gemini API key is configured.
func NewLibrary(config *helper.DatabaseConfiguration, settings *helper.Settings, embedder pipeline.Embedder) (*Library, error) {
	if settings == nil {
		settings = helper.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	logger := settings.Logger()

	l := &Library{Settings: settings, log: logger}
	if err := l.init(config, embedder); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

func (l *Library) init(config *helper.DatabaseConfiguration, embedder pipeline.Embedder) error {
	settings := l.Settings
	ctx := context.Background()

	if embedder == nil {
		hugotEmbedder, err := pipeline.NewHugotEmbedder(settings.ModelDir, settings.EmbeddingModel, settings.EmbeddingDimension, settings.EmbeddingBatchSize)
		if err != nil {
			return helper.NewError("create embedder", err)
		}
		l.closers = append(l.closers, hugotEmbedder)
		embedder = hugotEmbedder
	}
	if embedder.Dimension() != settings.EmbeddingDimension {
		return helper.NewError("create embedder", fmt.Errorf("embedder has %d dimensions, settings expect %d", embedder.Dimension(), settings.EmbeddingDimension))
	}
	l.Embedder = embedder

	l.DB = helper.NewDatabase("bibliotheca", config, l.log)
	if err := loadSql.Init(l.DB.Instance); err != nil {
		return helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	var err error
	l.Chunks, err = database.NewChunksDBHandler(l.DB, settings.EmbeddingDimension, false)
	if err != nil {
		return helper.NewError("create chunks handler", err)
	}
	l.Books, err = database.NewBooksDBHandler(l.DB, false)
	if err != nil {
		return helper.NewError("create books handler", err)
	}
	l.Entities, err = database.NewEntitiesDBHandler(l.DB, false)
	if err != nil {
		return helper.NewError("create entities handler", err)
	}
	l.Relationships, err = database.NewRelationshipsDBHandler(l.DB, false)
	if err != nil {
		return helper.NewError("create relationships handler", err)
	}

	l.Graph, err = l.openGraph()
	if err != nil {
		return err
	}

	classifier, err := retrieval.NewClassifier(settings.ClassifierKeywordsFile)
	if err != nil {
		return helper.NewError("create classifier", err)
	}
	l.Engine, err = retrieval.NewQueryEngine(embedder, l.Chunks, l.Graph, classifier, l.log)
	if err != nil {
		return err
	}
	l.Tools = retrieval.NewTools(embedder, l.Chunks, l.Chunks)

	l.Chunker = pipeline.NewChunkingEngine(model.ChunkingConfig{
		ChildSize:         settings.ChunkSizeSearch,
		ParentSize:        settings.ChunkSizeParent,
		Overlap:           settings.ChunkOverlap,
		SemanticThreshold: settings.SemanticThreshold,
	}, embedder, l.log)

	opts := []ingest.Option{
		ingest.WithWorkers(settings.IngestWorkers),
		ingest.WithBatchSize(settings.EmbeddingBatchSize),
		ingest.WithSubject(settings.GraphSubject),
	}
	if settings.GeminiAPIKey != "" {
		extractor, err := pipeline.NewGeminiTripletExtractor(ctx, settings.GeminiAPIKey, settings.GeminiModel, settings.MaxTriplets)
		if err != nil {
			return helper.NewError("create triplet extractor", err)
		}
		l.closers = append(l.closers, extractor)
		opts = append(opts, ingest.WithGraph(l.Graph, extractor))
	}
	l.Ingester, err = ingest.NewIngester(nil, l.Chunker, embedder, l.Chunks, l.Books, l.log, opts...)
	if err != nil {
		return err
	}

	return nil
}

// openGraph opens the configured graph backend. Legacy graph files are
// moved into the default subject before the file store is opened.
func (l *Library) openGraph() (graph.Store, error) {
	if l.Settings.GraphBackend == helper.GraphBackendDatabase {
		store, err := graph.NewDBStore(l.Entities, l.Relationships, l.log)
		if err != nil {
			return nil, helper.NewError("open graph store", err)
		}
		return store, nil
	}

	if _, err := graph.MigrateLegacy(l.Settings.GraphStoreDir, l.log); err != nil {
		return nil, helper.NewError("migrate graph store", err)
	}
	store, err := graph.NewFileStore(l.Settings.GraphStoreDir, l.Settings.GraphSubject, l.log)
	if err != nil {
		return nil, helper.NewError("open graph store", err)
	}
	return store, nil
}

// Close releases the embedder, the triplet extractor and the database connection
func (l *Library) Close() error {
	var errs []error
	for i := len(l.closers) - 1; i >= 0; i-- {
		errs = append(errs, l.closers[i].Close())
	}
	l.closers = nil
	if l.DB != nil {
		errs = append(errs, l.DB.Close())
	}
	return errors.Join(errs...)
}

// Query answers a query. A zero TopK uses the configured default.
func (l *Library) Query(ctx context.Context, text string, config model.QueryConfig) (*model.QueryResponse, error) {
	if config.TopK <= 0 {
		config.TopK = l.Settings.DefaultTopK
	}
	return l.Engine.QueryWithConfig(ctx, text, config)
}

// Ingest ingests the supported files below dir.
func (l *Library) Ingest(ctx context.Context, dir string, force bool) (*ingest.Report, error) {
	return l.Ingester.Ingest(ctx, dir, force)
}

// Watch keeps dir in sync with the library until ctx is done.
func (l *Library) Watch(ctx context.Context, dir string) error {
	return ingest.WatchIngester(dir, l.Ingester, l.log).Watch(ctx)
}

// Backup returns a backup manager for the configured storage.
func (l *Library) Backup(ctx context.Context) (*backup.Manager, error) {
	storage, err := backup.NewStorage(ctx, backup.ConfigFromSettings(l.Settings))
	if err != nil {
		return nil, helper.NewError("create backup storage", err)
	}
	return backup.NewManager(storage, l.Settings.GraphStoreDir, l.Books, l.log)
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (l *Library) ChangeIndexType(ctx context.Context, indexType string, params map[string]int) error {
	return l.Chunks.ChangeIndexType(ctx, indexType, params)
}

// MCPServer returns an MCP server exposing the library tools.
func (l *Library) MCPServer() (*mcpserver.Server, error) {
	return mcpserver.NewServer(l.Tools, l.Graph, l.Books, l.log)
}
