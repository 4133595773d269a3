// Package ingest moves book files through extraction, chunking, embedding
// and storage while keeping the manifest up to date.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/kukmin84ai/bibliotheca/core/extract"
	"github.com/kukmin84ai/bibliotheca/core/pipeline"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize = 32
	// graphChunks leading child chunks per file are sent to triplet extraction.
	graphChunks = 5
)

// ChunkStore persists chunks.
type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []*model.Chunk) error
	DeleteBySource(ctx context.Context, sourceFile string) error
}

// Manifest is the registry of ingested files.
type Manifest interface {
	UpsertBook(ctx context.Context, book *model.Book) error
	SelectBookByPath(ctx context.Context, filePath string) (*model.Book, error)
	UpdateBookStatus(ctx context.Context, filePath string, status model.BookStatus, chunkCount int, errMsg string) error
	DeleteBook(ctx context.Context, filePath string) error
}

// GraphSink receives extracted triplets.
type GraphSink interface {
	AddTriplets(ctx context.Context, triplets []*model.Triplet) error
}

// Report summarises an ingestion run.
type Report struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Chunks    int `json:"chunks"`
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithWorkers limits parallel extraction. Zero or less uses the CPU count.
func WithWorkers(n int) Option {
	return func(i *Ingester) { i.workers = n }
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithSubject tags registered books with a subject.
func WithSubject(subject string) Option {
	return func(i *Ingester) { i.subject = subject }
}

// WithGraph enables triplet extraction into graph.
func WithGraph(graph GraphSink, extractor pipeline.TripletExtractor) Option {
	return func(i *Ingester) {
		i.graph = graph
		i.triplets = extractor
	}
}

// Ingester runs the ingestion pipeline. Extraction runs in parallel,
// chunking, embedding and storage run serially.
type Ingester struct {
	registry  *extract.Registry
	chunker   *pipeline.ChunkingEngine
	embedder  pipeline.Embedder
	chunks    ChunkStore
	manifest  Manifest
	graph     GraphSink
	triplets  pipeline.TripletExtractor
	workers   int
	batchSize int
	subject   string
	log       *slog.Logger
}

// NewIngester creates an ingester. A nil registry uses the default
// extractors, a nil logger the default logger.
func NewIngester(registry *extract.Registry, chunker *pipeline.ChunkingEngine, embedder pipeline.Embedder, chunks ChunkStore, manifest Manifest, logger *slog.Logger, opts ...Option) (*Ingester, error) {
	if chunker == nil || embedder == nil || chunks == nil || manifest == nil {
		return nil, helper.NewError("create ingester", fmt.Errorf("chunker, embedder, chunk store and manifest are required"))
	}
	if registry == nil {
		registry = extract.NewRegistry()
	}
	if logger == nil {
		logger = helper.NewLogger("info")
	}

	i := &Ingester{
		registry:  registry,
		chunker:   chunker,
		embedder:  embedder,
		chunks:    chunks,
		manifest:  manifest,
		batchSize: defaultBatchSize,
		log:       logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.workers <= 0 {
		i.workers = runtime.NumCPU()
	}
	return i, nil
}

// Registry returns the extractor registry.
func (i *Ingester) Registry() *extract.Registry {
	return i.registry
}

type pendingFile struct {
	path     string
	hash     string
	document *extract.Document
	err      error
	empty    bool
}

// Ingest processes every supported file below dir. Files marked done
// with an unchanged hash are skipped unless force is set. Files without
// text are marked empty and not counted as processed. Failures of single
// files are recorded in the manifest and counted, they do not abort the
// run.
func (i *Ingester) Ingest(ctx context.Context, dir string, force bool) (*Report, error) {
	files, err := Discover(dir, i.registry.Supports)
	if err != nil {
		return nil, err
	}
	i.log.Info("Discovered files", slog.String("dir", dir), slog.Int("files", len(files)))

	report := &Report{}
	var pending []*pendingFile
	for _, path := range files {
		hash, err := FileHash(path)
		if err != nil {
			return nil, err
		}
		if !force {
			book, err := i.manifest.SelectBookByPath(ctx, path)
			if err != nil {
				return nil, helper.NewError("select book", err)
			}
			if book != nil && book.Status == model.BookStatusDone && book.FileHash == hash {
				report.Skipped++
				continue
			}
		}
		pending = append(pending, &pendingFile{path: path, hash: hash})
	}

	if err := i.extractAll(ctx, pending); err != nil {
		return nil, err
	}

	for _, file := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		count, err := i.store(ctx, file)
		if err != nil {
			report.Failed++
			i.log.Error("Failed to ingest file", slog.String("file", file.path), slog.String("error", err.Error()))
			if statusErr := i.markFailed(ctx, file, err); statusErr != nil {
				return report, statusErr
			}
			continue
		}
		if file.empty {
			continue
		}
		report.Processed++
		report.Chunks += count
	}

	i.log.Info(
		"Ingestion complete",
		slog.Int("processed", report.Processed),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		slog.Int("chunks", report.Chunks),
	)
	return report, nil
}

// IngestFile processes a single file regardless of its manifest state and
// returns the number of stored chunks.
func (i *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	hash, err := FileHash(path)
	if err != nil {
		return 0, err
	}

	file := &pendingFile{path: path, hash: hash}
	file.document, file.err = i.registry.Extract(ctx, path)

	count, err := i.store(ctx, file)
	if err != nil {
		if statusErr := i.markFailed(ctx, file, err); statusErr != nil {
			return 0, statusErr
		}
		return 0, err
	}
	return count, nil
}

// Remove deletes the chunks and the manifest entry of path.
func (i *Ingester) Remove(ctx context.Context, path string) error {
	if err := i.chunks.DeleteBySource(ctx, path); err != nil {
		return helper.NewError("delete chunks", err)
	}
	if err := i.manifest.DeleteBook(ctx, path); err != nil {
		return helper.NewError("delete book", err)
	}
	i.log.Info("Removed file", slog.String("file", path))
	return nil
}

// extractAll extracts the pending files in parallel. Extraction errors are
// kept per file.
func (i *Ingester) extractAll(ctx context.Context, pending []*pendingFile) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)

	for _, file := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file.document, file.err = i.registry.Extract(gctx, file.path)
			if file.err == nil {
				i.log.Debug("Extracted file", slog.String("file", file.path), slog.Int("pages", len(file.document.Pages)))
			}
			return nil
		})
	}

	return g.Wait()
}

// store registers, chunks, embeds and stores one extracted file.
func (i *Ingester) store(ctx context.Context, file *pendingFile) (int, error) {
	if file.err != nil {
		return 0, file.err
	}

	book := model.NewBookFromFile(file.path, file.hash)
	book.PageCount = len(file.document.Pages)
	book.Subject = i.subject
	book.Status = model.BookStatusProcessing
	if err := i.manifest.UpsertBook(ctx, book); err != nil {
		return 0, helper.NewError("register book", err)
	}

	if err := i.chunks.DeleteBySource(ctx, file.path); err != nil {
		return 0, helper.NewError("delete previous chunks", err)
	}

	var chunks []*model.Chunk
	for _, page := range file.document.Pages {
		metadata := book.Metadata()
		metadata[model.MetadataPageNum] = page.Number
		metadata[model.MetadataOCRConfidence] = page.Confidence
		chunks = append(chunks, i.chunker.ChunkDocument(ctx, page.Text, metadata)...)
	}

	if len(chunks) == 0 {
		i.log.Warn("No chunks generated", slog.String("file", file.path))
		if err := i.manifest.UpdateBookStatus(ctx, file.path, model.BookStatusEmpty, 0, ""); err != nil {
			return 0, helper.NewError("update book status", err)
		}
		file.empty = true
		return 0, nil
	}

	stored, err := i.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}
	if dropped := len(chunks) - len(stored); dropped > 0 {
		i.log.Warn("Dropped chunks with invalid vectors", slog.String("file", file.path), slog.Int("dropped", dropped))
	}

	if err := i.chunks.InsertChunks(ctx, stored); err != nil {
		return 0, helper.NewError("insert chunks", err)
	}

	i.extractGraph(ctx, stored, file.path)

	if err := i.manifest.UpdateBookStatus(ctx, file.path, model.BookStatusDone, len(stored), ""); err != nil {
		return 0, helper.NewError("update book status", err)
	}
	i.log.Info("Stored file", slog.String("file", file.path), slog.String("title", book.Title), slog.Int("chunks", len(stored)))

	return len(stored), nil
}

// embed sets the embedding of every chunk in batches and returns the
// chunks whose vectors are finite.
func (i *Ingester) embed(ctx context.Context, chunks []*model.Chunk) ([]*model.Chunk, error) {
	stored := make([]*model.Chunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += i.batchSize {
		end := min(start+i.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.EmbeddingText()
		}

		vectors, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, helper.NewError("embed chunks", err)
		}
		if len(vectors) != len(batch) {
			return nil, helper.NewError("embed chunks", fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(batch)))
		}

		for j, chunk := range batch {
			if !pipeline.ValidVector(vectors[j]) {
				continue
			}
			chunk.Embedding = vectors[j]
			stored = append(stored, chunk)
		}
	}
	return stored, nil
}

// extractGraph adds triplets of the first child chunks to the graph.
// Extraction problems are logged and do not fail the file.
func (i *Ingester) extractGraph(ctx context.Context, chunks []*model.Chunk, path string) {
	if i.graph == nil || i.triplets == nil {
		return
	}

	var triplets []*model.Triplet
	used := 0
	for _, chunk := range chunks {
		if chunk.IsParent {
			continue
		}
		if used == graphChunks {
			break
		}
		used++

		extracted, err := i.triplets.ExtractTriplets(ctx, chunk.Text, path, chunk.ChunkID)
		if err != nil {
			i.log.Warn("Triplet extraction failed", slog.String("chunk_id", chunk.ChunkID), slog.String("error", err.Error()))
			continue
		}
		triplets = append(triplets, extracted...)
	}

	if len(triplets) == 0 {
		return
	}
	if err := i.graph.AddTriplets(ctx, triplets); err != nil {
		i.log.Warn("Adding triplets failed", slog.String("file", path), slog.String("error", err.Error()))
		return
	}
	i.log.Debug("Added triplets", slog.String("file", path), slog.Int("triplets", len(triplets)))
}

// markFailed records an error for file, registering it first when needed.
func (i *Ingester) markFailed(ctx context.Context, file *pendingFile, cause error) error {
	book, err := i.manifest.SelectBookByPath(ctx, file.path)
	if err != nil {
		return helper.NewError("select book", err)
	}
	if book == nil {
		book = model.NewBookFromFile(file.path, file.hash)
		book.Subject = i.subject
		book.Status = model.BookStatusError
		if err := i.manifest.UpsertBook(ctx, book); err != nil {
			return helper.NewError("register book", err)
		}
	}
	if err := i.manifest.UpdateBookStatus(ctx, file.path, model.BookStatusError, 0, cause.Error()); err != nil {
		return helper.NewError("update book status", err)
	}
	return nil
}
