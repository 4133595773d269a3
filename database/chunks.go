package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	loadSql "github.com/kukmin84ai/bibliotheca/sql"
	"github.com/pgvector/pgvector-go"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	InsertChunks(ctx context.Context, chunks []*model.Chunk) error
	DeleteBySource(ctx context.Context, sourceFile string) error
	GetByID(ctx context.Context, id string) (*model.Record, error)
	Search(ctx context.Context, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error)
	HybridSearch(ctx context.Context, query string, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error)
	SelectChunksByBook(ctx context.Context, bookTitle string) ([]*model.Record, error)
	CountChunks(ctx context.Context) (int, error)
}

// ChunksDBHandler handles chunk-related database operations.
// It is the Postgres vector store: pgvector cosine search plus tsvector keyword ranking.
type ChunksDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	chunksDbHandler := &ChunksDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler", "embedding_dim", embeddingDim)

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates the vector, keyword and lookup indexes.
func (h *ChunksDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, h.embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// InsertChunk inserts or replaces a chunk by its id.
func (h *ChunksDBHandler) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	return h.insertChunk(ctx, h.db.Instance, chunk)
}

// InsertChunks inserts all chunks in one transaction.
func (h *ChunksDBHandler) InsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, chunk := range chunks {
		if err := h.insertChunk(ctx, tx, chunk); err != nil {
			return helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit", err)
	}

	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (h *ChunksDBHandler) insertChunk(ctx context.Context, q queryRower, chunk *model.Chunk) error {
	if chunk.ChunkID == "" {
		chunk.ChunkID = model.NewChunkID()
	}

	var embedding interface{}
	if len(chunk.Embedding) > 0 {
		if len(chunk.Embedding) != h.embeddingDim {
			return helper.NewError("embedding validation", fmt.Errorf("expected %d dimensions, got %d", h.embeddingDim, len(chunk.Embedding)))
		}
		embedding = pgvector.NewVector(chunk.Embedding)
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		chunk.ChunkID,
		chunk.Text,
		chunk.ParentID,
		chunk.IsParent,
		chunk.SourceFile,
		chunk.PageNum,
		chunk.Chapter,
		chunk.Section,
		chunk.Metadata.String(model.MetadataBookTitle),
		chunk.Metadata.String(model.MetadataAuthor),
		chunk.Metadata.String(model.MetadataLanguage),
		chunk.Metadata.Float(model.MetadataOCRConfidence),
		chunk.ContextPrefix,
		chunk.Metadata,
		embedding,
	)

	err := row.Scan(
		&chunk.ChunkID,
		&chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteBySource removes every chunk of a source file.
func (h *ChunksDBHandler) DeleteBySource(ctx context.Context, sourceFile string) error {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_chunks_by_source($1)`,
		sourceFile,
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("delete chunks by source", err)
	}

	h.db.Logger.Debug("Deleted chunks", "source_file", sourceFile, "count", deleted)
	return nil
}

// GetByID returns the record with the given id or nil when it does not
// exist. Ids that are not UUIDs cannot exist.
func (h *ChunksDBHandler) GetByID(ctx context.Context, id string) (*model.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	records, err := h.queryRecords(ctx, `SELECT * FROM select_chunk($1)`, id)
	if err != nil {
		return nil, helper.NewError("select chunk", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Search performs a dense cosine search.
func (h *ChunksDBHandler) Search(ctx context.Context, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error) {
	records, err := h.queryRecords(
		ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3)`,
		pgvector.NewVector(embedding),
		topK,
		filterParam(filters),
	)
	if err != nil {
		return nil, helper.NewError("select chunks by similarity", err)
	}
	return records, nil
}

// HybridSearch fuses cosine similarity with the keyword rank of query.
// The returned distance is the cosine distance.
func (h *ChunksDBHandler) HybridSearch(ctx context.Context, query string, embedding []float32, topK int, filters model.Metadata) ([]*model.Record, error) {
	records, err := h.queryRecords(
		ctx,
		`SELECT * FROM select_chunks_by_hybrid($1, $2, $3, $4, $5, $6)`,
		query,
		pgvector.NewVector(embedding),
		topK,
		filterParam(filters),
		model.HybridDenseWeight,
		model.HybridKeywordWeight,
	)
	if err != nil {
		return nil, helper.NewError("select chunks by hybrid", err)
	}
	return records, nil
}

// SelectChunksByBook returns every chunk whose book title or source file
// equals bookTitle, ordered by page.
func (h *ChunksDBHandler) SelectChunksByBook(ctx context.Context, bookTitle string) ([]*model.Record, error) {
	records, err := h.queryRecords(ctx, `SELECT * FROM select_chunks_by_book($1)`, bookTitle)
	if err != nil {
		return nil, helper.NewError("select chunks by book", err)
	}
	return records, nil
}

// CountChunks returns the number of stored chunks.
func (h *ChunksDBHandler) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_chunks()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count chunks", err)
	}
	return count, nil
}

func (h *ChunksDBHandler) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*model.Record, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		record := &model.Record{}
		var parentID sql.NullString
		var pageNum sql.NullInt64

		err := rows.Scan(
			&record.ID,
			&record.Text,
			&parentID,
			&record.IsParent,
			&record.SourceFile,
			&pageNum,
			&record.Chapter,
			&record.Section,
			&record.BookTitle,
			&record.Author,
			&record.Language,
			&record.OCRConfidence,
			&record.ContextPrefix,
			&record.Distance,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		record.ParentID = parentID.String
		record.PageNum = int(pageNum.Int64)
		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return records, nil
}

// filterParam returns nil for empty filters so the SQL side skips filtering.
func filterParam(filters model.Metadata) interface{} {
	if len(filters) == 0 {
		return nil
	}
	return filters
}
