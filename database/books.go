package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	loadSql "github.com/kukmin84ai/bibliotheca/sql"
	"github.com/lib/pq"
)

// BooksDBHandlerFunctions defines the interface for the book manifest.
type BooksDBHandlerFunctions interface {
	UpsertBook(ctx context.Context, book *model.Book) error
	SelectBookByHash(ctx context.Context, fileHash string) (*model.Book, error)
	SelectBookByPath(ctx context.Context, filePath string) (*model.Book, error)
	SelectAllBooks(ctx context.Context) ([]*model.Book, error)
	SelectBooksByStatus(ctx context.Context, status model.BookStatus) ([]*model.Book, error)
	SearchBooks(ctx context.Context, author string, year *int, topic string) ([]*model.Book, error)
	UpdateBookStatus(ctx context.Context, filePath string, status model.BookStatus, chunkCount int, errMsg string) error
	DeleteBook(ctx context.Context, filePath string) error
	SelectProcessingStats(ctx context.Context) (model.ProcessingStats, error)
}

// BooksDBHandler handles the manifest of ingested files.
type BooksDBHandler struct {
	db *helper.Database
}

// NewBooksDBHandler creates a new books database handler.
// It initializes the database connection and loads book-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewBooksDBHandler(db *helper.Database, force bool) (*BooksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	booksDbHandler := &BooksDBHandler{
		db: db,
	}

	err := loadSql.LoadBooksSql(booksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load books sql", err)
	}

	err = booksDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized BooksDBHandler")

	return booksDbHandler, nil
}

// CreateTable creates the 'books' table in the database.
// If the table already exists, it does not create it again.
func (h *BooksDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_books();`)
	if err != nil {
		log.Panicf("error initializing books table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table books")

	return nil
}

// UpsertBook inserts the book or updates the entry with the same file path.
// Empty metadata fields keep the stored values. The book is refreshed
// with the stored row.
func (h *BooksDBHandler) UpsertBook(ctx context.Context, book *model.Book) error {
	var year interface{}
	if book.Year != nil {
		year = *book.Year
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM upsert_book($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		book.FilePath,
		book.FileHash,
		book.Title,
		book.Author,
		book.ISBN,
		book.DOI,
		book.Publisher,
		year,
		book.PageCount,
		book.Language,
		book.Subject,
		pq.Array(book.Tags),
		string(book.Status),
	)
	if err != nil {
		return helper.NewError("upsert book", err)
	}

	books, err := scanBooks(rows)
	if err != nil {
		return err
	}
	if len(books) != 1 {
		return helper.NewError("upsert book", fmt.Errorf("expected 1 row, got %d", len(books)))
	}

	*book = *books[0]
	return nil
}

// SelectBookByHash returns the most recently updated book with the given hash,
// nil when none exists.
func (h *BooksDBHandler) SelectBookByHash(ctx context.Context, fileHash string) (*model.Book, error) {
	return h.selectOne(ctx, "select book by hash", `SELECT * FROM select_book_by_hash($1)`, fileHash)
}

// SelectBookByPath returns the book registered for filePath, nil when none exists.
func (h *BooksDBHandler) SelectBookByPath(ctx context.Context, filePath string) (*model.Book, error) {
	return h.selectOne(ctx, "select book by path", `SELECT * FROM select_book_by_path($1)`, filePath)
}

// SelectAllBooks returns all books ordered by title.
func (h *BooksDBHandler) SelectAllBooks(ctx context.Context) ([]*model.Book, error) {
	return h.selectMany(ctx, "select all books", `SELECT * FROM select_all_books()`)
}

// SelectBooksByStatus returns all books in the given processing state.
func (h *BooksDBHandler) SelectBooksByStatus(ctx context.Context, status model.BookStatus) ([]*model.Book, error) {
	return h.selectMany(ctx, "select books by status", `SELECT * FROM select_books_by_status($1)`, string(status))
}

// SearchBooks filters by author substring, exact year and a topic matched
// against title, subject and tags. Empty criteria are ignored.
func (h *BooksDBHandler) SearchBooks(ctx context.Context, author string, year *int, topic string) ([]*model.Book, error) {
	var yearParam interface{}
	if year != nil {
		yearParam = *year
	}
	return h.selectMany(ctx, "search books", `SELECT * FROM search_books($1, $2, $3)`, author, yearParam, topic)
}

// UpdateBookStatus records the processing outcome of a file.
func (h *BooksDBHandler) UpdateBookStatus(ctx context.Context, filePath string, status model.BookStatus, chunkCount int, errMsg string) error {
	var updated int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT update_book_status($1, $2, $3, $4)`,
		filePath,
		string(status),
		chunkCount,
		errMsg,
	).Scan(&updated)
	if err != nil {
		return helper.NewError("update book status", err)
	}
	if updated == 0 {
		return helper.NewError("update book status", fmt.Errorf("book %s not found", filePath))
	}
	return nil
}

// DeleteBook removes the manifest entry of filePath.
func (h *BooksDBHandler) DeleteBook(ctx context.Context, filePath string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_book($1)`,
		filePath,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectProcessingStats counts books per status.
func (h *BooksDBHandler) SelectProcessingStats(ctx context.Context) (model.ProcessingStats, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_book_stats()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	stats := model.ProcessingStats{}
	for rows.Next() {
		var status string
		var count int
		err := rows.Scan(&status, &count)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		stats[model.BookStatus(status)] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return stats, nil
}

func (h *BooksDBHandler) selectOne(ctx context.Context, op string, query string, args ...interface{}) (*model.Book, error) {
	books, err := h.selectMany(ctx, op, query, args...)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	return books[0], nil
}

func (h *BooksDBHandler) selectMany(ctx context.Context, op string, query string, args ...interface{}) ([]*model.Book, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError(op, err)
	}
	return scanBooks(rows)
}

func scanBooks(rows *sql.Rows) ([]*model.Book, error) {
	defer rows.Close()

	var books []*model.Book
	for rows.Next() {
		book := &model.Book{}
		var year sql.NullInt64
		var status string

		err := rows.Scan(
			&book.ID,
			&book.FilePath,
			&book.FileHash,
			&book.Title,
			&book.Author,
			&book.ISBN,
			&book.DOI,
			&book.Publisher,
			&year,
			&book.PageCount,
			&book.Language,
			&book.Subject,
			pq.Array(&book.Tags),
			&status,
			&book.ChunkCount,
			&book.Error,
			&book.CreatedAt,
			&book.UpdatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		if year.Valid {
			y := int(year.Int64)
			book.Year = &y
		}
		book.Status = model.BookStatus(status)
		books = append(books, book)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return books, nil
}
