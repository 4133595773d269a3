package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/kukmin84ai/bibliotheca"
	"github.com/kukmin84ai/bibliotheca/core/ingest"
	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/spf13/cobra"
)

var (
	booksStatus string
	booksAuthor string
	booksYear   int
	booksTopic  string
	booksJSON   bool
)

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "Book manifest commands",
	Long:  `List, search and remove the books known to the library.`,
}

var booksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all books with their processing status",
	Args:  cobra.NoArgs,
	RunE:  runBooksList,
}

var booksSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search books by author, year or topic",
	Args:  cobra.NoArgs,
	RunE:  runBooksSearch,
}

var booksStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count books per processing status",
	Args:  cobra.NoArgs,
	RunE:  runBooksStats,
}

var booksWhichCmd = &cobra.Command{
	Use:   "which [file]",
	Short: "Find the book with the same content as a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBooksWhich,
}

var booksRemoveCmd = &cobra.Command{
	Use:   "remove [file]",
	Short: "Remove a book and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runBooksRemove,
}

func init() {
	booksListCmd.Flags().StringVar(&booksStatus, "status", "", "only list books in this status (pending, processing, done, error, empty)")
	booksListCmd.Flags().BoolVar(&booksJSON, "json", false, "output books as JSON")
	booksSearchCmd.Flags().StringVar(&booksAuthor, "author", "", "author name (partial match)")
	booksSearchCmd.Flags().IntVar(&booksYear, "year", 0, "publication year")
	booksSearchCmd.Flags().StringVar(&booksTopic, "topic", "", "topic matched against title, subject and tags")
	booksSearchCmd.Flags().BoolVar(&booksJSON, "json", false, "output books as JSON")
	booksCmd.AddCommand(booksListCmd, booksSearchCmd, booksStatsCmd, booksWhichCmd, booksRemoveCmd)
	rootCmd.AddCommand(booksCmd)
}

func runBooksList(cmd *cobra.Command, _ []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		var books []*model.Book
		var err error
		if booksStatus != "" {
			books, err = library.Books.SelectBooksByStatus(ctx, model.BookStatus(booksStatus))
		} else {
			books, err = library.Books.SelectAllBooks(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to list books: %w", err)
		}
		return printBooks(cmd, books, "No books found in the library.")
	})
}

func runBooksSearch(cmd *cobra.Command, _ []string) error {
	var year *int
	if cmd.Flags().Changed("year") {
		year = &booksYear
	}

	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		books, err := library.Books.SearchBooks(ctx, booksAuthor, year, booksTopic)
		if err != nil {
			return fmt.Errorf("failed to search books: %w", err)
		}
		return printBooks(cmd, books, "No matching books found.")
	})
}

func runBooksStats(cmd *cobra.Command, _ []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		stats, err := library.Books.SelectProcessingStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to count books: %w", err)
		}
		chunks, err := library.Chunks.CountChunks(ctx)
		if err != nil {
			return fmt.Errorf("failed to count chunks: %w", err)
		}
		return printJSON(cmd, map[string]interface{}{"books": stats, "chunks": chunks})
	})
}

func runBooksWhich(cmd *cobra.Command, args []string) error {
	hash, err := ingest.FileHash(args[0])
	if err != nil {
		return fmt.Errorf("failed to hash file: %w", err)
	}

	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		book, err := library.Books.SelectBookByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to look up book: %w", err)
		}
		if book == nil {
			cmd.Println("No book with the same content found.")
			return nil
		}
		cmd.Printf("%s (%s) %s\n", book.Title, book.Status, book.FilePath)
		return nil
	})
}

func runBooksRemove(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		if err := library.Ingester.Remove(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to remove book: %w", err)
		}
		cmd.Printf("Removed %s\n", args[0])
		return nil
	})
}

func printBooks(cmd *cobra.Command, books []*model.Book, empty string) error {
	if booksJSON {
		return printJSON(cmd, books)
	}
	if len(books) == 0 {
		cmd.Println(empty)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tAUTHOR\tYEAR\tSTATUS\tCHUNKS")
	for _, book := range books {
		year := "-"
		if book.Year != nil {
			year = fmt.Sprint(*book.Year)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", book.Title, book.Author, year, book.Status, book.ChunkCount)
	}
	return w.Flush()
}
