package main

import (
	"context"
	"fmt"

	"github.com/kukmin84ai/bibliotheca"
	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/spf13/cobra"
)

var (
	queryTopK     int
	queryBook     string
	queryAuthor   string
	queryLanguage string
	queryDense    bool
	queryNoGraph  bool
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Query the library",
	Long: `Classifies the query, retrieves matching chunks with hybrid (dense and
keyword) search and augments concept and comparison queries with the knowledge
graph.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of sources (0 = configured default)")
	queryCmd.Flags().StringVar(&queryBook, "book", "", "only search this book title")
	queryCmd.Flags().StringVar(&queryAuthor, "author", "", "only search books of this author")
	queryCmd.Flags().StringVar(&queryLanguage, "language", "", "only search chunks in this language")
	queryCmd.Flags().BoolVar(&queryDense, "dense", false, "use dense retrieval only")
	queryCmd.Flags().BoolVar(&queryNoGraph, "no-graph", false, "skip knowledge graph augmentation")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the response as JSON")
	rootCmd.AddCommand(queryCmd)
}

func queryConfig() model.QueryConfig {
	config := model.DefaultQueryConfig()
	config.TopK = queryTopK
	config.UseGraph = !queryNoGraph
	if queryDense {
		config.Mode = model.RetrievalModeDense
	}

	filters := model.Metadata{}
	if queryBook != "" {
		filters["book_title"] = queryBook
	}
	if queryAuthor != "" {
		filters["author"] = queryAuthor
	}
	if queryLanguage != "" {
		filters["language"] = queryLanguage
	}
	if len(filters) > 0 {
		config.Filters = filters
	}
	return config
}

func runQuery(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		response, err := library.Query(ctx, args[0], queryConfig())
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		if queryJSON {
			return printJSON(cmd, response)
		}
		printResponse(cmd, response)
		return nil
	})
}

func printResponse(cmd *cobra.Command, response *model.QueryResponse) {
	if len(response.Sources) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Printf("Query type: %s\n\n", response.QueryType)
	for i, source := range response.Sources {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, sourceTitle(source), source.Score)
		cmd.Printf("      %s\n\n", snippet(source.Text, 200))
	}
}

func sourceTitle(source *model.SearchResult) string {
	title := source.BookTitle
	if title == "" {
		title = source.SourceFile
	}
	if source.Chapter != "" {
		title += " > " + source.Chapter
	}
	if source.Section != "" {
		title += " > " + source.Section
	}
	if source.PageNum != nil {
		title += fmt.Sprintf(" (p.%d)", *source.PageNum)
	}
	return title
}

// snippet shortens text to at most limit runes.
func snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
