package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kukmin84ai/bibliotheca/core/graph"
	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultSearchTopK    = 5
	maxSearchTopK        = 50
	maxNeighborhoodDepth = 3
)

// Standard JSON-RPC error codes
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
)

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *MCPError) Error() string {
	return e.Message
}

func newMCPError(code int, message string, data interface{}) *MCPError {
	return &MCPError{Code: code, Message: message, Data: data}
}

type librarySummary struct {
	Title      string           `json:"title"`
	Author     string           `json:"author"`
	SourceFile string           `json:"source_file"`
	Status     model.BookStatus `json:"status"`
	ChunkCount int              `json:"chunk_count"`
}

type entityLookup struct {
	Entity        *model.Entity         `json:"entity"`
	Relationships []*model.Relationship `json:"relationships"`
}

func (s *Server) handleSearchBooks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", nil)
	}
	topK := getIntDefault(args, "top_k", defaultSearchTopK)
	if topK < 1 || topK > maxSearchTopK {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("top_k must be between 1 and %d", maxSearchTopK), nil)
	}

	filters := model.Metadata{}
	for _, key := range []string{"book_title", "author", "language"} {
		if value := getStringDefault(args, key, ""); value != "" {
			filters[key] = value
		}
	}

	results, err := s.searcher.SearchVector(ctx, query, topK, filters)
	if err != nil {
		return nil, s.internal("search books", err)
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No results found."), nil
	}

	parts := make([]string, 0, len(results))
	for i, result := range results {
		parts = append(parts, fmt.Sprintf("### Result %d [score: %.3f]\n**Source**: %s\n\n%s\n", i+1, result.Score, sourceLine(result), result.Text))
	}

	return mcp.NewToolResultText(strings.Join(parts, "\n---\n")), nil
}

func (s *Server) handleSearchKnowledgeGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(getStringDefault(args, "entity_name", ""))
	if name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "entity_name parameter is required", nil)
	}
	relType := getStringDefault(args, "relationship_type", "")

	entity, err := s.graph.SearchEntity(ctx, name)
	if err != nil {
		return nil, s.internal("search entity", err)
	}
	if entity == nil {
		return mcp.NewToolResultText(fmt.Sprintf("Entity '%s' not found", name)), nil
	}

	rels, err := s.graph.GetRelationships(ctx, entity.Name, relType)
	if err != nil {
		return nil, s.internal("get relationships", err)
	}
	if rels == nil {
		rels = []*model.Relationship{}
	}

	return formatJSON(entityLookup{Entity: entity, Relationships: rels})
}

func (s *Server) handleGetGraphNeighborhood(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(getStringDefault(args, "entity_name", ""))
	if name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "entity_name parameter is required", nil)
	}
	depth := getIntDefault(args, "depth", 1)
	if depth < 1 || depth > maxNeighborhoodDepth {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("depth must be between 1 and %d", maxNeighborhoodDepth), nil)
	}

	// Partial names resolve to the matching entity first.
	if entity, err := s.graph.SearchEntity(ctx, name); err != nil {
		return nil, s.internal("search entity", err)
	} else if entity != nil {
		name = entity.Name
	}

	neighborhood, err := s.graph.Neighbors(ctx, name, depth)
	if errors.Is(err, graph.ErrEntityNotFound) {
		return mcp.NewToolResultText(fmt.Sprintf("Entity '%s' not found", name)), nil
	}
	if err != nil {
		return nil, s.internal("get neighborhood", err)
	}

	return formatJSON(neighborhood)
}

func (s *Server) handleGetTableOfContents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(getStringDefault(args, "book_title", ""))
	if title == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "book_title parameter is required", nil)
	}

	toc, err := s.searcher.TableOfContents(ctx, title)
	if err != nil {
		return nil, s.internal("get table of contents", err)
	}
	if toc == nil || len(toc.Chapters) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No table of contents found for '%s'.", title)), nil
	}

	return formatJSON(toc)
}

func (s *Server) handleGetBookSection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(getStringDefault(args, "book_title", ""))
	path := strings.TrimSpace(getStringDefault(args, "section_path", ""))
	if title == "" || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "book_title and section_path parameters are required", nil)
	}

	results, err := s.searcher.Section(ctx, title, path)
	if err != nil {
		return nil, s.internal("get book section", err)
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No content found for section '%s' in '%s'.", path, title)), nil
	}

	parts := make([]string, 0, len(results))
	for _, result := range results {
		header := result.Chapter
		if result.Section != "" {
			header += " > " + result.Section
		}
		if result.PageNum != nil {
			header += fmt.Sprintf(" (p.%d)", *result.PageNum)
		}
		parts = append(parts, fmt.Sprintf("**%s**\n%s", header, result.Text))
	}

	return mcp.NewToolResultText(strings.Join(parts, "\n\n---\n\n")), nil
}

func (s *Server) handleFindBooksByMetadata(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	author := strings.TrimSpace(getStringDefault(args, "author", ""))
	topic := strings.TrimSpace(getStringDefault(args, "topic", ""))
	var year *int
	if _, ok := args["year"]; ok {
		y := getIntDefault(args, "year", 0)
		year = &y
	}

	books, err := s.catalog.SearchBooks(ctx, author, year, topic)
	if err != nil {
		return nil, s.internal("find books", err)
	}
	if len(books) == 0 {
		return mcp.NewToolResultText("No matching books found."), nil
	}

	return formatJSON(books)
}

func (s *Server) handleListLibrary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	books, err := s.catalog.SelectAllBooks(ctx)
	if err != nil {
		return nil, s.internal("list library", err)
	}
	if len(books) == 0 {
		return mcp.NewToolResultText("No books found in the library."), nil
	}

	summaries := make([]librarySummary, 0, len(books))
	for _, book := range books {
		summaries = append(summaries, librarySummary{
			Title:      book.Title,
			Author:     book.Author,
			SourceFile: book.FilePath,
			Status:     book.Status,
			ChunkCount: book.ChunkCount,
		})
	}

	return formatJSON(summaries)
}

func (s *Server) handleGetGraphStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.graph.Stats(ctx)
	if err != nil {
		return nil, s.internal("get graph stats", err)
	}

	return formatJSON(stats)
}

func (s *Server) internal(op string, err error) *MCPError {
	s.log.Error("Tool call failed", slog.String("op", op), slog.String("error", err.Error()))
	return newMCPError(ErrorCodeInternalError, fmt.Sprintf("%s: %v", op, err), nil)
}

// sourceLine renders "title > chapter > section (p.N)" for a result.
func sourceLine(result *model.SearchResult) string {
	source := result.BookTitle
	if source == "" {
		source = result.SourceFile
	}
	if result.Chapter != "" {
		source += " > " + result.Chapter
	}
	if result.Section != "" {
		source += " > " + result.Section
	}
	if result.PageNum != nil {
		source += fmt.Sprintf(" (p.%d)", *result.PageNum)
	}
	return source
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments format", nil)
	}
	return args, nil
}

// formatJSON formats data as indented JSON text
func formatJSON(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to format response", err.Error())
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// getIntDefault gets an int from args, accepting JSON numbers.
func getIntDefault(args map[string]interface{}, key string, defaultVal int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return defaultVal
	}
}

func getStringDefault(args map[string]interface{}, key string, defaultVal string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return defaultVal
}
