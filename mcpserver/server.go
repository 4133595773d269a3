// Package mcpserver exposes the library over the Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kukmin84ai/bibliotheca/core/graph"
	"github.com/kukmin84ai/bibliotheca/core/retrieval"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/mark3labs/mcp-go/server"
)

const (
	// ServerName is the MCP server name
	ServerName = "bibliotheca"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Searcher is the retrieval side used by the tools.
type Searcher interface {
	SearchVector(ctx context.Context, query string, topK int, filters model.Metadata) ([]*model.SearchResult, error)
	TableOfContents(ctx context.Context, bookTitle string) (*retrieval.TableOfContents, error)
	Section(ctx context.Context, bookTitle string, path string) ([]*model.SearchResult, error)
}

// Catalog is the book manifest used by the tools.
type Catalog interface {
	SelectAllBooks(ctx context.Context) ([]*model.Book, error)
	SearchBooks(ctx context.Context, author string, year *int, topic string) ([]*model.Book, error)
	SelectProcessingStats(ctx context.Context) (model.ProcessingStats, error)
}

// Server wraps the MCP server with the library components
type Server struct {
	mcp      *server.MCPServer
	searcher Searcher
	graph    graph.Store
	catalog  Catalog
	log      *slog.Logger
}

// NewServer creates the MCP server and registers all tools.
func NewServer(searcher Searcher, graphStore graph.Store, catalog Catalog, logger *slog.Logger) (*Server, error) {
	if searcher == nil || graphStore == nil || catalog == nil {
		return nil, helper.NewError("create mcp server", fmt.Errorf("searcher, graph store and catalog are required"))
	}
	if logger == nil {
		logger = helper.NewLogger("info")
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		searcher: searcher,
		graph:    graphStore,
		catalog:  catalog,
		log:      logger,
	}
	s.registerTools()

	return s, nil
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve serves on stdio and blocks until stdin is closed.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("Serving MCP on stdio", slog.String("name", ServerName))
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchBooksTool(), s.handleSearchBooks)
	s.mcp.AddTool(searchKnowledgeGraphTool(), s.handleSearchKnowledgeGraph)
	s.mcp.AddTool(getGraphNeighborhoodTool(), s.handleGetGraphNeighborhood)
	s.mcp.AddTool(getTableOfContentsTool(), s.handleGetTableOfContents)
	s.mcp.AddTool(getBookSectionTool(), s.handleGetBookSection)
	s.mcp.AddTool(findBooksByMetadataTool(), s.handleFindBooksByMetadata)
	s.mcp.AddTool(listLibraryTool(), s.handleListLibrary)
	s.mcp.AddTool(getGraphStatsTool(), s.handleGetGraphStats)
}
