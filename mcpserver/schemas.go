package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func stringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// searchBooksTool returns the tool definition for search_books
func searchBooksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_books",
		Description: "Search the book library semantically",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": stringProperty("Natural language search query (e.g. \"electromagnetic shielding techniques\")"),
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results to return (1-50)",
					"default":     defaultSearchTopK,
					"minimum":     1,
					"maximum":     maxSearchTopK,
				},
				"book_title": stringProperty("Only search this book"),
				"author":     stringProperty("Only search books of this author"),
				"language":   stringProperty("Only search chunks in this language"),
			},
			Required: []string{"query"},
		},
	}
}

// searchKnowledgeGraphTool returns the tool definition for search_knowledge_graph
func searchKnowledgeGraphTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_knowledge_graph",
		Description: "Look up an entity in the knowledge graph with its relationships",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"entity_name":       stringProperty("Name of the entity (e.g. \"EMI shielding\", \"Henry Ott\"), partial match supported"),
				"relationship_type": stringProperty("Optional relationship type filter (e.g. RELATED_TO, CITES)"),
			},
			Required: []string{"entity_name"},
		},
	}
}

// getGraphNeighborhoodTool returns the tool definition for get_graph_neighborhood
func getGraphNeighborhoodTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_graph_neighborhood",
		Description: "Get the entities and relationships around an entity up to a depth",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"entity_name": stringProperty("Name of the entity, partial match supported"),
				"depth": map[string]interface{}{
					"type":        "integer",
					"description": "Number of hops (1-3)",
					"default":     1,
					"minimum":     1,
					"maximum":     maxNeighborhoodDepth,
				},
			},
			Required: []string{"entity_name"},
		},
	}
}

// getTableOfContentsTool returns the tool definition for get_table_of_contents
func getTableOfContentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_table_of_contents",
		Description: "Get the chapter and section structure of a book",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"book_title": stringProperty("Title or source file of the book"),
			},
			Required: []string{"book_title"},
		},
	}
}

// getBookSectionTool returns the tool definition for get_book_section
func getBookSectionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_book_section",
		Description: "Retrieve a chapter or section of a book ordered by page",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"book_title":   stringProperty("Title or source file of the book"),
				"section_path": stringProperty("Chapter or section name, partial match supported"),
			},
			Required: []string{"book_title", "section_path"},
		},
	}
}

// findBooksByMetadataTool returns the tool definition for find_books_by_metadata
func findBooksByMetadataTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_books_by_metadata",
		Description: "Search books by author, publication year or topic",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"author": stringProperty("Author name (partial match)"),
				"year": map[string]interface{}{
					"type":        "integer",
					"description": "Publication year",
				},
				"topic": stringProperty("Topic keyword matched against title, subject and tags"),
			},
		},
	}
}

// listLibraryTool returns the tool definition for list_library
func listLibraryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_library",
		Description: "List all books in the library with their processing status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getGraphStatsTool returns the tool definition for get_graph_stats
func getGraphStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_graph_stats",
		Description: "Get entity and relationship counts of the knowledge graph",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
