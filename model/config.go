package model

// ChunkingConfig configures the chunking engine. Sizes are word counts.
type ChunkingConfig struct {
	ChildSize         int     `json:"child_size"`
	ParentSize        int     `json:"parent_size"`
	Overlap           int     `json:"overlap"`
	SemanticThreshold float64 `json:"semantic_threshold"`
}

// DefaultChunkingConfig returns the default chunking configuration
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChildSize:         300,
		ParentSize:        900,
		Overlap:           50,
		SemanticThreshold: 0.75,
	}
}

// RetrievalMode selects how candidate chunks are retrieved.
type RetrievalMode string

const (
	RetrievalModeHybrid RetrievalMode = "hybrid"
	RetrievalModeDense  RetrievalMode = "dense"
)

// QueryConfig represents configuration for a retrieval query
type QueryConfig struct {
	TopK    int           `json:"top_k"`
	Mode    RetrievalMode `json:"mode"`
	Filters Metadata      `json:"filters,omitempty"`

	// Graph augmentation for concept and comparison queries
	UseGraph bool `json:"use_graph"`
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:     10,
		Mode:     RetrievalModeHybrid,
		UseGraph: true,
	}
}

// Weights used when fusing dense similarity with keyword relevance.
const (
	HybridDenseWeight   = 0.7
	HybridKeywordWeight = 0.3
)
