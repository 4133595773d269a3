package model

// QueryType is the intent a query was classified into.
type QueryType string

const (
	QueryTypeFactLookup          QueryType = "fact_lookup"
	QueryTypeConceptExplanation  QueryType = "concept_explanation"
	QueryTypeCrossBookComparison QueryType = "cross_book_comparison"
)

// SearchResult is a retrieval hit with provenance.
type SearchResult struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	SourceFile string  `json:"source_file"`
	BookTitle  string  `json:"book_title,omitempty"`
	Chapter    string  `json:"chapter,omitempty"`
	Section    string  `json:"section,omitempty"`
	PageNum    *int    `json:"page_num,omitempty"`
}

// QueryResponse holds the ranked sources of a query. Answer is left
// empty for an external synthesis step.
type QueryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []*SearchResult `json:"sources"`
	QueryType QueryType       `json:"query_type"`
}
