package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kukmin84ai/bibliotheca/core/pipeline"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

// DefaultTopK is used when a query asks for zero or fewer results.
const DefaultTopK = 10

// QueryEngine answers queries: classification, retrieval, parent
// expansion and graph augmentation for concept and comparison queries.
type QueryEngine struct {
	classifier *Classifier
	embedder   pipeline.Embedder
	store      VectorStore
	graph      GraphStore
	fuser      *ResultFuser
	log        *slog.Logger
}

// NewQueryEngine creates an engine. graph may be nil, a nil classifier
// uses the built-in keywords and a nil logger the default logger.
func NewQueryEngine(embedder pipeline.Embedder, store VectorStore, graph GraphStore, classifier *Classifier, logger *slog.Logger) (*QueryEngine, error) {
	if embedder == nil {
		return nil, helper.NewError("create query engine", fmt.Errorf("embedder is nil"))
	}
	if store == nil {
		return nil, helper.NewError("create query engine", fmt.Errorf("vector store is nil"))
	}
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	if logger == nil {
		logger = helper.NewLogger("info")
	}

	return &QueryEngine{
		classifier: classifier,
		embedder:   embedder,
		store:      store,
		graph:      graph,
		fuser:      NewResultFuser(store, graph),
		log:        logger,
	}, nil
}

// Classifier returns the classifier in use.
func (e *QueryEngine) Classifier() *Classifier {
	return e.classifier
}

// Query runs a hybrid query with graph augmentation.
func (e *QueryEngine) Query(ctx context.Context, text string, topK int, filters model.Metadata) (*model.QueryResponse, error) {
	config := model.DefaultQueryConfig()
	config.TopK = topK
	config.Filters = filters
	return e.QueryWithConfig(ctx, text, config)
}

// QueryWithConfig runs a query. Upstream errors are returned without retry.
// No hits give an empty source list.
func (e *QueryEngine) QueryWithConfig(ctx context.Context, text string, config model.QueryConfig) (*model.QueryResponse, error) {
	topK := config.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	strategy, err := NewStrategy(config.Mode, e.store)
	if err != nil {
		return nil, helper.NewError("select retrieval strategy", err)
	}

	queryType := e.classifier.Classify(text)
	e.log.Info("Classified query", slog.String("query", text), slog.String("query_type", string(queryType)))

	embedding, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}

	records, err := strategy.Retrieve(ctx, text, embedding, topK, config.Filters)
	if err != nil {
		return nil, helper.NewError("retrieve chunks", err)
	}

	results := make([]*model.SearchResult, 0, len(records))
	for _, record := range records {
		results = append(results, ToSearchResult(record))
	}

	results, err = e.fuser.ExpandParents(ctx, results, records)
	if err != nil {
		return nil, err
	}

	if config.UseGraph && e.graph != nil &&
		(queryType == model.QueryTypeConceptExplanation || queryType == model.QueryTypeCrossBookComparison) {
		graphResults, err := e.fuser.GraphAugment(ctx, text)
		if err != nil {
			return nil, err
		}
		results = Merge(results, graphResults)
	}

	if len(results) > topK {
		results = results[:topK]
	}

	return &model.QueryResponse{
		Answer:    "",
		Sources:   results,
		QueryType: queryType,
	}, nil
}
