package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

const (
	// vectorPerGraph vector results precede each graph result when merging.
	vectorPerGraph = 3
	graphScore     = 0.5
	maxGraphTerms  = 5
	maxGraphLines  = 10
	parentSep      = "\n---\n"
)

var (
	quotedTerm      = regexp.MustCompile(`"([^"]+)"`)
	capitalizedTerm = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\b`)
)

// ResultFuser turns raw records into search results and enriches them
// with parent context and knowledge graph summaries.
type ResultFuser struct {
	store VectorStore
	graph GraphStore
}

// NewResultFuser creates a fuser. graph may be nil.
func NewResultFuser(store VectorStore, graph GraphStore) *ResultFuser {
	return &ResultFuser{store: store, graph: graph}
}

// ToSearchResult converts a record. The score is 1 - distance and page 0
// means unknown.
func ToSearchResult(record *model.Record) *model.SearchResult {
	result := &model.SearchResult{
		Text:       record.Text,
		Score:      1.0 - record.Distance,
		SourceFile: record.SourceFile,
		BookTitle:  record.BookTitle,
		Chapter:    record.Chapter,
		Section:    record.Section,
	}
	if record.PageNum != 0 {
		page := record.PageNum
		result.PageNum = &page
	}
	return result
}

// ExpandParents prepends the parent text to child results. results[i]
// must stem from records[i]. Each parent is fetched once; unknown parents
// leave the result unchanged.
func (f *ResultFuser) ExpandParents(ctx context.Context, results []*model.SearchResult, records []*model.Record) ([]*model.SearchResult, error) {
	parents := map[string]*model.Record{}
	expanded := make([]*model.SearchResult, 0, len(results))

	for i, result := range results {
		if i >= len(records) {
			expanded = append(expanded, result)
			continue
		}

		record := records[i]
		if record.ParentID == "" || record.IsParent {
			expanded = append(expanded, result)
			continue
		}

		parent, ok := parents[record.ParentID]
		if !ok {
			var err error
			parent, err = f.store.GetByID(ctx, record.ParentID)
			if err != nil {
				return nil, helper.NewError("fetch parent chunk", err)
			}
			parents[record.ParentID] = parent
		}
		if parent == nil {
			expanded = append(expanded, result)
			continue
		}

		withParent := *result
		withParent.Text = parent.Text + parentSep + result.Text
		expanded = append(expanded, &withParent)
	}

	return expanded, nil
}

// GraphTerms picks the entity names to look up for query: quoted terms,
// else capitalised phrases, else the first three words longer than four
// characters.
func GraphTerms(query string) []string {
	var terms []string
	for _, m := range quotedTerm.FindAllStringSubmatch(query, -1) {
		terms = append(terms, m[1])
	}
	if len(terms) == 0 {
		for _, m := range capitalizedTerm.FindAllStringSubmatch(query, -1) {
			terms = append(terms, m[1])
		}
	}
	if len(terms) == 0 {
		for _, word := range strings.Fields(query) {
			if utf8.RuneCountInString(word) > 4 {
				terms = append(terms, word)
			}
			if len(terms) == 3 {
				break
			}
		}
	}

	if len(terms) > maxGraphTerms {
		terms = terms[:maxGraphTerms]
	}
	return terms
}

// GraphAugment summarises the graph context of the entities named in
// query. Entities without relationships are skipped.
func (f *ResultFuser) GraphAugment(ctx context.Context, query string) ([]*model.SearchResult, error) {
	if f.graph == nil {
		return nil, nil
	}

	var results []*model.SearchResult
	for _, term := range GraphTerms(query) {
		entity, err := f.graph.SearchEntity(ctx, term)
		if err != nil {
			return nil, helper.NewError("search graph entity", err)
		}
		if entity == nil {
			continue
		}

		rels, err := f.graph.GetRelationships(ctx, entity.Name, "")
		if err != nil {
			return nil, helper.NewError("get graph relationships", err)
		}
		if len(rels) == 0 {
			continue
		}

		results = append(results, &model.SearchResult{
			Text:       graphText(entity, rels),
			Score:      graphScore,
			SourceFile: entity.SourceBook,
			BookTitle:  entity.SourceBook,
		})
	}

	return results, nil
}

func graphText(entity *model.Entity, rels []*model.Relationship) string {
	if len(rels) > maxGraphLines {
		rels = rels[:maxGraphLines]
	}

	lines := make([]string, 0, len(rels))
	for _, rel := range rels {
		lines = append(lines, fmt.Sprintf("  %s --[%s]--> %s", rel.Source, rel.Type, rel.Target))
	}

	return fmt.Sprintf("Knowledge Graph: %s (%s)\nDescription: %s\nRelationships:\n", entity.Name, entity.Type, entity.Description) +
		strings.Join(lines, "\n")
}

// Merge interleaves graph results after every three vector results until
// both lists are used up.
func Merge(vector []*model.SearchResult, graph []*model.SearchResult) []*model.SearchResult {
	if len(graph) == 0 {
		return vector
	}

	merged := make([]*model.SearchResult, 0, len(vector)+len(graph))
	vi, gi := 0, 0
	for vi < len(vector) || gi < len(graph) {
		for n := 0; n < vectorPerGraph && vi < len(vector); n++ {
			merged = append(merged, vector[vi])
			vi++
		}
		if gi < len(graph) {
			merged = append(merged, graph[gi])
			gi++
		}
	}

	return merged
}
