package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSearchResult(t *testing.T) {
	t.Run("Score is one minus distance", func(t *testing.T) {
		result := ToSearchResult(&model.Record{Text: "t", Distance: 0.25, PageNum: 4, Chapter: "c", Section: "s", BookTitle: "b", SourceFile: "f"})

		assert.Equal(t, 0.75, result.Score)
		require.NotNil(t, result.PageNum)
		assert.Equal(t, 4, *result.PageNum)
		assert.Equal(t, "c", result.Chapter)
		assert.Equal(t, "s", result.Section)
		assert.Equal(t, "b", result.BookTitle)
		assert.Equal(t, "f", result.SourceFile)
	})

	t.Run("Page zero is unknown", func(t *testing.T) {
		assert.Nil(t, ToSearchResult(&model.Record{}).PageNum)
		assert.Equal(t, 1.0, ToSearchResult(&model.Record{}).Score)
	})
}

func TestExpandParents(t *testing.T) {
	ctx := context.Background()

	t.Run("Child text gets its parent text", func(t *testing.T) {
		parent := &model.Record{ID: "p1", Text: "P", IsParent: true}
		child := childRecord("c1", "p1", "C", 0.1)
		fuser := NewResultFuser(newFakeStore(parent, child), nil)

		expanded, err := fuser.ExpandParents(ctx, []*model.SearchResult{ToSearchResult(child)}, []*model.Record{child})

		require.NoError(t, err)
		require.Len(t, expanded, 1)
		assert.Equal(t, "P\n---\nC", expanded[0].Text)
		assert.InDelta(t, 0.9, expanded[0].Score, 1e-9)
		assert.Equal(t, "Book", expanded[0].BookTitle)
	})

	t.Run("Unknown parent leaves the result unchanged", func(t *testing.T) {
		child := childRecord("c1", "missing", "C", 0.1)
		store := newFakeStore(child)
		fuser := NewResultFuser(store, nil)
		other := childRecord("c2", "missing", "D", 0.2)

		expanded, err := fuser.ExpandParents(ctx,
			[]*model.SearchResult{ToSearchResult(child), ToSearchResult(other)},
			[]*model.Record{child, other})

		require.NoError(t, err)
		assert.Equal(t, []string{"C", "D"}, texts(expanded))
		assert.Equal(t, 1, store.lookups["missing"])
	})

	t.Run("Each parent is fetched once", func(t *testing.T) {
		parent := &model.Record{ID: "p1", Text: "P", IsParent: true}
		a := childRecord("a", "p1", "A", 0.1)
		b := childRecord("b", "p1", "B", 0.2)
		store := newFakeStore(parent, a, b)
		fuser := NewResultFuser(store, nil)

		expanded, err := fuser.ExpandParents(ctx,
			[]*model.SearchResult{ToSearchResult(a), ToSearchResult(b)},
			[]*model.Record{a, b})

		require.NoError(t, err)
		assert.Equal(t, []string{"P\n---\nA", "P\n---\nB"}, texts(expanded))
		assert.Equal(t, 1, store.lookups["p1"])
	})

	t.Run("Parents and orphans are passed through", func(t *testing.T) {
		parent := &model.Record{ID: "p1", Text: "P", IsParent: true, ParentID: "weird"}
		orphan := childRecord("o", "", "O", 0)
		store := newFakeStore(parent, orphan)
		fuser := NewResultFuser(store, nil)

		expanded, err := fuser.ExpandParents(ctx,
			[]*model.SearchResult{ToSearchResult(parent), ToSearchResult(orphan)},
			[]*model.Record{parent, orphan})

		require.NoError(t, err)
		assert.Equal(t, []string{"P", "O"}, texts(expanded))
		assert.Empty(t, store.lookups)
	})

	t.Run("Lookup errors propagate", func(t *testing.T) {
		child := childRecord("c1", "p1", "C", 0.1)
		store := newFakeStore(child)
		store.getErr = fmt.Errorf("connection reset")
		fuser := NewResultFuser(store, nil)

		_, err := fuser.ExpandParents(ctx, []*model.SearchResult{ToSearchResult(child)}, []*model.Record{child})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestGraphTerms(t *testing.T) {
	t.Run("Quoted terms come first", func(t *testing.T) {
		assert.Equal(t, []string{"skin effect", "Faraday cage"}, GraphTerms(`Explain "skin effect" and "Faraday cage" in Ott`))
	})

	t.Run("Capitalised phrases", func(t *testing.T) {
		assert.Equal(t, []string{"What", "Maxwell Equations", "Heaviside"}, GraphTerms("What do Maxwell Equations owe to Heaviside"))
	})

	t.Run("Long words as a last resort", func(t *testing.T) {
		assert.Equal(t, []string{"explain", "shielding", "effectiveness"}, GraphTerms("explain shielding effectiveness against magnetic fields"))
	})

	t.Run("At most five terms", func(t *testing.T) {
		assert.Len(t, GraphTerms(`"a" "b" "c" "d" "e" "f"`), 5)
	})

	t.Run("No terms", func(t *testing.T) {
		assert.Empty(t, GraphTerms("why so"))
	})
}

func TestGraphAugment(t *testing.T) {
	ctx := context.Background()
	graph := &fakeGraph{
		entities: map[string]*model.Entity{
			"Shielding": {Name: "Shielding", Type: model.EntityTypeConcept, Description: "Blocking fields", SourceBook: "ott.pdf"},
			"Isolated":  {Name: "Isolated", Type: model.EntityTypeConcept},
		},
		relationships: []*model.Relationship{
			model.NewRelationship("Ott", model.RelationshipProposes, "Shielding", "ott.pdf"),
			model.NewRelationship("Shielding", model.RelationshipPrerequisiteFor, "Grounding", "ott.pdf"),
		},
	}

	t.Run("Entities with relationships become results", func(t *testing.T) {
		fuser := NewResultFuser(newFakeStore(), graph)

		results, err := fuser.GraphAugment(ctx, `Explain "Shielding" and "Isolated" and "Unknown"`)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Knowledge Graph: Shielding (Concept)\nDescription: Blocking fields\nRelationships:\n"+
			"  Ott --[PROPOSES]--> Shielding\n"+
			"  Shielding --[PREREQUISITE_FOR]--> Grounding", results[0].Text)
		assert.Equal(t, 0.5, results[0].Score)
		assert.Equal(t, "ott.pdf", results[0].SourceFile)
		assert.Equal(t, "ott.pdf", results[0].BookTitle)
		assert.Nil(t, results[0].PageNum)
	})

	t.Run("At most ten relationship lines", func(t *testing.T) {
		many := &fakeGraph{entities: map[string]*model.Entity{"Hub": {Name: "Hub", Type: model.EntityTypeConcept}}}
		for i := 0; i < 15; i++ {
			many.relationships = append(many.relationships, model.NewRelationship("Hub", model.RelationshipCites, fmt.Sprintf("N%d", i), ""))
		}
		fuser := NewResultFuser(newFakeStore(), many)

		results, err := fuser.GraphAugment(ctx, `"Hub"`)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 10, strings.Count(results[0].Text, "--["))
	})

	t.Run("Graph errors propagate", func(t *testing.T) {
		fuser := NewResultFuser(newFakeStore(), &fakeGraph{err: fmt.Errorf("graph offline")})

		_, err := fuser.GraphAugment(ctx, `"Hub"`)

		assert.Error(t, err)
	})

	t.Run("Without graph nothing is added", func(t *testing.T) {
		results, err := NewResultFuser(newFakeStore(), nil).GraphAugment(ctx, `"Hub"`)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestMerge(t *testing.T) {
	t.Run("Three vector results per graph result", func(t *testing.T) {
		merged := Merge(searchResults("V", 5), searchResults("G", 2))
		assert.Equal(t, []string{"V1", "V2", "V3", "G1", "V4", "V5", "G2"}, texts(merged))
	})

	t.Run("Remaining graph results are appended", func(t *testing.T) {
		merged := Merge(searchResults("V", 1), searchResults("G", 3))
		assert.Equal(t, []string{"V1", "G1", "G2", "G3"}, texts(merged))
	})

	t.Run("Remaining vector results are appended", func(t *testing.T) {
		merged := Merge(searchResults("V", 8), searchResults("G", 1))
		assert.Equal(t, []string{"V1", "V2", "V3", "G1", "V4", "V5", "V6", "V7", "V8"}, texts(merged))
	})

	t.Run("No graph results keep the vector list", func(t *testing.T) {
		vector := searchResults("V", 2)
		assert.Equal(t, vector, Merge(vector, nil))
	})
}
