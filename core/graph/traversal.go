package graph

import (
	"context"

	"github.com/kukmin84ai/bibliotheca/model"
)

// graphReader is the part of a store the traversal needs.
type graphReader interface {
	GetEntity(ctx context.Context, name string) (*model.Entity, error)
	GetRelationships(ctx context.Context, name string, relType string) ([]*model.Relationship, error)
}

type relationshipKey struct {
	source  string
	target  string
	relType string
	book    string
}

// neighbors performs a depth-first search from name up to depth hops.
// Entities within depth are collected once. Relationships touching any
// visited entity are collected once each, including those leading past
// the depth limit.
func neighbors(ctx context.Context, g graphReader, name string, depth int) (*model.Neighborhood, error) {
	result := &model.Neighborhood{
		Entities:      []*model.Entity{},
		Relationships: []*model.Relationship{},
	}
	visited := make(map[string]bool)
	seen := make(map[relationshipKey]bool)

	err := dfsRecursive(ctx, g, name, 0, depth, visited, seen, result)
	if err != nil {
		return nil, err
	}

	if len(result.Entities) == 0 && len(result.Relationships) == 0 {
		return nil, ErrEntityNotFound
	}

	return result, nil
}

// dfsRecursive is the recursive helper for neighbors
func dfsRecursive(
	ctx context.Context,
	g graphReader,
	name string,
	distance int,
	maxDepth int,
	visited map[string]bool,
	seen map[relationshipKey]bool,
	result *model.Neighborhood,
) error {
	if distance > maxDepth || visited[name] {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	visited[name] = true

	entity, err := g.GetEntity(ctx, name)
	if err != nil {
		return err
	}
	if entity != nil {
		result.Entities = append(result.Entities, entity)
	}

	rels, err := g.GetRelationships(ctx, name, "")
	if err != nil {
		return err
	}

	for _, rel := range rels {
		key := relationshipKey{rel.Source, rel.Target, rel.Type, rel.SourceBook}
		if !seen[key] {
			seen[key] = true
			result.Relationships = append(result.Relationships, rel)
		}

		err := dfsRecursive(ctx, g, rel.Other(name), distance+1, maxDepth, visited, seen, result)
		if err != nil {
			return err
		}
	}

	return nil
}
