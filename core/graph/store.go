package graph

import (
	"context"
	"errors"

	"github.com/kukmin84ai/bibliotheca/model"
)

// ErrEntityNotFound is returned when a name matches no entity and no relationship.
var ErrEntityNotFound = errors.New("entity not found")

// Store is a knowledge graph of named entities and typed relationships.
// Relationships are append-only, the same edge may be stored twice.
type Store interface {
	// AddEntity adds or replaces the entity with the same name.
	AddEntity(ctx context.Context, entity *model.Entity) error
	// AddRelationship appends rel. Unknown types are logged but kept.
	AddRelationship(ctx context.Context, rel *model.Relationship) error
	// AddTriplets creates missing endpoints as concepts and appends one
	// relationship per triplet.
	AddTriplets(ctx context.Context, triplets []*model.Triplet) error
	// GetEntity returns the entity with exactly this name or nil.
	GetEntity(ctx context.Context, name string) (*model.Entity, error)
	// SearchEntity returns the exact match, else the first entity (by name)
	// whose name contains name case-insensitively, else nil.
	SearchEntity(ctx context.Context, name string) (*model.Entity, error)
	// GetRelationships returns the relationships touching name. An empty
	// relType returns all of them.
	GetRelationships(ctx context.Context, name string, relType string) ([]*model.Relationship, error)
	Neighbors(ctx context.Context, name string, depth int) (*model.Neighborhood, error)
	Stats(ctx context.Context) (*model.GraphStats, error)
	// RemoveEntity deletes the entity and its relationships. It reports
	// whether the entity existed.
	RemoveEntity(ctx context.Context, name string) (bool, error)
	Clear(ctx context.Context) error
}

// conceptFor is the entity auto-created for a triplet endpoint.
func conceptFor(name string, sourceBook string) *model.Entity {
	return &model.Entity{
		Name:       name,
		Type:       model.EntityTypeConcept,
		SourceBook: sourceBook,
		Properties: model.Metadata{},
	}
}

func relationshipFor(t *model.Triplet) *model.Relationship {
	return model.NewRelationship(t.Subject, t.Predicate, t.Object, t.SourceFile)
}

func newStats(entityCount int, relationshipCount int, typeCounts map[string]int) *model.GraphStats {
	stats := &model.GraphStats{
		EntityCount:       entityCount,
		RelationshipCount: relationshipCount,
		EntityTypes:       map[string]int{},
	}
	for _, entityType := range model.EntityTypes {
		stats.EntityTypes[entityType] = typeCounts[entityType]
	}
	return stats
}
