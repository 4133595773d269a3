package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kukmin84ai/bibliotheca/database"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

// DBStore is a Store backed by the entities and relationships tables.
type DBStore struct {
	entities      database.EntitiesDBHandlerFunctions
	relationships database.RelationshipsDBHandlerFunctions
	log           *slog.Logger
}

// NewDBStore creates a graph store over the given handlers.
func NewDBStore(entities database.EntitiesDBHandlerFunctions, relationships database.RelationshipsDBHandlerFunctions, logger *slog.Logger) (*DBStore, error) {
	if entities == nil || relationships == nil {
		return nil, helper.NewError("create graph db store", fmt.Errorf("handlers must not be nil"))
	}
	if logger == nil {
		logger = helper.NewLogger("info")
	}

	return &DBStore{
		entities:      entities,
		relationships: relationships,
		log:           logger,
	}, nil
}

func (s *DBStore) AddEntity(ctx context.Context, entity *model.Entity) error {
	if entity == nil || entity.Name == "" {
		return helper.NewError("add entity", fmt.Errorf("entity name is empty"))
	}
	return s.entities.UpsertEntity(ctx, entity)
}

func (s *DBStore) AddRelationship(ctx context.Context, rel *model.Relationship) error {
	if rel == nil {
		return helper.NewError("add relationship", fmt.Errorf("relationship is nil"))
	}
	if !model.IsKnownRelationshipType(rel.Type) {
		s.log.Warn("Unknown relationship type", slog.String("type", rel.Type))
	}

	_, err := s.relationships.InsertRelationship(ctx, rel)
	return err
}

func (s *DBStore) AddTriplets(ctx context.Context, triplets []*model.Triplet) error {
	for _, t := range triplets {
		if err := s.entities.EnsureEntity(ctx, t.Subject, model.EntityTypeConcept, t.SourceFile); err != nil {
			return err
		}
		if err := s.entities.EnsureEntity(ctx, t.Object, model.EntityTypeConcept, t.SourceFile); err != nil {
			return err
		}
		if _, err := s.relationships.InsertRelationship(ctx, relationshipFor(t)); err != nil {
			return err
		}
	}

	s.log.Info("Added triplets to knowledge graph", slog.Int("count", len(triplets)))
	return nil
}

func (s *DBStore) GetEntity(ctx context.Context, name string) (*model.Entity, error) {
	return s.entities.SelectEntity(ctx, name)
}

func (s *DBStore) SearchEntity(ctx context.Context, name string) (*model.Entity, error) {
	entity, err := s.entities.SelectEntity(ctx, name)
	if err != nil || entity != nil {
		return entity, err
	}

	matches, err := s.entities.SearchEntities(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (s *DBStore) GetRelationships(ctx context.Context, name string, relType string) ([]*model.Relationship, error) {
	return s.relationships.SelectRelationships(ctx, name, relType)
}

func (s *DBStore) Neighbors(ctx context.Context, name string, depth int) (*model.Neighborhood, error) {
	return neighbors(ctx, s, name, depth)
}

func (s *DBStore) Stats(ctx context.Context) (*model.GraphStats, error) {
	entityCount, err := s.entities.CountEntities(ctx)
	if err != nil {
		return nil, err
	}
	relationshipCount, err := s.relationships.CountRelationships(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.entities.SelectEntityTypeCounts(ctx)
	if err != nil {
		return nil, err
	}

	return newStats(entityCount, relationshipCount, counts), nil
}

func (s *DBStore) RemoveEntity(ctx context.Context, name string) (bool, error) {
	removed, err := s.entities.DeleteEntity(ctx, name)
	if err != nil || !removed {
		return false, err
	}

	count, err := s.relationships.DeleteRelationshipsByEntity(ctx, name)
	if err != nil {
		return true, err
	}
	s.log.Info("Removed entity", slog.String("name", name), slog.Int("relationships", count))

	return true, nil
}

func (s *DBStore) Clear(ctx context.Context) error {
	if err := s.relationships.DeleteAllRelationships(ctx); err != nil {
		return err
	}
	if err := s.entities.DeleteAllEntities(ctx); err != nil {
		return err
	}

	s.log.Info("Cleared knowledge graph")
	return nil
}
