package database

import (
	"context"
	"testing"

	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationshipsNewRelationshipsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewRelationshipsDBHandler", func(t *testing.T) {
		relationshipsDbHandler, err := NewRelationshipsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewRelationshipsDBHandler to not return an error")
		require.NotNil(t, relationshipsDbHandler, "Expected NewRelationshipsDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewRelationshipsDBHandler with nil database", func(t *testing.T) {
		_, err := NewRelationshipsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating RelationshipsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestRelationships(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	relationshipsDbHandler, err := NewRelationshipsDBHandler(database, true)
	require.NoError(t, err)
	require.NoError(t, relationshipsDbHandler.DeleteAllRelationships(ctx))

	proposes := model.NewRelationship("Einstein", model.RelationshipProposes, "Relativity", "physics.pdf")
	extends := model.NewRelationship("General Relativity", model.RelationshipExtends, "Relativity", "physics.pdf")
	cites := model.NewRelationship("Einstein", model.RelationshipCites, "Lorentz", "physics.pdf")

	t.Run("Insert relationships", func(t *testing.T) {
		for _, rel := range []*model.Relationship{proposes, extends, cites} {
			id, err := relationshipsDbHandler.InsertRelationship(ctx, rel)
			require.NoError(t, err)
			assert.Greater(t, id, 0)
		}
	})

	t.Run("Select relationships touching an entity", func(t *testing.T) {
		rels, err := relationshipsDbHandler.SelectRelationships(ctx, "Relativity", "")
		require.NoError(t, err)
		require.Len(t, rels, 2)
		assert.Equal(t, "Einstein", rels[0].Source, "Expected insertion order")
		assert.Equal(t, "General Relativity", rels[1].Source)
		assert.Equal(t, 1.0, rels[0].Weight)
		assert.Equal(t, "physics.pdf", rels[0].SourceBook)
	})

	t.Run("Select relationships by type", func(t *testing.T) {
		rels, err := relationshipsDbHandler.SelectRelationships(ctx, "Einstein", model.RelationshipCites)
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "Lorentz", rels[0].Target)
	})

	t.Run("Count relationships", func(t *testing.T) {
		count, err := relationshipsDbHandler.CountRelationships(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("Delete relationships by entity", func(t *testing.T) {
		deleted, err := relationshipsDbHandler.DeleteRelationshipsByEntity(ctx, "Einstein")
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		count, err := relationshipsDbHandler.CountRelationships(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}
