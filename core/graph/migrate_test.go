package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateLegacy(t *testing.T) {
	logger := helper.NewLogger("error")

	t.Run("Root level files move into default", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, EntitiesFile), []byte(`{"A": {"name": "A", "entity_type": "Concept"}}`), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, RelationshipsFile), []byte(`[]`), 0o600))

		moved, err := MigrateLegacy(dir, logger)

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{EntitiesFile, RelationshipsFile}, moved)
		assert.NoFileExists(t, filepath.Join(dir, EntitiesFile))
		assert.FileExists(t, filepath.Join(dir, "default", EntitiesFile))

		store, err := NewFileStore(dir, "default", logger)
		require.NoError(t, err)
		entity, err := store.GetEntity(t.Context(), "A")
		require.NoError(t, err)
		assert.NotNil(t, entity)
	})

	t.Run("Existing targets are not overwritten", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "default"), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "default", EntitiesFile), []byte(`{}`), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, EntitiesFile), []byte(`{"old": {}}`), 0o600))

		moved, err := MigrateLegacy(dir, logger)

		require.NoError(t, err)
		assert.Empty(t, moved)
		assert.FileExists(t, filepath.Join(dir, EntitiesFile))
		data, err := os.ReadFile(filepath.Join(dir, "default", EntitiesFile))
		require.NoError(t, err)
		assert.Equal(t, "{}", string(data))
	})

	t.Run("Nothing to migrate", func(t *testing.T) {
		dir := t.TempDir()

		moved, err := MigrateLegacy(dir, logger)

		require.NoError(t, err)
		assert.Empty(t, moved)
		assert.NoDirExists(t, filepath.Join(dir, "default"))
	})
}
