package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBooks struct {
	books []*model.Book
	err   error
}

func (f *fakeBooks) SelectAllBooks(ctx context.Context) ([]*model.Book, error) {
	return f.books, f.err
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	storage, err := NewLocalStorage(filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)

	t.Run("Put, get and list", func(t *testing.T) {
		require.NoError(t, storage.Put(ctx, "b/one.json", strings.NewReader("1")))
		require.NoError(t, storage.Put(ctx, "a/two.json", strings.NewReader("2")))
		require.NoError(t, storage.Put(ctx, "b/one.json", strings.NewReader("updated")))

		reader, err := storage.Get(ctx, "b/one.json")
		require.NoError(t, err)
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		require.NoError(t, reader.Close())
		assert.Equal(t, "updated", string(data))

		keys, err := storage.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a/two.json", "b/one.json"}, keys)

		keys, err = storage.List(ctx, "b/")
		require.NoError(t, err)
		assert.Equal(t, []string{"b/one.json"}, keys)
	})

	t.Run("Missing key", func(t *testing.T) {
		_, err := storage.Get(ctx, "missing.json")
		assert.ErrorContains(t, err, "file not found")
	})

	t.Run("Keys may not leave the base directory", func(t *testing.T) {
		assert.Error(t, storage.Put(ctx, "../escape.json", strings.NewReader("x")))
		_, err := storage.Get(ctx, "/etc/passwd")
		assert.Error(t, err)
	})
}

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("Local from settings", func(t *testing.T) {
		settings := helper.DefaultSettings()
		settings.BackupDir = t.TempDir()

		config := ConfigFromSettings(settings)
		require.Equal(t, StorageTypeLocal, config.Type)

		storage, err := NewStorage(ctx, config)
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, storage)
	})

	t.Run("S3 from settings", func(t *testing.T) {
		settings := helper.DefaultSettings()
		settings.S3Bucket = "library-backups"
		settings.S3AccessKey = "key"
		settings.S3SecretKey = "secret"

		config := ConfigFromSettings(settings)
		assert.Equal(t, StorageTypeS3, config.Type)
		assert.Equal(t, "library-backups", config.S3Bucket)

		storage, err := NewStorage(ctx, config)
		require.NoError(t, err)
		assert.IsType(t, &S3Storage{}, storage)
	})

	t.Run("S3 without bucket", func(t *testing.T) {
		_, err := NewStorage(ctx, StorageConfig{Type: StorageTypeS3})
		assert.Error(t, err)
	})

	t.Run("Unknown type", func(t *testing.T) {
		_, err := NewStorage(ctx, StorageConfig{Type: "ftp"})
		assert.Error(t, err)
	})
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	logger := helper.NewLogger("error")

	graphDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(graphDir, "emc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(graphDir, "emc", "entities.json"), []byte(`{"Shielding":{}}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(graphDir, "emc", "relationships.json"), []byte(`[]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(graphDir, "notes.txt"), []byte("ignored"), 0o600))

	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	books := &fakeBooks{books: []*model.Book{{FilePath: "ott.pdf", Title: "EMC Engineering", Status: model.BookStatusDone}}}

	manager, err := NewManager(storage, graphDir, books, logger)
	require.NoError(t, err)
	manager.now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }

	t.Run("Export writes graph files, books and manifest", func(t *testing.T) {
		prefix, err := manager.Export(ctx)

		require.NoError(t, err)
		assert.Equal(t, "bibliotheca_backup_20261018_093000", prefix)

		keys, err := storage.List(ctx, prefix)
		require.NoError(t, err)
		assert.Equal(t, []string{
			prefix + "/books.json",
			prefix + "/export_manifest.json",
			prefix + "/graph/emc/entities.json",
			prefix + "/graph/emc/relationships.json",
		}, keys)

		manifest, err := manager.Manifest(ctx, prefix)
		require.NoError(t, err)
		assert.Equal(t, 1, manifest.Books)
		assert.Equal(t, []string{"emc/entities.json", "emc/relationships.json"}, manifest.GraphFiles)

		snapshots, err := manager.Snapshots(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{prefix}, snapshots)
	})

	t.Run("Import restores graph files", func(t *testing.T) {
		restoreDir := t.TempDir()
		restoring, err := NewManager(storage, restoreDir, nil, logger)
		require.NoError(t, err)

		restored, err := restoring.Import(ctx, "bibliotheca_backup_20261018_093000/")

		require.NoError(t, err)
		assert.Equal(t, []string{"emc/entities.json", "emc/relationships.json"}, restored)
		data, err := os.ReadFile(filepath.Join(restoreDir, "emc", "entities.json"))
		require.NoError(t, err)
		assert.Equal(t, `{"Shielding":{}}`, string(data))
	})

	t.Run("Import of an unknown snapshot", func(t *testing.T) {
		_, err := manager.Import(ctx, "bibliotheca_backup_19990101_000000")
		assert.Error(t, err)
	})

	t.Run("Manifest errors abort the export", func(t *testing.T) {
		failing, err := NewManager(storage, graphDir, &fakeBooks{err: fmt.Errorf("database down")}, logger)
		require.NoError(t, err)

		_, err = failing.Export(ctx)
		assert.ErrorContains(t, err, "database down")
	})

	t.Run("Missing graph directory exports only the manifest", func(t *testing.T) {
		empty, err := NewManager(storage, filepath.Join(t.TempDir(), "missing"), nil, logger)
		require.NoError(t, err)
		empty.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }

		prefix, err := empty.Export(ctx)
		require.NoError(t, err)

		manifest, err := empty.Manifest(ctx, prefix)
		require.NoError(t, err)
		assert.Empty(t, manifest.GraphFiles)
		assert.Equal(t, 0, manifest.Books)
	})

	t.Run("Nil storage", func(t *testing.T) {
		_, err := NewManager(nil, graphDir, nil, logger)
		assert.Error(t, err)
	})
}
