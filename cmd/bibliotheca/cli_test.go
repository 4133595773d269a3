package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/kukmin84ai/bibliotheca"
	"github.com/kukmin84ai/bibliotheca/core/graph"
	"github.com/kukmin84ai/bibliotheca/core/pipeline"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

const sampleBook = `# Grounding

A single point ground keeps return currents away from sensitive circuits.
Ground loops form when two grounds sit at different potentials.

# Shielding

Copper shields reflect electric fields. Steel absorbs low frequency magnetic fields.
`

// resetFlags restores every flag to its default since flag variables
// outlive a single Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(flag *pflag.Flag) {
		_ = flag.Value.Set(flag.DefValue)
		flag.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// useTestLibrary opens libraries against the test database with a
// deterministic embedder.
func useTestLibrary(t *testing.T) string {
	t.Helper()
	helper.SetTestDatabaseConfigEnvs(t, dbPort)

	dir := t.TempDir()
	t.Setenv("BIBLIO_EMBEDDING_DIMENSION", "8")
	t.Setenv("BIBLIO_GRAPH_STORE_DIR", filepath.Join(dir, "graph_store"))
	t.Setenv("BIBLIO_BACKUP_DIR", filepath.Join(dir, "backups"))
	t.Setenv("BIBLIO_LOG_LEVEL", "error")

	previous := openLibrary
	openLibrary = func(settings *helper.Settings) (*bibliotheca.Library, error) {
		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return nil, err
		}
		return bibliotheca.NewLibrary(dbConfig, settings, testEmbedder())
	}
	t.Cleanup(func() { openLibrary = previous })

	return dir
}

func TestCommands(t *testing.T) {
	t.Run("Root command", func(t *testing.T) {
		assert.Equal(t, "bibliotheca", rootCmd.Use)
		flag := rootCmd.PersistentFlags().Lookup("config")
		require.NotNil(t, flag, "config flag should exist")
		assert.Equal(t, "c", flag.Shorthand)
	})

	t.Run("Subcommands are registered", func(t *testing.T) {
		names := map[string]bool{}
		for _, cmd := range rootCmd.Commands() {
			names[cmd.Name()] = true
		}
		for _, name := range []string{"ingest", "query", "peek", "graph", "books", "backup", "serve", "index"} {
			assert.True(t, names[name], "expected command %s", name)
		}
	})

	t.Run("Query requires exactly one arg", func(t *testing.T) {
		_, err := execute(t, "query")
		assert.ErrorContains(t, err, "accepts 1 arg(s)")
	})

	t.Run("Ingest requires a directory", func(t *testing.T) {
		_, err := execute(t, "ingest")
		assert.ErrorContains(t, err, "accepts 1 arg(s)")
	})

	t.Run("Query flags", func(t *testing.T) {
		flag := queryCmd.Flags().Lookup("top-k")
		require.NotNil(t, flag)
		assert.Equal(t, "k", flag.Shorthand)
		assert.Equal(t, "0", flag.DefValue)
	})

	t.Run("Graph neighbors rejects zero depth", func(t *testing.T) {
		_, err := execute(t, "graph", "neighbors", "x", "--depth", "0")
		assert.ErrorContains(t, err, "depth must be at least 1")
	})

	t.Run("Invalid settings file", func(t *testing.T) {
		_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "books", "list")
		assert.ErrorContains(t, err, "failed to load settings")
	})
}

func TestQueryConfig(t *testing.T) {
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	t.Run("Defaults", func(t *testing.T) {
		config := queryConfig()
		assert.Equal(t, model.RetrievalModeHybrid, config.Mode)
		assert.True(t, config.UseGraph)
		assert.Nil(t, config.Filters)
		assert.Equal(t, 0, config.TopK)
	})

	t.Run("Flags map to config", func(t *testing.T) {
		queryDense = true
		queryNoGraph = true
		queryBook = "Optics"
		queryLanguage = "en"
		queryTopK = 3

		config := queryConfig()
		assert.Equal(t, model.RetrievalModeDense, config.Mode)
		assert.False(t, config.UseGraph)
		assert.Equal(t, 3, config.TopK)
		assert.Equal(t, model.Metadata{"book_title": "Optics", "language": "en"}, config.Filters)
	})
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short", 10))
	assert.Equal(t, "äöü...", snippet("äöüß", 3))
}

func TestGraphMigrate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BIBLIO_GRAPH_STORE_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, graph.EntitiesFile), []byte("{}"), 0o600))

	out, err := execute(t, "graph", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Moved "+graph.EntitiesFile)
	assert.FileExists(t, filepath.Join(dir, "default", graph.EntitiesFile))

	out, err = execute(t, "graph", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to migrate.")
}

func testEmbedder() pipeline.Embedder {
	return pipeline.NewFuncEmbedder(func(text string) ([]float32, error) {
		embedding := make([]float32, testDim)
		for i := range embedding {
			embedding[i] = float32((len(text)+i)%100+1) / 100.0
		}
		return embedding, nil
	}, testDim)
}

func TestPeek(t *testing.T) {
	t.Setenv("BIBLIO_EMBEDDING_DIMENSION", "8")
	t.Setenv("BIBLIO_LOG_LEVEL", "error")

	previous := openScratch
	openScratch = func(settings *helper.Settings) (*bibliotheca.Scratch, error) {
		return bibliotheca.NewScratch(settings, testEmbedder())
	}
	t.Cleanup(func() { openScratch = previous })

	booksDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(booksDir, "Henry Ott - EMC Engineering (2009, Wiley).md"), []byte(sampleBook), 0o600))

	out, err := execute(t, "peek", booksDir, "ground loops")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 1 books")
	assert.Contains(t, out, "EMC Engineering")

	_, err = execute(t, "peek", booksDir)
	assert.ErrorContains(t, err, "accepts 2 arg(s)")
}

func TestLibraryCommands(t *testing.T) {
	dir := useTestLibrary(t)
	booksDir := filepath.Join(dir, "books")
	require.NoError(t, os.MkdirAll(booksDir, 0o750))
	bookPath := filepath.Join(booksDir, "Henry Ott - EMC Engineering (2009, Wiley).md")
	require.NoError(t, os.WriteFile(bookPath, []byte(sampleBook), 0o600))

	t.Run("Ingest a directory", func(t *testing.T) {
		out, err := execute(t, "ingest", booksDir)
		require.NoError(t, err)
		assert.Contains(t, out, "Processed: 1, Skipped: 0, Failed: 0")

		out, err = execute(t, "ingest", booksDir)
		require.NoError(t, err)
		assert.Contains(t, out, "Processed: 0, Skipped: 1, Failed: 0")
	})

	t.Run("Query the library", func(t *testing.T) {
		out, err := execute(t, "query", "ground loops", "--top-k", "3")
		require.NoError(t, err)
		assert.Contains(t, out, "EMC Engineering")
		assert.Contains(t, out, "Query type:")

		out, err = execute(t, "query", "ground loops", "--book", "Unknown Book")
		require.NoError(t, err)
		assert.Contains(t, out, "No results found.")
	})

	t.Run("Books commands", func(t *testing.T) {
		out, err := execute(t, "books", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "EMC Engineering")
		assert.Contains(t, out, string(model.BookStatusDone))

		out, err = execute(t, "books", "search", "--author", "Ott")
		require.NoError(t, err)
		assert.Contains(t, out, "EMC Engineering")

		out, err = execute(t, "books", "search", "--year", "1999")
		require.NoError(t, err)
		assert.Contains(t, out, "No matching books found.")

		out, err = execute(t, "books", "list", "--status", "error")
		require.NoError(t, err)
		assert.Contains(t, out, "No books found in the library.")

		out, err = execute(t, "books", "stats")
		require.NoError(t, err)
		assert.Contains(t, out, "\"done\": 1")
		assert.Contains(t, out, "\"chunks\"")

		copyPath := filepath.Join(dir, "copy.md")
		require.NoError(t, os.WriteFile(copyPath, []byte(sampleBook), 0o600))
		out, err = execute(t, "books", "which", copyPath)
		require.NoError(t, err)
		assert.Contains(t, out, bookPath)
	})

	t.Run("Graph commands", func(t *testing.T) {
		out, err := execute(t, "graph", "stats")
		require.NoError(t, err)
		assert.Contains(t, out, "entity_count")

		out, err = execute(t, "graph", "search", "Nothing")
		require.NoError(t, err)
		assert.Contains(t, out, "Entity 'Nothing' not found")

		out, err = execute(t, "graph", "neighbors", "Nothing")
		require.NoError(t, err)
		assert.Contains(t, out, "Entity 'Nothing' not found")

		out, err = execute(t, "graph", "remove", "Nothing")
		require.NoError(t, err)
		assert.Contains(t, out, "Entity 'Nothing' not found")

		_, err = execute(t, "graph", "clear")
		assert.ErrorContains(t, err, "--yes")

		out, err = execute(t, "graph", "clear", "--yes")
		require.NoError(t, err)
		assert.Contains(t, out, "Cleared")
	})

	t.Run("Backup commands", func(t *testing.T) {
		out, err := execute(t, "backup", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No snapshots found.")

		out, err = execute(t, "backup", "export")
		require.NoError(t, err)
		assert.Contains(t, out, "Exported bibliotheca_backup_")

		out, err = execute(t, "backup", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "bibliotheca_backup_")
	})

	t.Run("Remove a book", func(t *testing.T) {
		out, err := execute(t, "books", "remove", bookPath)
		require.NoError(t, err)
		assert.Contains(t, out, "Removed")

		out, err = execute(t, "books", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No books found in the library.")
	})
}
