package bibliotheca

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kukmin84ai/bibliotheca/core/pipeline"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

// testEmbedder creates a simple deterministic embedder for testing
func testEmbedder(dimension int) pipeline.Embedder {
	return pipeline.NewFuncEmbedder(func(text string) ([]float32, error) {
		embedding := make([]float32, dimension)
		for i := 0; i < dimension; i++ {
			embedding[i] = float32((len(text)+i)%100+1) / 100.0
		}
		return embedding, nil
	}, dimension)
}

func testSettings(t *testing.T) *helper.Settings {
	settings := helper.DefaultSettings()
	settings.EmbeddingDimension = testDim
	settings.GraphStoreDir = filepath.Join(t.TempDir(), "graph_store")
	settings.BackupDir = filepath.Join(t.TempDir(), "backups")
	settings.LogLevel = "error"
	return settings
}

func initLibrary(t *testing.T, settings *helper.Settings) *Library {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")

	library, err := NewLibrary(dbConfig, settings, testEmbedder(testDim))
	require.NoError(t, err, "failed to create library")
	require.NotNil(t, library, "expected library to be non-nil")

	t.Cleanup(func() {
		_ = library.Close()
	})

	return library
}

func writeBook(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewLibrary(t *testing.T) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err)

	t.Run("Valid call NewLibrary", func(t *testing.T) {
		library, err := NewLibrary(dbConfig, testSettings(t), testEmbedder(testDim))
		require.NoError(t, err, "Expected NewLibrary to not return an error")
		require.NotNil(t, library, "Expected NewLibrary to return a non-nil instance")
		assert.NotNil(t, library.DB, "Expected library to have a database instance")
		assert.NotNil(t, library.Chunks, "Expected library to have chunks handler")
		assert.NotNil(t, library.Books, "Expected library to have books handler")
		assert.NotNil(t, library.Entities, "Expected library to have entities handler")
		assert.NotNil(t, library.Relationships, "Expected library to have relationships handler")
		assert.NotNil(t, library.Graph, "Expected library to have a graph store")
		assert.NotNil(t, library.Engine, "Expected library to have a query engine")
		assert.NotNil(t, library.Ingester, "Expected library to have an ingester")

		err = library.Close()
		assert.NoError(t, err, "Expected Close to not return an error")
	})

	t.Run("Embedder dimension must match the settings", func(t *testing.T) {
		_, err := NewLibrary(dbConfig, testSettings(t), testEmbedder(4))
		assert.Error(t, err, "Expected error for mismatching dimension")
	})

	t.Run("Invalid settings", func(t *testing.T) {
		settings := testSettings(t)
		settings.ChunkOverlap = settings.ChunkSizeSearch

		_, err := NewLibrary(dbConfig, settings, testEmbedder(testDim))
		assert.Error(t, err, "Expected error for invalid settings")
	})

	t.Run("Library with nil database handles Close gracefully", func(t *testing.T) {
		library := &Library{}
		assert.NoError(t, library.Close(), "Expected Close to handle nil DB gracefully")
	})
}

func TestLibraryIngestAndQuery(t *testing.T) {
	library := initLibrary(t, testSettings(t))
	ctx := context.Background()

	dir := t.TempDir()
	text := "# Grounding\n\n" + strings.Repeat("Single point grounding avoids ground loops. ", 40) +
		"\n\n# Shielding\n\n" + strings.Repeat("Shielding effectiveness depends on apertures. ", 40)
	path := writeBook(t, dir, "Henry Ott - EMC Engineering (2009, Wiley).md", text)

	t.Run("Ingest stores the book", func(t *testing.T) {
		report, err := library.Ingest(ctx, dir, false)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Processed)
		assert.Greater(t, report.Chunks, 0)

		book, err := library.Books.SelectBookByPath(ctx, path)
		require.NoError(t, err)
		require.NotNil(t, book)
		assert.Equal(t, "EMC Engineering", book.Title)
		assert.Equal(t, model.BookStatusDone, book.Status)
	})

	t.Run("Query returns sources of the book", func(t *testing.T) {
		response, err := library.Query(ctx, "ground loops", model.QueryConfig{Mode: model.RetrievalModeHybrid})

		require.NoError(t, err)
		require.NotEmpty(t, response.Sources)
		assert.LessOrEqual(t, len(response.Sources), library.Settings.DefaultTopK)
		for _, source := range response.Sources {
			assert.Equal(t, "EMC Engineering", source.BookTitle)
			assert.Equal(t, path, source.SourceFile)
		}
	})

	t.Run("Filters restrict the search", func(t *testing.T) {
		response, err := library.Query(ctx, "ground loops", model.QueryConfig{
			Filters: model.Metadata{model.MetadataBookTitle: "Unknown Book"},
		})

		require.NoError(t, err)
		assert.Empty(t, response.Sources)
	})

	t.Run("Table of contents lists the chapters", func(t *testing.T) {
		toc, err := library.Tools.TableOfContents(ctx, "EMC Engineering")

		require.NoError(t, err)
		var chapters []string
		for _, chapter := range toc.Chapters {
			chapters = append(chapters, chapter.Chapter)
		}
		assert.Equal(t, []string{"Grounding", "Shielding"}, chapters)
	})

	t.Run("Concept queries use the knowledge graph", func(t *testing.T) {
		require.NoError(t, library.Graph.AddTriplets(ctx, []*model.Triplet{
			{Subject: "Shielding", Predicate: model.RelationshipRelatedTo, Object: "Apertures", SourceFile: path},
		}))

		response, err := library.Query(ctx, "Explain Shielding", model.DefaultQueryConfig())

		require.NoError(t, err)
		assert.Equal(t, model.QueryTypeConceptExplanation, response.QueryType)
		found := false
		for _, source := range response.Sources {
			if strings.Contains(source.Text, "Shielding --[RELATED_TO]--> Apertures") {
				found = true
			}
		}
		assert.True(t, found, "Expected a knowledge graph source")
	})

	t.Run("Backup exports the graph store", func(t *testing.T) {
		manager, err := library.Backup(ctx)
		require.NoError(t, err)

		prefix, err := manager.Export(ctx)
		require.NoError(t, err)

		manifest, err := manager.Manifest(ctx, prefix)
		require.NoError(t, err)
		assert.Contains(t, manifest.GraphFiles, "default/entities.json")
		assert.Equal(t, 1, manifest.Books)
	})
}

func TestLibraryDatabaseGraph(t *testing.T) {
	settings := testSettings(t)
	settings.GraphBackend = helper.GraphBackendDatabase
	library := initLibrary(t, settings)
	ctx := context.Background()

	require.NoError(t, library.Graph.Clear(ctx))
	require.NoError(t, library.Graph.AddTriplets(ctx, []*model.Triplet{
		{Subject: "Faraday Cage", Predicate: model.RelationshipRelatedTo, Object: "Shielding"},
	}))

	entity, err := library.Graph.SearchEntity(ctx, "faraday")
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, "Faraday Cage", entity.Name)

	stats, err := library.Graph.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EntityCount)
	assert.Equal(t, 1, stats.RelationshipCount)
}

func TestLibraryMCPServer(t *testing.T) {
	library := initLibrary(t, testSettings(t))

	server, err := library.MCPServer()
	require.NoError(t, err)
	assert.NotNil(t, server.MCP())
}
