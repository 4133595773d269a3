package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kukmin84ai/bibliotheca"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

var books = map[string]string{
	"Henry Ott - EMC Engineering (2009, Wiley).md": `# Shielding

A shield works by reflection and absorption. Copper reflects electric fields
well, while steel absorbs low frequency magnetic fields.

# Filtering

Common mode chokes suppress conducted emissions on cables.`,
	"Eugene Hecht - Optics (2016, Pearson).md": `# Electromagnetic Theory

Light is an electromagnetic wave. Maxwell's equations describe how electric
and magnetic fields propagate through space and matter.

# Lenses

A thin lens focuses parallel rays into its focal point.`,
}

// facts seed the knowledge graph. With a Gemini API key configured the
// ingester extracts them from the chunks instead.
var facts = []*model.Triplet{
	{Subject: "Henry Ott", Predicate: model.RelationshipAuthoredBy, Object: "EMC Engineering"},
	{Subject: "EMI shielding", Predicate: model.RelationshipRelatedTo, Object: "Electromagnetic wave"},
	{Subject: "EMI shielding", Predicate: "USES", Object: "Copper"},
	{Subject: "Electromagnetic wave", Predicate: "DESCRIBED_BY", Object: "Maxwell's equations"},
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	workDir, err := os.MkdirTemp("", "bibliotheca-advanced-*")
	if err != nil {
		log.Fatalf("Failed to create work directory: %v", err)
	}
	defer os.RemoveAll(workDir)

	booksDir := filepath.Join(workDir, "books")
	if err := os.MkdirAll(booksDir, 0o750); err != nil {
		log.Fatalf("Failed to create books directory: %v", err)
	}
	for name, content := range books {
		if err := os.WriteFile(filepath.Join(booksDir, name), []byte(content), 0o600); err != nil {
			log.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	// Keep the graph in PostgreSQL next to the chunks
	settings := helper.DefaultSettings()
	settings.GraphBackend = helper.GraphBackendDatabase
	settings.BackupDir = filepath.Join(workDir, "backups")
	settings.GraphStoreDir = filepath.Join(workDir, "graph_store")

	library, err := bibliotheca.NewLibrary(dbConfig, settings, nil)
	if err != nil {
		log.Fatalf("Failed to create library: %v", err)
	}
	defer library.Close()

	ctx := context.Background()

	report, err := library.Ingest(ctx, booksDir, false)
	if err != nil {
		log.Fatalf("Failed to ingest: %v", err)
	}
	fmt.Printf("Processed %d books, stored %d chunks\n", report.Processed, report.Chunks)

	if err := library.Graph.AddTriplets(ctx, facts); err != nil {
		log.Fatalf("Failed to add triplets: %v", err)
	}
	stats, err := library.Graph.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to get graph stats: %v", err)
	}
	fmt.Printf("Graph: %d entities, %d relationships\n", stats.EntityCount, stats.RelationshipCount)

	// Concept queries are augmented with the graph around the concept
	queries := []string{
		"What is EMI shielding?",
		"Compare copper and steel shields",
	}
	for _, query := range queries {
		fmt.Printf("\nQuerying: %s\n", query)
		response, err := library.Query(ctx, query, model.QueryConfig{TopK: 4, UseGraph: true})
		if err != nil {
			log.Printf("Query error: %v", err)
			continue
		}
		fmt.Printf("Query type: %s\n", response.QueryType)
		for i, source := range response.Sources {
			fmt.Printf("  %d. [%.3f] %s: %.80s\n", i+1, source.Score, source.SourceFile, source.Text)
		}
	}

	neighborhood, err := library.Graph.Neighbors(ctx, "EMI shielding", 2)
	if err != nil {
		log.Fatalf("Failed to get neighborhood: %v", err)
	}
	fmt.Println("\nNeighborhood of EMI shielding:")
	for _, rel := range neighborhood.Relationships {
		fmt.Printf("  %s -[%s]-> %s\n", rel.Source, rel.Type, rel.Target)
	}

	// Dense retrieval restricted to one book
	config := model.QueryConfig{
		TopK:    2,
		Mode:    model.RetrievalModeDense,
		Filters: model.Metadata{"book_title": "Optics"},
	}
	response, err := library.Query(ctx, "How do fields propagate?", config)
	if err != nil {
		log.Fatalf("Dense query failed: %v", err)
	}
	fmt.Println("\nDense results in Optics:")
	for _, source := range response.Sources {
		fmt.Printf("  [%.3f] %s: %.80s\n", source.Score, source.Chapter, source.Text)
	}

	manager, err := library.Backup(ctx)
	if err != nil {
		log.Fatalf("Failed to create backup manager: %v", err)
	}
	snapshot, err := manager.Export(ctx)
	if err != nil {
		log.Fatalf("Failed to export snapshot: %v", err)
	}
	fmt.Printf("\nExported snapshot %s\n", snapshot)
}
