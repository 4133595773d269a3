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

const sampleBook = `# Grounding

A single point ground keeps return currents away from sensitive circuits.
Ground loops form when two grounds sit at different potentials and a current
flows between them through the signal reference.

# Shielding

A shield works by reflection and absorption. Copper reflects electric fields
well, while steel absorbs low frequency magnetic fields. Apertures in a shield
limit its effectiveness more than the material itself.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	booksDir, err := os.MkdirTemp("", "bibliotheca-basic-*")
	if err != nil {
		log.Fatalf("Failed to create books directory: %v", err)
	}
	defer os.RemoveAll(booksDir)

	settings := helper.DefaultSettings()
	settings.GraphStoreDir = filepath.Join(booksDir, ".graph")

	// A nil embedder loads the configured hugot model
	library, err := bibliotheca.NewLibrary(dbConfig, settings, nil)
	if err != nil {
		log.Fatalf("Failed to create library: %v", err)
	}
	defer library.Close()

	bookPath := filepath.Join(booksDir, "Henry Ott - EMC Engineering (2009, Wiley).md")
	if err := os.WriteFile(bookPath, []byte(sampleBook), 0o600); err != nil {
		log.Fatalf("Failed to write book: %v", err)
	}

	ctx := context.Background()

	fmt.Println("Ingesting books...")
	report, err := library.Ingest(ctx, booksDir, false)
	if err != nil {
		log.Fatalf("Failed to ingest: %v", err)
	}
	fmt.Printf("Processed %d books, stored %d chunks\n", report.Processed, report.Chunks)

	queryText := "Why do ground loops form?"
	fmt.Printf("\nQuerying: %s\n", queryText)

	response, err := library.Query(ctx, queryText, model.DefaultQueryConfig())
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Query type: %s\n", response.QueryType)
	for i, source := range response.Sources {
		fmt.Printf("\n%d. [%.3f] %s > %s\n", i+1, source.Score, source.BookTitle, source.Chapter)
		fmt.Printf("   %s\n", source.Text)
	}

	toc, err := library.Tools.TableOfContents(ctx, "EMC Engineering")
	if err != nil {
		log.Fatalf("Failed to get table of contents: %v", err)
	}
	fmt.Printf("\nTable of contents of %s:\n", toc.BookTitle)
	for _, chapter := range toc.Chapters {
		fmt.Printf("  - %s\n", chapter.Chapter)
	}
}
