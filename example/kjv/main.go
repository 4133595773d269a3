package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/kukmin84ai/bibliotheca"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const kjvRepoURL = "https://raw.githubusercontent.com/arleym/kjv-markdown/master"

// List of KJV books to download
var kjvBooks = []string{
	"01 - Genesis - KJV.md",
	// "02 - Exodus - KJV.md", "03 - Leviticus - KJV.md",
	// "04 - Numbers - KJV.md", "05 - Deuteronomy - KJV.md",
	// "06 - Joshua - KJV.md", "07 - Judges - KJV.md", "08 - Ruth - KJV.md",
	// "09 - 1 Samuel - KJV.md", "10 - 2 Samuel - KJV.md",
	// "11 - 1 Kings - KJV.md", "12 - 2 Kings - KJV.md",
	// "13 - 1 Chronicles - KJV.md", "14 - 2 Chronicles - KJV.md",
	// "15 - Ezra - KJV.md", "16 - Nehemiah - KJV.md", "17 - Esther - KJV.md",
	// "18 - Job - KJV.md", "19 - Psalms - KJV.md",
	// "20 - Proverbs - KJV.md", "21 - Ecclesiastes - KJV.md",
	// "22 - The Song of Solomon - KJV.md", "23 - Isaiah - KJV.md",
	// "24 - Jeremiah - KJV.md", "25 - Lamentations - KJV.md",
	// "26 - Ezekiel - KJV.md", "27 - Daniel - KJV.md",
	// "28 - Hosea - KJV.md", "29 - Joel - KJV.md", "30 - Amos - KJV.md",
	// "31 - Obadiah - KJV.md", "32 - Jonah - KJV.md",
	// "33 - Micah - KJV.md", "34 - Nahum - KJV.md", "35 - Habakkuk - KJV.md",
	// "36 - Zephaniah - KJV.md", "37 - Haggai - KJV.md",
	// "38 - Zechariah - KJV.md", "39 - Malachi - KJV.md",
	// "40 - Matthew - KJV.md", "41 - Mark - KJV.md", "42 - Luke - KJV.md",
	// "43 - John - KJV.md", "44 - Acts - KJV.md", "45 - Romans - KJV.md",
	// "46 - 1 Corinthians - KJV.md", "47 - 2 Corinthians - KJV.md",
	// "48 - Galatians - KJV.md", "49 - Ephesians - KJV.md",
	// "50 - Philippians - KJV.md", "51 - Colossians - KJV.md",
	// "52 - 1 Thessalonians - KJV.md", "53 - 2 Thessalonians - KJV.md",
	// "54 - 1 Timothy - KJV.md", "55 - 2 Timothy - KJV.md",
	// "56 - Titus - KJV.md", "57 - Philemon - KJV.md", "58 - Hebrews - KJV.md",
	// "59 - James - KJV.md", "60 - 1 Peter - KJV.md",
	// "61 - 2 Peter - KJV.md", "62 - 1 John - KJV.md", "63 - 2 John - KJV.md",
	// "64 - 3 John - KJV.md", "65 - Jude - KJV.md", "66 - Revelation - KJV.md",
}

// bookFileName matches "01 - Genesis - KJV.md".
var bookFileName = regexp.MustCompile(`^\d+ - (.+) - KJV\.md$`)

// startPostgresContainer starts a PostgreSQL container whose data directory
// is mounted from ./data, so the library survives between runs.
func startPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	// Create data directory if it doesn't exist
	dataDir := "./data"
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create data directory: %w", err)
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get absolute path for data directory: %w", err)
	}

	// Check if database already exists (data directory has PG_VERSION file)
	pgVersionFile := filepath.Join(absDataDir, "PG_VERSION")
	_, err = os.Stat(pgVersionFile)
	dbExists := err == nil

	// When database already exists, PostgreSQL doesn't re-initialize,
	// so the ready message only appears once instead of twice
	waitOccurrences := 2
	if dbExists {
		waitOccurrences = 1
		fmt.Printf("Using existing persistent database in: %s\n", absDataDir)
	} else {
		fmt.Printf("Creating new persistent database in: %s\n", absDataDir)
	}

	options := []testcontainers.ContainerCustomizer{
		postgres.WithDatabase("database"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(waitOccurrences),
		),
		testcontainers.WithHostConfigModifier(func(hc *container.HostConfig) {
			hc.Mounts = append(hc.Mounts, mount.Mount{
				Type:   mount.TypeBind,
				Source: absDataDir,
				Target: "/var/lib/postgresql/data",
			})
		}),
	}

	pgContainer, err := postgres.Run(
		ctx,
		"timescale/timescaledb:latest-pg17",
		options...,
	)
	if err != nil {
		return nil, "", fmt.Errorf("error starting postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("error getting connection string: %w", err)
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return nil, "", fmt.Errorf("error parsing connection string: %v", err)
	}

	return pgContainer.Terminate, u.Port(), nil
}

// downloadBook stores bookName as "King James Version - <Book>.md" so the
// manifest picks up author and title from the file name. Existing files are
// kept, the ingester skips them when their hash did not change.
func downloadBook(bookName string, outputDir string) (string, error) {
	match := bookFileName.FindStringSubmatch(bookName)
	if match == nil {
		return "", fmt.Errorf("unexpected book name %q", bookName)
	}
	outputPath := filepath.Join(outputDir, fmt.Sprintf("King James Version - %s.md", match[1]))
	if _, err := os.Stat(outputPath); err == nil {
		return outputPath, nil
	}

	// URL-encode the filename to handle spaces
	downloadURL := fmt.Sprintf("%s/%s", kjvRepoURL, url.PathEscape(bookName))
	resp, err := http.Get(downloadURL)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", bookName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", bookName, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", bookName, err)
	}

	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", bookName, err)
	}

	return outputPath, nil
}

func main() {
	teardown, dbPort, err := startPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	settings := helper.DefaultSettings()
	settings.GraphStoreDir = "./graph_store"

	library, err := bibliotheca.NewLibrary(dbConfig, settings, nil)
	if err != nil {
		log.Fatalf("Failed to create library: %v", err)
	}
	defer library.Close()

	booksDir := "./books"
	if err := os.MkdirAll(booksDir, 0o750); err != nil {
		log.Fatalf("Failed to create books directory: %v", err)
	}

	fmt.Println("Downloading KJV books from GitHub...")
	for i, bookName := range kjvBooks {
		fmt.Printf("Downloading %s (%d/%d)...\n", bookName, i+1, len(kjvBooks))
		if _, err := downloadBook(bookName, booksDir); err != nil {
			log.Printf("Warning: %v, skipping...", err)
		}
	}

	ctx := context.Background()
	report, err := library.Ingest(ctx, booksDir, false)
	if err != nil {
		log.Fatalf("Failed to ingest: %v", err)
	}

	fmt.Printf("\n✓ KJV Bible Status:\n")
	fmt.Printf("  - Processed: %d books (%d chunks)\n", report.Processed, report.Chunks)
	fmt.Printf("  - Skipped (unchanged): %d books\n", report.Skipped)
	fmt.Printf("  - Failed: %d books\n\n", report.Failed)

	query := "What did Moses do on the mountain?"
	fmt.Printf("Searching: %q\n", query)
	response, err := library.Query(ctx, query, model.QueryConfig{TopK: 5, UseGraph: true})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	printSources(response.Sources)

	query = "In the beginning God created the heaven and the earth"
	fmt.Printf("\nDense search in Genesis: %q\n", query)
	response, err = library.Query(ctx, query, model.QueryConfig{
		TopK:    3,
		Mode:    model.RetrievalModeDense,
		Filters: model.Metadata{"book_title": "Genesis"},
	})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	printSources(response.Sources)

	toc, err := library.Tools.TableOfContents(ctx, "Genesis")
	if err != nil {
		log.Fatalf("Failed to get table of contents: %v", err)
	}
	fmt.Printf("\nGenesis has %d chapters in %d chunks\n", len(toc.Chapters), toc.TotalChunks)
}

func printSources(sources []*model.SearchResult) {
	if len(sources) == 0 {
		fmt.Println("No results found.")
		return
	}
	for i, source := range sources {
		fmt.Printf("\n%d. [%.3f] %s > %s\n", i+1, source.Score, source.BookTitle, source.Chapter)
		fmt.Printf("   %.200s\n", source.Text)
	}
}
