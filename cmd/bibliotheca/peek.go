package main

import (
	"fmt"

	"github.com/kukmin84ai/bibliotheca"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/spf13/cobra"
)

var peekCmd = &cobra.Command{
	Use:   "peek [directory] [query]",
	Short: "Query a directory without storing it",
	Long: `Ingests the directory into an in-memory library and runs one query against
it. Nothing is written to the database or the knowledge graph.`,
	Args: cobra.ExactArgs(2),
	RunE: runPeek,
}

func init() {
	peekCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of sources (0 = configured default)")
	rootCmd.AddCommand(peekCmd)
}

// openScratch opens the in-memory library. Tests replace it.
var openScratch = func(settings *helper.Settings) (*bibliotheca.Scratch, error) {
	return bibliotheca.NewScratch(settings, nil)
}

func runPeek(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	scratch, err := openScratch(settings)
	if err != nil {
		return fmt.Errorf("failed to open scratch library: %w", err)
	}
	defer scratch.Close()

	ctx := cmd.Context()
	report, err := scratch.Ingest(ctx, args[0])
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Indexed %d books (%d chunks) in memory\n\n", report.Processed, report.Chunks)

	config := queryConfig()
	config.Filters = nil
	response, err := scratch.Query(ctx, args[1], config)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	printResponse(cmd, response)
	return nil
}
