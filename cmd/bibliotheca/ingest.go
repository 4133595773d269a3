package main

import (
	"context"
	"fmt"

	"github.com/kukmin84ai/bibliotheca"
	"github.com/spf13/cobra"
)

var (
	ingestForce bool
	ingestWatch bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Ingest books from a directory",
	Long: `Extracts, chunks and embeds every supported file below the directory.

Files whose content hash did not change since the last run are skipped unless
--force is given. With --watch the directory is kept in sync afterwards until
the command is interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-ingest unchanged files")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "watch the directory after ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := args[0]

	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		report, err := library.Ingest(ctx, dir, ingestForce)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		cmd.Printf("Processed: %d, Skipped: %d, Failed: %d, Chunks: %d\n", report.Processed, report.Skipped, report.Failed, report.Chunks)

		if !ingestWatch {
			return nil
		}
		cmd.Printf("Watching %s for changes...\n", dir)
		return library.Watch(ctx, dir)
	})
}
