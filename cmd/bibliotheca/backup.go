package main

import (
	"context"
	"fmt"

	"github.com/kukmin84ai/bibliotheca"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup commands",
	Long: `Export and restore snapshots of the knowledge graph and the book manifest.

Snapshots are written to the local backup directory, or to S3 when a bucket is
configured.`,
}

var backupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a new snapshot",
	Args:  cobra.NoArgs,
	RunE:  runBackupExport,
}

var backupImportCmd = &cobra.Command{
	Use:   "import [snapshot]",
	Short: "Restore the graph files of a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupImport,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

var backupShowCmd = &cobra.Command{
	Use:   "show [snapshot]",
	Short: "Show the manifest of a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupShow,
}

func init() {
	backupCmd.AddCommand(backupExportCmd, backupImportCmd, backupListCmd, backupShowCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupExport(cmd *cobra.Command, _ []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		manager, err := library.Backup(ctx)
		if err != nil {
			return err
		}
		prefix, err := manager.Export(ctx)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		cmd.Printf("Exported %s\n", prefix)
		return nil
	})
}

func runBackupImport(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		manager, err := library.Backup(ctx)
		if err != nil {
			return err
		}
		restored, err := manager.Import(ctx, args[0])
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		cmd.Printf("Restored %d graph files from %s\n", len(restored), args[0])
		return nil
	})
}

func runBackupList(cmd *cobra.Command, _ []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		manager, err := library.Backup(ctx)
		if err != nil {
			return err
		}
		snapshots, err := manager.Snapshots(ctx)
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		if len(snapshots) == 0 {
			cmd.Println("No snapshots found.")
			return nil
		}
		for _, snapshot := range snapshots {
			cmd.Println(snapshot)
		}
		return nil
	})
}

func runBackupShow(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		manager, err := library.Backup(ctx)
		if err != nil {
			return err
		}
		manifest, err := manager.Manifest(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		return printJSON(cmd, manifest)
	})
}
