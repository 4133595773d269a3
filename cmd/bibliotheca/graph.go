package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/kukmin84ai/bibliotheca"
	"github.com/kukmin84ai/bibliotheca/core/graph"
	"github.com/spf13/cobra"
)

var (
	graphRelationshipType string
	graphDepth            int
	graphClearConfirm     bool
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Knowledge graph commands",
	Long:  `Inspect and maintain the knowledge graph of concepts, people and books.`,
}

var graphStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entity and relationship counts",
	Args:  cobra.NoArgs,
	RunE:  runGraphStats,
}

var graphSearchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Look up an entity and its relationships",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphSearch,
}

var graphNeighborsCmd = &cobra.Command{
	Use:   "neighbors [name]",
	Short: "Show the neighborhood of an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphNeighbors,
}

var graphRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove an entity and its relationships",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphRemove,
}

var graphClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entity and relationship",
	Args:  cobra.NoArgs,
	RunE:  runGraphClear,
}

var graphMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move legacy graph files into the default subject",
	Long: `Moves graph files stored directly in the graph store directory into the
"default" subject folder. Files already present there are kept.`,
	Args: cobra.NoArgs,
	RunE: runGraphMigrate,
}

func init() {
	graphSearchCmd.Flags().StringVarP(&graphRelationshipType, "type", "t", "", "only show relationships of this type")
	graphNeighborsCmd.Flags().IntVarP(&graphDepth, "depth", "d", 1, "number of hops")
	graphClearCmd.Flags().BoolVar(&graphClearConfirm, "yes", false, "confirm deleting the whole graph")
	graphCmd.AddCommand(graphStatsCmd, graphSearchCmd, graphNeighborsCmd, graphRemoveCmd, graphClearCmd, graphMigrateCmd)
	rootCmd.AddCommand(graphCmd)
}

func runGraphStats(cmd *cobra.Command, _ []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		stats, err := library.Graph.Stats(ctx)
		if err != nil {
			return fmt.Errorf("graph stats failed: %w", err)
		}
		return printJSON(cmd, stats)
	})
}

func runGraphSearch(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		entity, err := library.Graph.SearchEntity(ctx, args[0])
		if err != nil {
			return fmt.Errorf("graph search failed: %w", err)
		}
		if entity == nil {
			cmd.Printf("Entity '%s' not found\n", args[0])
			return nil
		}

		rels, err := library.Graph.GetRelationships(ctx, entity.Name, graphRelationshipType)
		if err != nil {
			return fmt.Errorf("graph search failed: %w", err)
		}

		cmd.Printf("%s [%s]\n", entity.Name, entity.Type)
		if entity.Description != "" {
			cmd.Printf("  %s\n", entity.Description)
		}
		for _, rel := range rels {
			cmd.Printf("  %s -[%s]-> %s\n", rel.Source, rel.Type, rel.Target)
		}
		return nil
	})
}

func runGraphNeighbors(cmd *cobra.Command, args []string) error {
	if graphDepth < 1 {
		return fmt.Errorf("depth must be at least 1")
	}

	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		neighborhood, err := library.Graph.Neighbors(ctx, args[0], graphDepth)
		if errors.Is(err, graph.ErrEntityNotFound) {
			cmd.Printf("Entity '%s' not found\n", args[0])
			return nil
		}
		if err != nil {
			return fmt.Errorf("graph neighbors failed: %w", err)
		}
		return printJSON(cmd, neighborhood)
	})
}

func runGraphRemove(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		removed, err := library.Graph.RemoveEntity(ctx, args[0])
		if err != nil {
			return fmt.Errorf("graph remove failed: %w", err)
		}
		if !removed {
			cmd.Printf("Entity '%s' not found\n", args[0])
			return nil
		}
		cmd.Printf("Removed %s\n", args[0])
		return nil
	})
}

func runGraphClear(cmd *cobra.Command, _ []string) error {
	if !graphClearConfirm {
		return fmt.Errorf("refusing to clear the graph without --yes")
	}

	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		if err := library.Graph.Clear(ctx); err != nil {
			return fmt.Errorf("graph clear failed: %w", err)
		}
		cmd.Println("Cleared the knowledge graph.")
		return nil
	})
}

func runGraphMigrate(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	moved, err := graph.MigrateLegacy(settings.GraphStoreDir, settings.Logger())
	if err != nil {
		return fmt.Errorf("graph migration failed: %w", err)
	}
	if len(moved) == 0 {
		cmd.Println("Nothing to migrate.")
		return nil
	}
	for _, file := range moved {
		cmd.Printf("Moved %s\n", file)
	}
	return nil
}
