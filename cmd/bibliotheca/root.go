package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kukmin84ai/bibliotheca"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/spf13/cobra"
)

var configPath string

// openLibrary opens the library for settings. Tests replace it.
var openLibrary = func(settings *helper.Settings) (*bibliotheca.Library, error) {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, err
	}
	return bibliotheca.NewLibrary(dbConfig, settings, nil)
}

var rootCmd = &cobra.Command{
	Use:   "bibliotheca",
	Short: "Personal knowledge base over scanned books",
	Long: `Bibliotheca ingests a directory of books into a searchable knowledge base.

Chunks are embedded and stored in PostgreSQL with pgvector, concepts and their
relationships go into a knowledge graph. The library can be queried from the
command line or served to AI assistants over MCP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings YAML file (BIBLIO_* environment variables override it)")
}

func loadSettings() (*helper.Settings, error) {
	settings, err := helper.LoadSettings(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

// withLibrary loads the settings, lets configure adjust them and runs fn
// with an open library.
func withLibrary(cmd *cobra.Command, configure func(*helper.Settings), fn func(ctx context.Context, library *bibliotheca.Library) error) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if configure != nil {
		configure(settings)
	}

	library, err := openLibrary(settings)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer library.Close()

	return fn(cmd.Context(), library)
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
