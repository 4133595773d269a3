package main

import (
	"context"

	"github.com/kukmin84ai/bibliotheca"
	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server communicates over stdio using JSON-RPC, logs go to stderr.

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "bibliotheca": {
        "command": "/path/to/bibliotheca",
        "args": ["serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var indexCmd = &cobra.Command{
	Use:   "index [hnsw|ivfflat]",
	Short: "Rebuild the vector index",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().Int("m", 16, "HNSW max connections per layer")
	indexCmd.Flags().Int("ef-construction", 64, "HNSW candidate list size")
	indexCmd.Flags().Int("lists", 100, "IVFFlat list count")
	rootCmd.AddCommand(serveCmd, indexCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	stderrLogs := func(settings *helper.Settings) {
		settings.LogOutput = helper.LogOutputStderr
	}

	return withLibrary(cmd, stderrLogs, func(ctx context.Context, library *bibliotheca.Library) error {
		server, err := library.MCPServer()
		if err != nil {
			return err
		}
		return server.Serve(ctx)
	})
}

func runIndex(cmd *cobra.Command, args []string) error {
	params := map[string]int{}
	for flag, key := range map[string]string{"m": "m", "ef-construction": "ef_construction", "lists": "lists"} {
		value, err := cmd.Flags().GetInt(flag)
		if err != nil {
			return err
		}
		params[key] = value
	}

	return withLibrary(cmd, nil, func(ctx context.Context, library *bibliotheca.Library) error {
		if err := library.ChangeIndexType(ctx, args[0], params); err != nil {
			return err
		}
		cmd.Printf("Rebuilt %s index\n", args[0])
		return nil
	})
}
