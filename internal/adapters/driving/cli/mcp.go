package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server is read-only. It exposes tools to list fragments, training
items, annotations and fine-tuning jobs, and resources for the current
selection, saved items, per-item annotation exports and job logs.

By default, the server communicates over stdio using JSON-RPC and can be
used with any MCP-compatible AI assistant.

Use --port to start an HTTP server instead. The MCP endpoint is served at
/mcp and a liveness probe at /healthz.

Examples:
  # Stdio mode (default)
  privatetune mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  privatetune mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "privatetune": {
        "command": "/path/to/privatetune",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Fragments:  fragmentService,
		Items:      itemService,
		Dataset:    datasetService,
		Generation: generationService,
		Monitor:    monitorService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s/mcp\n", addr)
		return server.RunHTTP(commandContext(cmd), addr)
	}

	return server.Run(commandContext(cmd))
}
