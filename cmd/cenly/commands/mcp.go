// ABOUTME: MCP command starts the Model Context Protocol server
// ABOUTME: Lets LLM agents such as Claude ask Cenly questions over stdio
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/harper/cenly/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs Cenly as an MCP (Model Context Protocol) server on stdio, exposing
the ask, retrieve_context, get_session_history, list_sessions and
rebuild_index tools.`,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  cenly mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "cenly": {
  #       "command": "cenly",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
		Args: cobra.NoArgs,
		RunE: runMCP,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcp.NewServer(a, versionInfo.Version)
	a.Logger.Info("MCP server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
