package cli

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docnav/internal/mcptools"
)

func newMCPCmd(g *globalFlags, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the document tools over MCP on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing
read_outline, read_chunk, read_range and apply_edits. Logs go to stderr.

Example client configuration:
  {
    "mcpServers": {
      "docnav": {
        "command": "/path/to/docnav",
        "args": ["mcp", "--db", "/path/to/docnav.db"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withEnv(cmd, func(e *env) error {
				srv := mcptools.NewServer(e.nav, version, e.log)
				e.log.Info("mcp server on stdio", "store", e.cfg.StoreBackend)
				return srv.Run(cmd.Context(), &mcp.StdioTransport{})
			})
		},
	}
}
