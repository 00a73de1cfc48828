package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faucetdb/sketch/internal/canvas"
	smcp "github.com/faucetdb/sketch/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the schema canvas
as tools for AI agents. Supports stdio (default) and HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for clients that launch it as a subprocess. The canvas lives as long
as the process.

In HTTP mode, the server listens on --addr with the Streamable HTTP transport.`,
		Example: `  sketch mcp                                # stdio mode
  sketch mcp --seed schema.json             # start from a saved schema
  sketch mcp --transport http --addr :3001  # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, map[string]string{
				"transport": "mcp.transport",
				"addr":      "mcp.addr",
				"seed":      "seed.file",
				"seed-dsn":  "seed.dsn",
			})
			if err != nil {
				return err
			}

			logger := newLogger(cfg.Logging, false)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			seed, err := loadSeed(ctx, cfg, logger)
			if err != nil {
				return err
			}

			editor := canvas.NewEditor(canvas.NewStore(seed), logger)
			mcpSrv := smcp.NewMCPServer(editor, logger, versionString())

			switch cfg.MCP.Transport {
			case "", "stdio":
				return mcpSrv.ServeStdio()
			case "http":
				return mcpSrv.ServeHTTP(cfg.MCP.Addr)
			default:
				return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", cfg.MCP.Transport)
			}
		},
	}

	cmd.Flags().String("transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().String("addr", ":3001", "HTTP listen address (only used with --transport http)")
	cmd.Flags().String("seed", "", "Schema document (introspection JSON or OpenAPI 3) to load at startup")
	cmd.Flags().String("seed-dsn", "", "Postgres database to introspect at startup")

	return cmd
}
