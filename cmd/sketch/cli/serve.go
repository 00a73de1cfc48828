package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/faucetdb/sketch/internal/canvas"
	"github.com/faucetdb/sketch/internal/config"
	"github.com/faucetdb/sketch/internal/connector/postgres"
	smcp "github.com/faucetdb/sketch/internal/mcp"
	"github.com/faucetdb/sketch/internal/server"
)

const banner = `
     _        _       _
 ___| | _____| |_ ___| |__
/ __| |/ / _ \ __/ __| '_ \
\__ \   <  __/ || (__| | | |
|___/_|\_\___|\__\___|_| |_|
`

func newServeCmd() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the canvas API server",
		Long: `Start the HTTP server that holds the schema canvas. The REST API lives under
/api/v1 and, unless disabled, the MCP Streamable HTTP endpoint is mounted at
/mcp so AI agents edit the same canvas.`,
		Example: `  sketch serve
  sketch serve --port 9000 --seed schema.json
  sketch serve --seed-dsn postgres://me@localhost/app --no-mcp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, map[string]string{
				"port":     "server.port",
				"host":     "server.host",
				"seed":     "seed.file",
				"seed-dsn": "seed.dsn",
			})
			if err != nil {
				return err
			}
			if noMCP, _ := cmd.Flags().GetBool("no-mcp"); noMCP {
				cfg.MCP.Enabled = false
			}
			return runServe(cmd.Context(), cfg, dev)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("seed", "", "Schema document (introspection JSON or OpenAPI 3) to load at startup")
	cmd.Flags().String("seed-dsn", "", "Postgres database to introspect at startup")
	cmd.Flags().Bool("no-mcp", false, "Do not mount the MCP endpoint at /mcp")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.YAMLConfig, dev bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Print(banner)
	fmt.Println()

	logger := newLogger(cfg.Logging, dev)

	seed, err := loadSeed(ctx, cfg, logger)
	if err != nil {
		return err
	}
	editor := canvas.NewEditor(canvas.NewStore(seed), logger)

	srvCfg, err := serverConfig(cfg)
	if err != nil {
		return err
	}

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpHandler = smcp.NewMCPServer(editor, logger, versionString()).Handler()
	}

	srv := server.New(srvCfg, editor, postgres.New(), mcpHandler, logger)

	fmt.Printf("→ Sketch %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ API:        http://%s:%d/api/v1/schema\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", srvCfg.Host, srvCfg.Port)
	if mcpHandler != nil {
		fmt.Printf("→ MCP:        http://%s:%d/mcp\n", srvCfg.Host, srvCfg.Port)
	}
	fmt.Printf("→ Tables:     %d\n", len(seed))
	fmt.Println()

	return srv.ListenAndServe()
}

// serverConfig maps the file configuration onto server.Config.
func serverConfig(cfg *config.YAMLConfig) (server.Config, error) {
	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Server.Host
	srvCfg.Port = cfg.Server.Port
	srvCfg.Title = cfg.Server.Title
	srvCfg.IntrospectRateLimit = cfg.Introspect.RateLimit
	srvCfg.Introspect = cfg.Introspect.Connection()
	if len(cfg.Server.CORS.Origins) > 0 {
		srvCfg.CORSOrigins = cfg.Server.CORS.Origins
	}
	if len(cfg.Server.CORS.Methods) > 0 {
		srvCfg.CORSMethods = cfg.Server.CORS.Methods
	}

	var err error
	if srvCfg.MaxBodySize, err = config.ParseSize(cfg.Server.MaxBodySize); err != nil {
		return srvCfg, err
	}
	if d, err := config.ParseDuration(cfg.Server.ShutdownTimeout); err != nil {
		return srvCfg, err
	} else if d > 0 {
		srvCfg.ShutdownTimeout = d
	}
	if srvCfg.IntrospectTimeout, err = config.ParseDuration(cfg.Introspect.Timeout); err != nil {
		return srvCfg, err
	}
	return srvCfg, nil
}
