package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/sketch/internal/config"
	"github.com/faucetdb/sketch/internal/connector"
	"github.com/faucetdb/sketch/internal/connector/postgres"
	"github.com/faucetdb/sketch/internal/model"
	"github.com/faucetdb/sketch/internal/openapi"
)

// loadConfig builds the effective configuration: defaults, then the config
// file found by initConfig, then SKETCH_* environment variables, then any
// flags of cmd named in flagKeys (flag name to config key).
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.LoadYAMLConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// A separate viper instance sees only env and flags, so file values
	// (already expanded by LoadYAMLConfig) are not read twice.
	v := viper.New()
	v.SetEnvPrefix("SKETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if cmd != nil {
		for flag, key := range flagKeys {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}
	applyOverrides(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies every key set in v onto cfg.
func applyOverrides(cfg *config.YAMLConfig, v *viper.Viper) {
	strs := map[string]*string{
		"server.host":                  &cfg.Server.Host,
		"server.title":                 &cfg.Server.Title,
		"server.max_body_size":         &cfg.Server.MaxBodySize,
		"server.shutdown_timeout":      &cfg.Server.ShutdownTimeout,
		"introspect.connect_timeout":   &cfg.Introspect.ConnectTimeout,
		"introspect.timeout":           &cfg.Introspect.Timeout,
		"introspect.conn_max_lifetime": &cfg.Introspect.ConnMaxLifetime,
		"mcp.transport":                &cfg.MCP.Transport,
		"mcp.addr":                     &cfg.MCP.Addr,
		"logging.level":                &cfg.Logging.Level,
		"logging.format":               &cfg.Logging.Format,
		"seed.file":                    &cfg.Seed.File,
		"seed.dsn":                     &cfg.Seed.DSN,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	ints := map[string]*int{
		"server.port":               &cfg.Server.Port,
		"introspect.max_open_conns": &cfg.Introspect.MaxOpenConns,
		"introspect.rate_limit":     &cfg.Introspect.RateLimit,
	}
	for key, dst := range ints {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	// Slices come from space separated env values or repeated flags.
	slices := map[string]*[]string{
		"server.cors.origins":        &cfg.Server.CORS.Origins,
		"introspect.schemas":         &cfg.Introspect.Schemas,
		"introspect.exclude_schemas": &cfg.Introspect.ExcludeSchemas,
	}
	for key, dst := range slices {
		if v.IsSet(key) {
			*dst = v.GetStringSlice(key)
		}
	}

	if v.IsSet("mcp.enabled") {
		cfg.MCP.Enabled = v.GetBool("mcp.enabled")
	}
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// stays free for command output and the MCP stdio transport.
func newLogger(cfg config.LoggingConfig, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// loadSeed returns the initial canvas named by the seed config: a schema
// document file, or a database to introspect. An empty config yields an
// empty canvas.
func loadSeed(ctx context.Context, cfg *config.YAMLConfig, logger *slog.Logger) (model.Snapshot, error) {
	switch {
	case cfg.Seed.File != "":
		data, err := os.ReadFile(cfg.Seed.File)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		snap, err := openapi.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode seed file %s: %w", cfg.Seed.File, err)
		}
		logger.Info("canvas seeded from file", "file", cfg.Seed.File, "tables", len(snap))
		return snap, nil

	case cfg.Seed.DSN != "":
		timeout, _ := config.ParseDuration(cfg.Introspect.Timeout)
		doc, err := introspect(ctx, cfg.Seed.DSN, cfg.Introspect.Connection(), timeout)
		if err != nil {
			return nil, fmt.Errorf("introspect seed database: %w", err)
		}
		snap := openapi.FromDocument(doc)
		logger.Info("canvas seeded from database", "dsn", connector.RedactDSN(cfg.Seed.DSN), "tables", len(snap))
		return snap, nil
	}
	return model.Snapshot{}, nil
}

// introspect reads the database at dsn with the given connection defaults.
func introspect(ctx context.Context, dsn string, base connector.ConnectionConfig, timeout time.Duration) (model.Document, error) {
	driver, err := connector.DetectDriver(dsn)
	if err != nil {
		return model.Document{}, err
	}
	cfg := base
	cfg.Driver = driver
	cfg.DSN = dsn

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return postgres.New().Introspect(ctx, cfg)
}

// withPassword sets the password on a Postgres DSN, in URL or keyword form.
func withPassword(dsn, password string) (string, error) {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(connector.SanitizeDSN(connector.DriverPostgres, dsn))
		if err != nil {
			return "", fmt.Errorf("parse connection string: %w", err)
		}
		user := ""
		if u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, password)
		return u.String(), nil
	}
	quoted := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(password)
	return strings.TrimSpace(dsn) + " password='" + quoted + "'", nil
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
