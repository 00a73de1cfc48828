package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/faucetdb/sketch/internal/connector"
)

// YAMLConfig represents the top-level sketch configuration file.
type YAMLConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Introspect IntrospectConfig `yaml:"introspect"`
	MCP        MCPConfig        `yaml:"mcp"`
	Logging    LoggingConfig    `yaml:"logging"`
	Seed       SeedConfig       `yaml:"seed"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	MaxBodySize     string     `yaml:"max_body_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	Title           string     `yaml:"title"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// IntrospectConfig controls how live databases are read into the canvas.
type IntrospectConfig struct {
	Schemas         []string `yaml:"schemas"`
	ExcludeSchemas  []string `yaml:"exclude_schemas"`
	ConnectTimeout  string   `yaml:"connect_timeout"`
	Timeout         string   `yaml:"timeout"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	ConnMaxLifetime string   `yaml:"conn_max_lifetime"`
	RateLimit       int      `yaml:"rate_limit"` // requests per minute per IP
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	// Enabled mounts the streamable HTTP endpoint at /mcp in `sketch serve`.
	Enabled   bool   `yaml:"enabled"`
	Transport string `yaml:"transport"` // stdio or http, for `sketch mcp`
	Addr      string `yaml:"addr"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SeedConfig names the initial canvas content. File is a schema document
// (introspection document or OpenAPI 3); DSN is a database to introspect.
// File wins when both are set.
type SeedConfig struct {
	File string `yaml:"file"`
	DSN  string `yaml:"dsn"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
// Fields missing from the file keep their defaults.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxBodySize:     "10MB",
			ShutdownTimeout: "30s",
			Title:           "Sketch Schema",
			CORS: CORSConfig{
				Origins: []string{"*"},
				Methods: []string{"GET", "POST", "PUT", "DELETE"},
			},
		},
		Introspect: IntrospectConfig{
			ConnectTimeout:  "10s",
			Timeout:         "60s",
			MaxOpenConns:    5,
			ConnMaxLifetime: "5m",
			RateLimit:       10,
		},
		MCP: MCPConfig{
			Enabled:   true,
			Transport: "stdio",
			Addr:      ":3001",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every value that is parsed later, so a bad file fails at
// load time rather than at first use.
func (c *YAMLConfig) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port", strconv.Itoa(c.Server.Port))
	}
	if _, err := ParseSize(c.Server.MaxBodySize); err != nil {
		return invalid("server.max_body_size", c.Server.MaxBodySize)
	}
	durations := map[string]string{
		"server.shutdown_timeout":      c.Server.ShutdownTimeout,
		"introspect.connect_timeout":   c.Introspect.ConnectTimeout,
		"introspect.timeout":           c.Introspect.Timeout,
		"introspect.conn_max_lifetime": c.Introspect.ConnMaxLifetime,
	}
	for field, v := range durations {
		if _, err := ParseDuration(v); err != nil {
			return invalid(field, v)
		}
	}
	switch strings.ToLower(c.MCP.Transport) {
	case "", "stdio", "http":
	default:
		return invalid("mcp.transport", c.MCP.Transport)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return invalid("logging.format", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", c.Logging.Level)
	}
	return nil
}

// ParseDuration parses a Go duration string. Empty means zero.
func ParseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return time.ParseDuration(strings.TrimSpace(s))
}

var sizeUnits = []struct {
	suffix string
	mult   int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseSize parses a byte size such as "10MB", "512KB" or "1024". Empty
// means zero.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	mult := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// Connection returns the introspection settings as connection defaults. The
// DSN and driver are filled in per request. Values are assumed validated.
func (c IntrospectConfig) Connection() connector.ConnectionConfig {
	connectTimeout, _ := ParseDuration(c.ConnectTimeout)
	lifetime, _ := ParseDuration(c.ConnMaxLifetime)
	return connector.ConnectionConfig{
		Schemas:         c.Schemas,
		ExcludeSchemas:  c.ExcludeSchemas,
		ConnectTimeout:  connectTimeout,
		MaxOpenConns:    c.MaxOpenConns,
		ConnMaxLifetime: lifetime,
	}
}
