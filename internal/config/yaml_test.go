package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sketch.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAMLConfigOverridesDefaults(t *testing.T) {
	t.Setenv("SKETCH_TEST_DSN", "postgres://me:pw@db/app")

	path := writeFile(t, `
server:
  port: 9090
  cors:
    origins: ["http://localhost:5173"]
introspect:
  schemas: [public, billing]
  timeout: 2m
seed:
  dsn: ${SKETCH_TEST_DSN}
logging:
  format: json
`)
	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.ShutdownTimeout != "30s" {
		t.Errorf("unset server fields should keep defaults: %+v", cfg.Server)
	}
	if !reflect.DeepEqual(cfg.Server.CORS.Origins, []string{"http://localhost:5173"}) {
		t.Errorf("origins = %v", cfg.Server.CORS.Origins)
	}
	if cfg.Seed.DSN != "postgres://me:pw@db/app" {
		t.Errorf("env var not expanded: %q", cfg.Seed.DSN)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.MCP.Enabled || cfg.MCP.Transport != "stdio" {
		t.Errorf("mcp = %+v", cfg.MCP)
	}

	conn := cfg.Introspect.Connection()
	if !reflect.DeepEqual(conn.Schemas, []string{"public", "billing"}) {
		t.Errorf("schemas = %v", conn.Schemas)
	}
	if conn.ConnectTimeout != 10*time.Second || conn.ConnMaxLifetime != 5*time.Minute || conn.MaxOpenConns != 5 {
		t.Errorf("connection defaults = %+v", conn)
	}
}

func TestLoadYAMLConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"bad yaml", "server: [", false},
		{"bad port", "server:\n  port: 70000", true},
		{"bad size", "server:\n  max_body_size: lots", true},
		{"bad duration", "introspect:\n  timeout: soon", true},
		{"bad transport", "mcp:\n  transport: websocket", true},
		{"bad log format", "logging:\n  format: xml", true},
		{"bad log level", "logging:\n  level: loud", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAMLConfig(writeFile(t, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, ErrInvalidConfig); got != tt.invalid {
				t.Errorf("errors.Is(ErrInvalidConfig) = %v, want %v (%v)", got, tt.invalid, err)
			}
		})
	}

	if _, err := LoadYAMLConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sketch.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}
	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	want := DefaultYAMLConfig()
	if !reflect.DeepEqual(cfg.Server, want.Server) {
		t.Errorf("server = %+v, want %+v", cfg.Server, want.Server)
	}
	if cfg.MCP != want.MCP || cfg.Logging != want.Logging || cfg.Seed != want.Seed {
		t.Errorf("round trip mismatch: %+v", cfg)
	}
	if cfg.Introspect.Timeout != want.Introspect.Timeout || cfg.Introspect.RateLimit != want.Introspect.RateLimit {
		t.Errorf("introspect = %+v", cfg.Introspect)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"1024", 1024, false},
		{"10MB", 10 << 20, false},
		{"512kb", 512 << 10, false},
		{"2 GB", 2 << 30, false},
		{"64B", 64, false},
		{"-1MB", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) err = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if d, err := ParseDuration(""); err != nil || d != 0 {
		t.Errorf("ParseDuration(\"\") = %v, %v", d, err)
	}
	if d, err := ParseDuration(" 90s "); err != nil || d != 90*time.Second {
		t.Errorf("ParseDuration(90s) = %v, %v", d, err)
	}
	if _, err := ParseDuration("later"); err == nil {
		t.Error("expected an error")
	}
}
