package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/sketch/internal/ddl"
	"github.com/faucetdb/sketch/internal/model"
	"github.com/faucetdb/sketch/internal/openapi"
)

func newExportCmd() *cobra.Command {
	var (
		format     string
		outputFile string
		title      string
	)

	cmd := &cobra.Command{
		Use:   "export <schema-file>",
		Short: "Convert a schema document to DDL or OpenAPI",
		Long: `Read a schema document (an introspection document or an OpenAPI 3 spec) and
render it as PostgreSQL DDL or as an OpenAPI 3 document. Tables are emitted
in foreign key dependency order.`,
		Example: `  sketch export schema.json                  # DDL to stdout
  sketch export schema.json -f openapi -o openapi.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read schema file: %w", err)
			}
			snap, err := openapi.Decode(data)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			out, err := render(snap, format, title)
			if err != nil {
				return err
			}
			return writeOutput(cmd, outputFile, out)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "sql", "Output format: sql or openapi")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringVar(&title, "title", "Sketch Schema", "Document title for --format openapi")

	return cmd
}

// render formats snap as DDL or an OpenAPI document.
func render(snap model.Snapshot, format, title string) ([]byte, error) {
	switch format {
	case "sql":
		sql := ddl.Generate(snap)
		if sql == "" {
			sql = "-- The canvas is empty.\n"
		}
		return []byte(sql), nil
	case "openapi":
		data, err := json.MarshalIndent(openapi.Generate(snap, title), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode openapi: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// writeOutput writes data to path, or to the command's stdout when path is
// empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	return nil
}
