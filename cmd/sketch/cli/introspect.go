package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faucetdb/sketch/internal/config"
	"github.com/faucetdb/sketch/internal/openapi"
)

func newIntrospectCmd() *cobra.Command {
	var (
		format      string
		outputFile  string
		askPassword bool
		title       string
	)

	cmd := &cobra.Command{
		Use:   "introspect <connection-string>",
		Short: "Read a Postgres database and print its schema",
		Long: `Connect to a PostgreSQL database, read its tables, columns, keys and enum
types, and print the result as an introspection document (the format
'sketch serve --seed' and POST /api/v1/schema/import accept), as an OpenAPI 3
document, or as PostgreSQL DDL.`,
		Example: `  sketch introspect postgres://me@localhost/app -W
  sketch introspect "host=db dbname=app user=me" --schema public --format sql
  sketch introspect postgres://me:pw@localhost/app -o schema.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, map[string]string{
				"schema":         "introspect.schemas",
				"exclude-schema": "introspect.exclude_schemas",
				"timeout":        "introspect.timeout",
			})
			if err != nil {
				return err
			}

			dsn := args[0]
			if askPassword {
				fmt.Fprint(os.Stderr, "Password: ")
				pw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				if dsn, err = withPassword(dsn, string(pw)); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			timeout, _ := config.ParseDuration(cfg.Introspect.Timeout)
			doc, err := introspect(ctx, dsn, cfg.Introspect.Connection(), timeout)
			if err != nil {
				return fmt.Errorf("introspect: %w", err)
			}

			snap := openapi.FromDocument(doc)
			if format == "document" {
				data, err := json.MarshalIndent(doc, "", "  ")
				if err != nil {
					return err
				}
				return writeOutput(cmd, outputFile, append(data, '\n'))
			}
			data, err := render(snap, format, title)
			if err != nil {
				return err
			}
			return writeOutput(cmd, outputFile, data)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "document", "Output format: document, openapi or sql")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().BoolVarP(&askPassword, "password", "W", false, "Prompt for the database password")
	cmd.Flags().StringVar(&title, "title", "Sketch Schema", "Document title for --format openapi")
	cmd.Flags().StringSlice("schema", nil, "Only read these schemas (repeatable)")
	cmd.Flags().StringSlice("exclude-schema", nil, "Skip these schemas (repeatable)")
	cmd.Flags().String("timeout", "", "Introspection timeout, e.g. 30s")

	return cmd
}
