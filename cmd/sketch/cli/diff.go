package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/sketch/internal/config"
	"github.com/faucetdb/sketch/internal/connector"
	"github.com/faucetdb/sketch/internal/drift"
	"github.com/faucetdb/sketch/internal/model"
	"github.com/faucetdb/sketch/internal/openapi"
)

func newDiffCmd() *cobra.Command {
	var (
		jsonOutput   bool
		failBreaking bool
	)

	cmd := &cobra.Command{
		Use:   "diff <base> <target>",
		Short: "Compare two schemas and classify the changes",
		Long: `Compare two schemas and list every difference going from base to target,
classified as additive (safe for existing clients) or breaking. Each argument
is either a schema document file or a Postgres connection string.`,
		Example: `  sketch diff postgres://me@localhost/app schema.json
  sketch diff old.json new.json --json
  sketch diff prod.json schema.json --fail-on-breaking   # exit 1 on breaking drift`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			base, err := loadSchema(ctx, args[0], cfg)
			if err != nil {
				return err
			}
			target, err := loadSchema(ctx, args[1], cfg)
			if err != nil {
				return err
			}

			report := drift.Diff(base, target)
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}

			if failBreaking && report.HasBreaking() {
				return fmt.Errorf("%d breaking changes", report.BreakingCount)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVar(&failBreaking, "fail-on-breaking", false, "Exit non-zero when any change is breaking")

	return cmd
}

// loadSchema reads a snapshot from a schema document file, or introspects
// arg when it is a Postgres connection string.
func loadSchema(ctx context.Context, arg string, cfg *config.YAMLConfig) (model.Snapshot, error) {
	if _, err := connector.DetectDriver(arg); err == nil {
		timeout, _ := config.ParseDuration(cfg.Introspect.Timeout)
		doc, err := introspect(ctx, arg, cfg.Introspect.Connection(), timeout)
		if err != nil {
			return nil, fmt.Errorf("introspect %s: %w", connector.RedactDSN(arg), err)
		}
		return openapi.FromDocument(doc), nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	snap, err := openapi.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", arg, err)
	}
	return snap, nil
}

func printReport(w io.Writer, r drift.Report) {
	if len(r.Tables) == 0 {
		fmt.Fprintf(w, "No differences across %d tables.\n", r.TotalTables)
		return
	}
	for _, t := range r.Tables {
		fmt.Fprintf(w, "%s\n", t.TableID)
		for _, item := range t.Items {
			marker := "+"
			if item.Type == drift.Breaking {
				marker = "!"
			}
			fmt.Fprintf(w, "  %s %s\n", marker, item.Description)
		}
	}
	fmt.Fprintf(w, "\n%d of %d tables changed: %d additive, %d breaking\n",
		r.DriftedTables, r.TotalTables, r.AdditiveCount, r.BreakingCount)
}
