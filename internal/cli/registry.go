package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/nysm-labs/tft-curator/internal/exitcode"
	"github.com/nysm-labs/tft-curator/internal/reportquery"
)

// NewRegistryCommand groups registry introspection subcommands: status
// (per-status counts) and query (an ad hoc filtered lookup through the
// reportquery compiler), alongside the cross_cycle stage.
func NewRegistryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use: "registry",
		Short: "Inspect the identifier & status registry",
	}
	cmd.AddCommand(newRegistryStatusCommand(rootOpts))
	cmd.AddCommand(newRegistryQueryCommand(rootOpts))
	return cmd
}

func newRegistryStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use: "status",
		Short: "Print identifier counts grouped by status",
		SilenceUsage: true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(rootOpts.Root)
			if err != nil {
				return WrapExitError(exitcode.Fatal, "opening registry", err)
			}
			defer reg.Close()

			ctx := context.Background()
			counts, err := reg.CountByStatus(ctx)
			if err != nil {
				return WrapExitError(exitcode.Fatal, "counting by status", err)
			}
			incomplete, err := reg.FindIncompleteCycles(ctx)
			if err != nil {
				return WrapExitError(exitcode.Fatal, "finding incomplete cycles", err)
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout}
			return formatter.Success(map[string]any{
				"counts_by_status":  counts,
				"incomplete_cycles": incomplete,
			})
		},
	}
	return cmd
}

// RegistryQueryOptions holds flags for the registry query subcommand.
type RegistryQueryOptions struct {
	Table  string
	Status string
	Cycle  string
}

func newRegistryQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegistryQueryOptions{}

	cmd := &cobra.Command{
		Use: "query",
		Short: "Run a filtered lookup against identifiers or players",
		Long: `query compiles a small declarative filter (internal/reportquery) into
parameterized SQL against the registry's identifiers or players table —
the same query IR the cross_cycle stage uses internally.`,
		SilenceUsage: true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryQuery(rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "identifiers", "table to query (identifiers|players)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter identifiers by status")
	cmd.Flags().StringVar(&opts.Cycle, "cycle", "", "filter identifiers by first_seen_cycle")

	return cmd
}

func runRegistryQuery(rootOpts *RootOptions, opts *RegistryQueryOptions) error {
	reg, err := openRegistry(rootOpts.Root)
	if err != nil {
		return WrapExitError(exitcode.Fatal, "opening registry", err)
	}
	defer reg.Close()

	var predicates []reportquery.Predicate
	if opts.Status != "" {
		predicates = append(predicates, reportquery.Equals{Field: "status", Value: opts.Status})
	}
	if opts.Cycle != "" {
		predicates = append(predicates, reportquery.Equals{Field: "first_seen_cycle", Value: opts.Cycle})
	}

	var filter reportquery.Predicate
	switch len(predicates) {
	case 0:
		filter = nil
	case 1:
		filter = predicates[0]
	default:
		filter = reportquery.And{Predicates: predicates}
	}

	compiler := reportquery.NewCompiler()
	query, params, err := compiler.Compile(reportquery.Select{From: opts.Table, Filter: filter})
	if err != nil {
		return WrapExitError(exitcode.Fatal, "compiling query", err)
	}

	rows, err := reg.DB().QueryContext(context.Background(), query, params...)
	if err != nil {
		return WrapExitError(exitcode.Fatal, "running query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return WrapExitError(exitcode.Fatal, "reading columns", err)
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return WrapExitError(exitcode.Fatal, "scanning row", err)
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = values[i]
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return WrapExitError(exitcode.Fatal, "iterating rows", err)
	}

	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: os.Stdout}
	return formatter.Success(records)
}
