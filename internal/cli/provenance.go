package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nysm-labs/tft-curator/internal/exitcode"
	"github.com/nysm-labs/tft-curator/internal/paths"
	"github.com/nysm-labs/tft-curator/internal/provenance"
)

// ProvenanceOptions holds flags for the provenance command.
type ProvenanceOptions struct {
	*RootOptions
	CycleID    string
	ConfigFile string
}

// NewProvenanceCommand assembles and prints a cycle's W3C-PROV document
// without running the rest of the pipeline — useful for
// inspecting lineage after orchestrate has already produced stage outputs.
func NewProvenanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProvenanceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use: "provenance",
		Short: "Assemble and print a cycle's provenance document",
		SilenceUsage: true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvenance(opts)
		},
	}

	cmd.Flags().StringVar(&opts.CycleID, "cycle", "", "cycle id, YYYYMMDD (required)")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "config.yaml", "YAML override file recorded as the run's config entity")
	_ = cmd.MarkFlagRequired("cycle")

	return cmd
}

func runProvenance(opts *ProvenanceOptions) error {
	layout := paths.NewLayout(opts.Root)

	doc, err := provenance.Assemble(layout, opts.CycleID, opts.ConfigFile, time.Now().UTC())
	if err != nil {
		return WrapExitError(exitcode.Fatal, "assembling provenance", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: os.Stdout}
	return formatter.Success(doc)
}
