// Package cli implements the tft-curator command-line surface: collect,
// orchestrate, replay, registry, and provenance subcommands sharing one
// RootOptions/PersistentFlags shape.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds flags every subcommand inherits.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"
	Root    string // working directory holding data/, reports/, provenance/, backups/, logs/
}

// ValidFormats enumerates the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the tftcurator root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use: "tftcurator",
		Short: "TFT ranked match data curation platform",
		Long: "Collects, validates, and curates Teamfight Tactics ranked match data through a resumable, rate-limited pipeline.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.Root, "root", ".", "working directory for data/reports/provenance/backups/logs")

	cmd.AddCommand(NewCollectCommand(opts))
	cmd.AddCommand(NewOrchestrateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewRegistryCommand(opts))
	cmd.AddCommand(NewProvenanceCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
