package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nysm-labs/tft-curator/internal/config"
	"github.com/nysm-labs/tft-curator/internal/engine"
	"github.com/nysm-labs/tft-curator/internal/exitcode"
	"github.com/nysm-labs/tft-curator/internal/model"
	"github.com/nysm-labs/tft-curator/internal/paths"
)

// CollectOptions holds flags for the collect command.
type CollectOptions struct {
	*RootOptions
	ConfigFile string
	SchemaDir  string
	CycleID    string
}

// NewCollectCommand runs one Collection Engine cycle, driving
// engine.Engine.Run to completion or to a resumable checkpoint.
func NewCollectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CollectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use: "collect",
		Short: "Run one collection cycle against the Riot TFT API",
		Long: `collect runs the Collection Engine's state machine for a single cycle:
DISCOVER_PLAYERS, FETCH_MATCH_HISTORIES, FETCH_MATCH_DETAILS, and EMIT.

Exit codes:
 0 - cycle completed and the artifact was emitted
 1 - fatal error (configuration, auth, or an invariant violation at emit)
 2 - cycle stopped short of EMIT but left a valid checkpoint behind`,
		SilenceUsage: true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigFile, "config", "config.yaml", "YAML override file for this cycle")
	cmd.Flags().StringVar(&opts.SchemaDir, "schema", "config", "directory holding the CUE schema")
	cmd.Flags().StringVar(&opts.CycleID, "cycle", "", "cycle id, YYYYMMDD (required)")
	_ = cmd.MarkFlagRequired("cycle")

	return cmd
}

func runCollect(ctx context.Context, opts *CollectOptions) error {
	cfg, err := config.Load(opts.SchemaDir, opts.ConfigFile)
	if err != nil {
		return WrapExitError(exitcode.Fatal, "loading configuration", err)
	}

	apiKey, err := resolveAPIKey(opts.Root)
	if err != nil {
		return WrapExitError(exitcode.Fatal, "resolving API key", err)
	}

	layout := paths.NewLayout(opts.Root)
	logger, closeLog, err := buildLogger(opts.Verbose, layout.Log(opts.CycleID))
	if err != nil {
		return WrapExitError(exitcode.Fatal, "building logger", err)
	}
	defer closeLog()

	reg, err := openRegistry(opts.Root)
	if err != nil {
		return WrapExitError(exitcode.Fatal, "opening registry", err)
	}
	defer reg.Close()

	cp, err := openCheckpoints(layout)
	if err != nil {
		return WrapExitError(exitcode.Fatal, "opening checkpoint store", err)
	}

	client := buildRiotClient(cfg, apiKey)
	method := cfg.CollectionMethod()

	windowStart, windowEnd, err := cycleWindow(opts.CycleID, method)
	if err != nil {
		return WrapExitError(exitcode.Fatal, "computing collection window", err)
	}

	eng := engine.New(client, reg, cp, engine.SystemClock{}, engine.Config{
		Region: cfg.NormalizedRegion(),
		Tiers: cfg.Tiers(),
		CollectionMethod: method,
		IncompleteMatchPolicy: model.PolicyMark,
		DataVersion: "1.0.0",
		DataRoot: layout.DataRoot,
	}, logger)

	artifact, runErr := eng.Run(ctx, opts.CycleID, windowStart, windowEnd)

	formatter := &OutputFormatter{Format: opts.Format, Writer: os.Stdout}
	if runErr != nil {
		var resumable *engine.AbortedWithResumableState
		if errors.As(runErr, &resumable) {
			_ = formatter.Error(runErr)
			return WrapExitError(exitcode.Resumable, "cycle aborted with resumable state", runErr)
		}
		_ = formatter.Error(runErr)
		return WrapExitError(exitcode.Fatal, "collection failed", runErr)
	}

	rawPath := engine.ArtifactPath(layout.DataRoot, opts.CycleID)
	if opts.Format == "json" {
		return formatter.Success(map[string]any{
			"cycle_id": opts.CycleID,
			"matches": len(artifact.Matches),
			"raw_path": rawPath,
		})
	}
	fmt.Fprintf(os.Stdout, "cycle %s: %d matches collected -> %s\n", opts.CycleID, len(artifact.Matches), rawPath)
	return nil
}
