package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nysm-labs/tft-curator/internal/config"
	"github.com/nysm-labs/tft-curator/internal/engine"
	"github.com/nysm-labs/tft-curator/internal/exitcode"
	"github.com/nysm-labs/tft-curator/internal/model"
	"github.com/nysm-labs/tft-curator/internal/orchestrator"
	"github.com/nysm-labs/tft-curator/internal/paths"
	"github.com/nysm-labs/tft-curator/internal/registry"
)

// OrchestrateOptions holds flags for the orchestrate command.
type OrchestrateOptions struct {
	*RootOptions
	ConfigFile string
	SchemaDir  string
	CycleID    string
}

// NewOrchestrateCommand builds and runs the stage DAG for one cycle:
// collect → validate → transform → quality →
// {cross_cycle, provenance, parquet, backup}. The collect stage is itself
// skipped automatically when that cycle's raw artifact already exists, so
// re-running orchestrate against an already-collected cycle reprocesses
// downstream stages without re-hitting the Riot API.
func NewOrchestrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrchestrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use: "orchestrate",
		Short: "Run the full pipeline DAG for a cycle",
		Long: `orchestrate walks the stage DAG — collect, validate, transform, quality,
cross_cycle, provenance, parquet, backup — skipping any stage whose outputs
already exist (collect) or are newer than its inputs (every other stage).

Exit codes:
 0 - every scheduled stage completed (or was skipped as up to date)
 1 - a stage failed, or the quality gate rejected the cycle
 2 - collect stopped short of EMIT but left a valid checkpoint behind`,
		SilenceUsage: true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrchestrate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigFile, "config", "config.yaml", "YAML override file for this cycle")
	cmd.Flags().StringVar(&opts.SchemaDir, "schema", "config", "directory holding the CUE schema")
	cmd.Flags().StringVar(&opts.CycleID, "cycle", "", "cycle id, YYYYMMDD (defaults to the config's collection_date list)")

	return cmd
}

func runOrchestrate(ctx context.Context, opts *OrchestrateOptions) error {
	cfg, err := config.Load(opts.SchemaDir, opts.ConfigFile)
	if err != nil {
		return WrapExitError(exitcode.Fatal, "loading configuration", err)
	}

	cycles := []string{opts.CycleID}
	if opts.CycleID == "" {
		cycles = cfg.CycleIDs()
	}
	if len(cycles) == 0 {
		return NewExitError(exitcode.Fatal, "no cycle id given: pass --cycle or set collection_date in the config")
	}

	apiKey, err := resolveAPIKey(opts.Root)
	if err != nil {
		return WrapExitError(exitcode.Fatal, "resolving API key", err)
	}

	reg, err := openRegistry(opts.Root)
	if err != nil {
		return WrapExitError(exitcode.Fatal, "opening registry", err)
	}
	defer reg.Close()

	// A multi-cycle run fans out one independent pipeline per cycle id;
	// the registry is the only state they share.
	layout := paths.NewLayout(opts.Root)
	allResults := make(map[string][]orchestrator.StageResult, len(cycles))
	for _, cycleID := range cycles {
		results, err := orchestrateOneCycle(ctx, opts, cfg, reg, apiKey, cycleID)
		allResults[cycleID] = results
		if opts.Format != "json" {
			printStageResults(os.Stdout, layout, cycleID, results)
		}
		if err != nil {
			formatter := &OutputFormatter{Format: opts.Format, Writer: os.Stdout}
			_ = formatter.Error(err)
			var resumable *engine.AbortedWithResumableState
			if errors.As(err, &resumable) {
				return WrapExitError(exitcode.Resumable, "cycle "+cycleID+" aborted with resumable state", err)
			}
			return WrapExitError(exitcode.Fatal, "orchestration failed for cycle "+cycleID, err)
		}
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: os.Stdout}
		return formatter.Success(allResults)
	}
	return nil
}

// printStageResults writes one human-readable line per stage, naming the
// failing stage and its cycle log path so an operator can go straight to
// the authoritative failure record.
func printStageResults(w io.Writer, layout paths.Layout, cycleID string, results []orchestrator.StageResult) {
	for _, r := range results {
		switch {
		case r.Skipped:
			fmt.Fprintf(w, "cycle %s: stage %-12s skipped (%s)\n", cycleID, r.Name, r.SkipCause)
		case r.Err != nil:
			fmt.Fprintf(w, "cycle %s: stage %-12s FAILED: %v (log: %s)\n", cycleID, r.Name, r.Err, layout.Log(cycleID))
		default:
			fmt.Fprintf(w, "cycle %s: stage %-12s ok (%s)\n", cycleID, r.Name, r.Duration.Round(time.Millisecond))
		}
	}
}

func orchestrateOneCycle(ctx context.Context, opts *OrchestrateOptions, cfg *config.Config, reg *registry.Store, apiKey, cycleID string) ([]orchestrator.StageResult, error) {
	layout := paths.NewLayout(opts.Root)
	logger, closeLog, err := buildLogger(opts.Verbose, layout.Log(cycleID))
	if err != nil {
		return nil, err
	}
	defer closeLog()

	method := cfg.CollectionMethod()
	windowStart, windowEnd, err := cycleWindow(cycleID, method)
	if err != nil {
		return nil, err
	}

	cp, err := openCheckpoints(layout)
	if err != nil {
		return nil, err
	}
	client := buildRiotClient(cfg, apiKey)
	eng := engine.New(client, reg, cp, engine.SystemClock{}, engine.Config{
		Region: cfg.NormalizedRegion(),
		Tiers: cfg.Tiers(),
		CollectionMethod: method,
		IncompleteMatchPolicy: model.PolicyMark,
		DataVersion: "1.0.0",
		DataRoot: layout.DataRoot,
	}, logger)

	stages := orchestrator.BuildDefaultStages(eng, reg, layout, cycleID, opts.ConfigFile, windowStart, windowEnd, orchestrator.BackupPolicy{
		Enabled:       cfg.Backup.AutoBackup,
		RetentionDays: cfg.Backup.RetentionDays,
	})

	dag, err := orchestrator.NewDAG(stages)
	if err != nil {
		return nil, err
	}

	runner := orchestrator.NewRunner(dag, logger)
	return runner.Run(ctx, cycleID, layout.DataRoot, nil, cfg.Quality.QualityThreshold)
}
