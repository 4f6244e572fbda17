// Command tftcurator is the entry point for the TFT ranked match data
// curation platform: collect, orchestrate, replay, registry, and
// provenance subcommands, a thin wrapper around internal/cli.NewRootCommand.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nysm-labs/tft-curator/internal/cli"
)

func main() {
	// An interrupt cancels the context rather than killing the process
	// outright, so an in-flight collection cycle checkpoints and exits
	// with the resumable code instead of losing its progress.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
