// Package orchestrator schedules the pipeline of stages that runs after the
// Collection Engine emits an artifact: collect → validate → transform →
// quality → {cross_cycle, provenance, parquet, backup}.
package orchestrator

import (
	"context"
	"time"
)

// Contract describes what a stage consumes and produces, validated before
// scheduling (inputs/outputs/params, not a type system).
type Contract struct {
	Inputs  []string          // file paths this stage reads
	Outputs []string          // file paths this stage writes
	Params  map[string]string
}

// RunFunc performs a stage's work against its resolved params. After it
// returns, every path in Contract.Outputs must exist; a missing one is an
// error (see verifyOutputs).
type RunFunc func(ctx *RunContext) error

// Stage is one node in the pipeline DAG.
type Stage struct {
	Name      string
	DependsOn []string
	Contract  Contract
	Run       RunFunc
}

// RunContext carries per-run state into a Stage's RunFunc: the cycle being
// processed, the runner's cancellation context, and a place to stash
// freeform results the next stage (or a report) might want.
type RunContext struct {
	Ctx      context.Context
	CycleID  string
	DataRoot string
	Params   map[string]string
	Results  map[string]any
}

// StageResult records one stage's execution outcome for the run report.
type StageResult struct {
	Name      string
	Skipped   bool
	SkipCause string
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}
