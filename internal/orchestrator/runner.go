package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// QualityGateError is returned when the quality stage's score falls below
// quality.quality_threshold and the run halts before the downstream
// stages. It is not a stage failure: the quality report stays on disk for
// inspection.
type QualityGateError struct {
	Score     float64
	Threshold float64
}

func (e *QualityGateError) Error() string {
	return fmt.Sprintf("orchestrator: quality score %.4f below threshold %.4f", e.Score, e.Threshold)
}

// Runner walks a DAG's topological order, skipping up-to-date stages and
// stopping at the first failure or cancellation — "single
// orchestrator task walking the stage DAG" with a cooperative cancellation
// token propagated via ctx.
type Runner struct {
	dag *DAG
	log *slog.Logger
}

func NewRunner(dag *DAG, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{dag: dag, log: log}
}

// Run executes every stage in dependency order for one cycle. qualityThreshold
// of 0 disables the gate (any quality score passes).
func (r *Runner) Run(ctx context.Context, cycleID, dataRoot string, params map[string]string, qualityThreshold float64) ([]StageResult, error) {
	var results []StageResult

	for _, name := range r.dag.Order() {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		stage, _ := r.dag.Stage(name)
		log := r.log.With("cycle_id", cycleID, "stage", name)

		if skip, cause := shouldSkip(stage.Contract); skip {
			log.Info("stage skipped", "cause", cause)
			results = append(results, StageResult{Name: name, Skipped: true, SkipCause: cause})
			continue
		}

		start := time.Now()
		rc := &RunContext{Ctx: ctx, CycleID: cycleID, DataRoot: dataRoot, Params: params, Results: map[string]any{}}
		if stage.Run == nil {
			results = append(results, StageResult{Name: name, StartedAt: start, Duration: time.Since(start)})
			continue
		}

		err := stage.Run(rc)
		result := StageResult{Name: name, StartedAt: start, Duration: time.Since(start), Err: err}
		results = append(results, result)

		if err != nil {
			log.Error("stage failed", "error", err)
			return results, fmt.Errorf("orchestrator: stage %q: %w", name, err)
		}
		if verr := verifyOutputs(stage.Contract); verr != nil {
			log.Error("stage output contract violated", "error", verr)
			return results, verr
		}

		if name == "quality" && qualityThreshold > 0 {
			score, ok := rc.Results["quality_score"].(float64)
			if ok && score < qualityThreshold {
				return results, &QualityGateError{Score: score, Threshold: qualityThreshold}
			}
		}

		log.Info("stage complete", "duration_ms", result.Duration.Milliseconds())
	}

	return results, nil
}
