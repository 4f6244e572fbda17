// Package engine implements the Collection Engine: the
// resumable, rate-limited, deduplicating harvester that fans out across
// the ranked tier/division matrix and emits a single canonical
// CollectionArtifact per cycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nysm-labs/tft-curator/internal/checkpoint"
	"github.com/nysm-labs/tft-curator/internal/errcount"
	"github.com/nysm-labs/tft-curator/internal/model"
)

// DefaultCheckpointInterval is how many completed matches elapse between
// automatic checkpoints.
const DefaultCheckpointInterval = 500

// DefaultWorkerCount bounds FETCH_MATCH_DETAILS concurrency.
const DefaultWorkerCount = 8

// DefaultMatchHistoryCount is how many match ids FETCH_MATCH_HISTORIES
// requests per player per call.
const DefaultMatchHistoryCount = 20

// Config configures one Engine run.
type Config struct {
	Region                string
	Tiers                 []model.Tier                // empty means the full ranked matrix
	CollectionMethod      model.CollectionMethod
	IncompleteMatchPolicy model.IncompleteMatchPolicy
	DataVersion           string
	DataRoot              string                      // root for ArtifactPath and partial markers

	WorkerCount          int
	CheckpointInterval   int
	MatchHistoryCount    int
	ErrorSampleLimit     int
	ExpectedParticipants int // full lobby size; below it a match is INCOMPLETE
}

func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.MatchHistoryCount <= 0 {
		c.MatchHistoryCount = DefaultMatchHistoryCount
	}
	if c.IncompleteMatchPolicy == "" {
		c.IncompleteMatchPolicy = model.PolicyMark
	}
	if c.ExpectedParticipants <= 0 {
		c.ExpectedParticipants = model.ExpectedParticipants
	}
	return c
}

// Engine produces one CollectionArtifact per cycle, following the state
// machine INIT → DISCOVER_PLAYERS → FETCH_MATCH_HISTORIES →
// FETCH_MATCH_DETAILS → EMIT → DONE, with a CHECKPOINT branch reachable
// from any stage.
type Engine struct {
	riot       RiotClient
	registry   Registry
	checkpoint CheckpointStore
	clock      Clock
	cfg        Config
	log        *slog.Logger
}

// New constructs an Engine with its concrete collaborators injected; no
// hidden globals.
func New(riot RiotClient, reg Registry, cp CheckpointStore, clock Clock, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		riot: riot,
		registry: reg,
		checkpoint: cp,
		clock: clock,
		cfg: cfg.withDefaults(),
		log: log,
	}
}

// Run executes one cycle to completion (or to a resumable checkpoint) and
// returns the emitted artifact. On ErrAuthExpired or cancellation it
// checkpoints, saves a partial artifact marker, and returns an
// *AbortedWithResumableState so the caller (the CLI's collect command) can
// select the distinct resumable exit code.
func (e *Engine) Run(ctx context.Context, cycleID string, windowStart, windowEnd time.Time) (*model.CollectionArtifact, error) {
	snap, resumed, err := e.loadOrInitCheckpoint(cycleID)
	if err != nil {
		return nil, fmt.Errorf("engine: load checkpoint: %w", err)
	}
	log := e.log.With("cycle_id", cycleID, "run_id", snap.RunID, "region", e.cfg.Region)
	if resumed {
		log.Info("resuming cycle from checkpoint", "matches_collected", snap.MatchesCollected)
	} else {
		if err := e.registry.StartCycle(ctx, cycleID, e.clock.Now()); err != nil {
			return e.handleStageError(ctx, cycleID, snap, fmt.Errorf("engine: start cycle: %w", err), log)
		}
	}

	errs := errcount.New(e.cfg.ErrorSampleLimit)
	checkpointTrigger := NewCheckpointTrigger(e.cfg.CheckpointInterval)
	checkpointTrigger.current = snap.MatchesCollected % e.cfg.CheckpointInterval

	artifact := model.NewCollectionArtifact(model.CollectionInfo{
		Timestamp: e.clock.Now(),
		ExtractionLocation: e.cfg.Region,
		DataVersion: e.cfg.DataVersion,
		CollectionMethod: e.cfg.CollectionMethod,
		IncompleteMatchPolicy: e.cfg.IncompleteMatchPolicy,
	})

	log.Info("stage start", "stage", "DISCOVER_PLAYERS")
	players, leaderboards, err := e.discoverPlayers(ctx, cycleID, snap, log)
	if err != nil {
		return e.handleStageError(ctx, cycleID, snap, err, log)
	}
	for _, p := range players {
		artifact.Players[p.PUUID] = p
	}
	if len(leaderboards) > 0 {
		artifact.Leaderboards = leaderboards
	}

	log.Info("stage start", "stage", "FETCH_MATCH_HISTORIES", "player_count", len(players))
	matchIDs, err := e.fetchMatchHistories(ctx, cycleID, players, windowStart, windowEnd, snap, errs, log)
	if err != nil {
		return e.handleStageError(ctx, cycleID, snap, err, log)
	}

	log.Info("stage start", "stage", "FETCH_MATCH_DETAILS", "claimed_count", len(matchIDs))
	if err := e.fetchMatchDetails(ctx, cycleID, matchIDs, windowStart, windowEnd, artifact, snap, checkpointTrigger, errs, log); err != nil {
		return e.handleStageError(ctx, cycleID, snap, err, log)
	}

	artifact.ErrorSummary = errs.Snapshot()
	// Workers append in completion order; sort so the emitted artifact
	// (and its content hash) is independent of scheduling.
	sort.Strings(artifact.Info.IncompleteMatchIDs)

	log.Info("stage start", "stage", "EMIT", "match_count", len(artifact.Matches))
	var emitErr error
	if e.cfg.DataRoot != "" {
		emitErr = WriteArtifact(e.cfg.DataRoot, cycleID, artifact)
	} else {
		emitErr = artifact.Validate()
	}
	if emitErr != nil {
		// INVARIANT_VIOLATION is fatal for EMIT and the
		// artifact MUST NOT be published, but the run is still
		// resumable — the checkpoint is preserved so a corrected rerun
		// doesn't repeat DISCOVER_PLAYERS/FETCH_MATCH_HISTORIES.
		if saveErr := e.checkpoint.Save(snap); saveErr != nil {
			log.Warn("checkpoint save failed after emit error", "error", saveErr)
		}
		return nil, fmt.Errorf("engine: emit: %w", emitErr)
	}

	if err := e.registry.CompleteCycle(ctx, cycleID, e.clock.Now()); err != nil {
		return nil, fmt.Errorf("engine: complete cycle: %w", err)
	}
	if err := e.checkpoint.Delete(cycleID); err != nil {
		log.Warn("checkpoint delete failed after successful emit", "error", err)
	}

	if hash, err := artifact.ContentHash(); err != nil {
		log.Warn("content hash computation failed", "error", err)
	} else {
		log.Info("cycle done", "stage", "DONE", "match_count", len(artifact.Matches), "error_count", artifact.ErrorSummary.TotalErrors, "content_hash", hash)
	}
	return artifact, nil
}

// checkpointMaxAge bounds how old a checkpoint may be before a new run
// restarts the cycle from scratch instead of resuming: a week-old cursor
// points at league pages and match histories that no longer exist in the
// collection window.
const checkpointMaxAge = 7 * 24 * time.Hour

func (e *Engine) loadOrInitCheckpoint(cycleID string) (*checkpoint.Snapshot, bool, error) {
	if e.checkpoint.Exists(cycleID) {
		snap, err := e.checkpoint.Load(cycleID)
		if err != nil {
			return nil, false, err
		}
		if snap.IsExpired(e.clock.Now(), checkpointMaxAge) {
			e.log.Warn("checkpoint expired, restarting cycle from scratch", "cycle_id", cycleID, "created_at", snap.CreatedAt)
			return checkpoint.NewSnapshot(cycleID, e.clock.Now()), false, nil
		}
		return snap, true, nil
	}
	return checkpoint.NewSnapshot(cycleID, e.clock.Now()), false, nil
}

// handleStageError implements the CHECKPOINT / ABORT_WITH_RESUMABLE_STATE
// branch: an ErrAuthExpired or a cancellation (termination signal)
// checkpoints and aborts with a resumable-state error; any other stage
// error is propagated unchanged (INVARIANT_VIOLATION on emit is fatal,
// not resumable).
func (e *Engine) handleStageError(ctx context.Context, cycleID string, snap *checkpoint.Snapshot, stageErr error, log *slog.Logger) (*model.CollectionArtifact, error) {
	reason := ""
	var authErr *ErrAuthExpired
	switch {
	case errors.As(stageErr, &authErr):
		reason = "auth expired"
	case errors.Is(stageErr, context.Canceled) || errors.Is(stageErr, context.DeadlineExceeded):
		reason = "canceled"
	default:
		return nil, stageErr
	}

	log.Warn("checkpointing and aborting", "reason", reason, "error", stageErr)
	if err := e.checkpoint.Save(snap); err != nil {
		return nil, fmt.Errorf("engine: save checkpoint after %s: %w", reason, err)
	}
	if e.cfg.DataRoot != "" {
		if err := WritePartialArtifactMarker(e.cfg.DataRoot, cycleID, reason); err != nil {
			log.Warn("failed to write partial artifact marker", "error", err)
		}
	}
	return nil, &AbortedWithResumableState{CycleID: cycleID, Reason: reason}
}
