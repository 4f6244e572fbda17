package engine

import (
	"context"
	"time"

	"github.com/nysm-labs/tft-curator/internal/checkpoint"
	"github.com/nysm-labs/tft-curator/internal/model"
)

// RiotClient is the subset of internal/riot.Client the Engine depends on.
// Declared as an interface here (rather than importing the concrete type
// directly into every call site) so tests substitute a fixture transport
// without standing up an httptest.Server per scenario.
type RiotClient interface {
	LeagueEntries(ctx context.Context, bucket model.Bucket, page int) ([]model.Player, error)
	MatchIDsByPUUID(ctx context.Context, puuid string, count int) ([]string, error)
	MatchByID(ctx context.Context, matchID string) (model.Match, error)
	Saturated() bool
}

// Registry is the subset of internal/registry.Store the Engine depends on.
type Registry interface {
	Status(ctx context.Context, matchID string) (model.Status, error)
	CompletedCycle(ctx context.Context, matchID string) (string, error)
	Claim(ctx context.Context, matchID, cycleID string, now time.Time) (model.Status, bool, error)
	Reclaim(ctx context.Context, matchID, cycleID string, now time.Time) error
	Complete(ctx context.Context, matchID, cycleID string, now time.Time) error
	MarkIncomplete(ctx context.Context, matchID, cycleID string, now time.Time) error
	Fail(ctx context.Context, matchID, errorCategory string, now time.Time) error
	SeenPlayer(ctx context.Context, p model.Player, cycleID string, now time.Time) error
	StartCycle(ctx context.Context, cycleID string, now time.Time) error
	CompleteCycle(ctx context.Context, cycleID string, now time.Time) error
}

// CheckpointStore is the subset of internal/checkpoint.Store the Engine
// depends on.
type CheckpointStore interface {
	Save(snap *checkpoint.Snapshot) error
	Load(cycleID string) (*checkpoint.Snapshot, error)
	Delete(cycleID string) error
	Exists(cycleID string) bool
}
