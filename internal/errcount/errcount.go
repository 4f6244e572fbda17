// Package errcount accumulates the structured ErrorAccount an emitted
// CollectionArtifact carries: a per-category count plus a
// bounded sample of the match ids and player puuids that failed, so a
// cycle with thousands of rate-limit failures doesn't balloon the artifact.
package errcount

import (
	"sync"

	"github.com/nysm-labs/tft-curator/internal/model"
)

// DefaultSampleLimit bounds how many match/player ids are retained per
// category; beyond this the count keeps incrementing but the id lists stop
// growing.
const DefaultSampleLimit = 100

// Accumulator is a thread-safe ErrorAccount builder. The Collection Engine's
// worker pool records failures concurrently, so every mutation is guarded.
type Accumulator struct {
	mu          sync.Mutex
	sampleLimit int
	categories  map[string]*model.ErrorCategoryAccount
	totalErrors int
}

// New returns an Accumulator with the given per-category sample bound. A
// limit <= 0 uses DefaultSampleLimit.
func New(sampleLimit int) *Accumulator {
	if sampleLimit <= 0 {
		sampleLimit = DefaultSampleLimit
	}
	return &Accumulator{
		sampleLimit: sampleLimit,
		categories: make(map[string]*model.ErrorCategoryAccount),
	}
}

// Record adds one failure of the given category, optionally attributing it
// to a match id and/or a player puuid when either is known.
func (a *Accumulator) Record(category, matchID, puuid string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalErrors++

	cat, ok := a.categories[category]
	if !ok {
		cat = &model.ErrorCategoryAccount{}
		a.categories[category] = cat
	}
	cat.Count++

	if matchID != "" && len(cat.MatchIDs) < a.sampleLimit {
		cat.MatchIDs = append(cat.MatchIDs, matchID)
	}
	if puuid != "" && len(cat.PlayerPUUIDs) < a.sampleLimit {
		cat.PlayerPUUIDs = append(cat.PlayerPUUIDs, puuid)
	}
}

// Snapshot returns the accumulated ErrorAccount. Safe to call while Record
// continues to run concurrently on other goroutines; the returned value is
// a deep copy and will not reflect later Record calls.
func (a *Accumulator) Snapshot() model.ErrorAccount {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := model.ErrorAccount{
		TotalErrors: a.totalErrors,
		ErrorsByCategory: make(map[string]*model.ErrorCategoryAccount, len(a.categories)),
	}
	for k, v := range a.categories {
		matchIDs := make([]string, len(v.MatchIDs))
		copy(matchIDs, v.MatchIDs)
		puuids := make([]string, len(v.PlayerPUUIDs))
		copy(puuids, v.PlayerPUUIDs)
		out.ErrorsByCategory[k] = &model.ErrorCategoryAccount{
			Count: v.Count,
			MatchIDs: matchIDs,
			PlayerPUUIDs: puuids,
		}
	}
	return out
}

// Total returns the running total error count without building a snapshot.
func (a *Accumulator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalErrors
}
