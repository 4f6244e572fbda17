package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/nysm-labs/tft-curator/internal/model"
)

// RiotFixture is a fully in-memory stand-in for internal/riot.Client,
// used to drive the Collection Engine through end-to-end scenarios
// without a live Riot API or an httptest.Server per test.
type RiotFixture struct {
	mu sync.Mutex

	LeagueEntriesByBucket map[string][]model.Player // keyed by model.Bucket.Key()
	MatchHistoriesByPUUID map[string][]string
	MatchesByID           map[string]model.Match
	ErrByMatchID          map[string]error
	ErrByPUUID            map[string]error

	calls []string
}

// NewRiotFixture returns an empty fixture; populate its maps before use.
func NewRiotFixture() *RiotFixture {
	return &RiotFixture{
		LeagueEntriesByBucket: make(map[string][]model.Player),
		MatchHistoriesByPUUID: make(map[string][]string),
		MatchesByID: make(map[string]model.Match),
		ErrByMatchID: make(map[string]error),
		ErrByPUUID: make(map[string]error),
	}
}

func (f *RiotFixture) LeagueEntries(_ context.Context, bucket model.Bucket, page int) ([]model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("LeagueEntries(%s,%d)", bucket.Key(), page))

	if page > 1 {
		return nil, nil // fixtures only ever populate page 1
	}
	return f.LeagueEntriesByBucket[bucket.Key()], nil
}

func (f *RiotFixture) MatchIDsByPUUID(_ context.Context, puuid string, _ int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "MatchIDsByPUUID("+puuid+")")

	if err, ok := f.ErrByPUUID[puuid]; ok {
		return nil, err
	}
	return f.MatchHistoriesByPUUID[puuid], nil
}

func (f *RiotFixture) MatchByID(_ context.Context, matchID string) (model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "MatchByID("+matchID+")")

	if err, ok := f.ErrByMatchID[matchID]; ok {
		return model.Match{}, err
	}
	m, ok := f.MatchesByID[matchID]
	if !ok {
		return model.Match{}, fmt.Errorf("testutil: no fixture match for id %s", matchID)
	}
	return m, nil
}

func (f *RiotFixture) Saturated() bool { return false }

// Calls returns every method invocation recorded so far, in order, for
// assertions that care about call sequence rather than just outcomes.
func (f *RiotFixture) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}
