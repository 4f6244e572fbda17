package harness

import (
	"context"
	"testing"
	"time"

	"github.com/nysm-labs/tft-curator/internal/engine"
	"github.com/nysm-labs/tft-curator/internal/model"
)

// TestHappyPathSingleCycle: two players with
// three matches each, all timestamps in window, expect one artifact with
// both players, the union of their matches, and zero accounted errors.
func TestHappyPathSingleCycle(t *testing.T) {
	start := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	r := NewRig(t, start)

	r.Fixture.LeagueEntriesByBucket["CHALLENGER"] = []model.Player{
		{PUUID: "puuid-a", Tier: model.TierChallenger, LeaguePoints: 900},
		{PUUID: "puuid-b", Tier: model.TierChallenger, LeaguePoints: 850},
	}
	r.Fixture.MatchHistoriesByPUUID["puuid-a"] = []string{"NA1_1", "NA1_2", "NA1_3"}
	r.Fixture.MatchHistoriesByPUUID["puuid-b"] = []string{"NA1_4", "NA1_5", "NA1_6"}

	windowStart := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(24 * time.Hour)
	mid := windowStart.Add(10 * time.Hour)

	for i, id := range []string{"NA1_1", "NA1_2", "NA1_3"} {
		r.Fixture.MatchesByID[id] = singleParticipantMatch(id, "puuid-a", mid, i%8+1)
	}
	for i, id := range []string{"NA1_4", "NA1_5", "NA1_6"} {
		r.Fixture.MatchesByID[id] = singleParticipantMatch(id, "puuid-b", mid, i%8+1)
	}

	e := r.NewEngine(r.Fixture, engine.Config{
		Region: "NA",
		Tiers: []model.Tier{model.TierChallenger},
		CollectionMethod: model.MethodDaily,
		ExpectedParticipants: 1,
	})

	artifact, err := e.Run(context.Background(), "20260715", windowStart, windowEnd)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(artifact.Players) != 2 {
		t.Errorf("players = %d, want 2", len(artifact.Players))
	}
	if len(artifact.Matches) != 6 {
		t.Errorf("matches = %d, want 6", len(artifact.Matches))
	}
	if artifact.ErrorSummary.TotalErrors != 0 {
		t.Errorf("total_errors = %d, want 0", artifact.ErrorSummary.TotalErrors)
	}

	board, ok := artifact.Leaderboards[model.Bucket{Tier: model.TierChallenger}.Key()]
	if !ok {
		t.Fatal("expected a CHALLENGER leaderboard snapshot")
	}
	if len(board) != 2 || board[0].PUUID != "puuid-a" || board[0].LeaguePoints != 900 {
		t.Errorf("leaderboard = %+v, want puuid-a ranked first at 900 LP", board)
	}

	ctx := context.Background()
	for _, id := range []string{"NA1_1", "NA1_2", "NA1_3", "NA1_4", "NA1_5", "NA1_6"} {
		status, err := r.Registry.Status(ctx, id)
		if err != nil {
			t.Fatalf("Status(%s) failed: %v", id, err)
		}
		if status != model.StatusComplete {
			t.Errorf("Status(%s) = %q, want COMPLETE", id, status)
		}
	}
}

// TestDeduplicationAcrossCycles: cycle N
// completes 5 matches; cycle N+1 discovers the same 5 plus 2 new ones.
// Detail requests must be issued only for the 2 new ids, and the 5 prior
// matches must not reappear in cycle N+1's artifact.
func TestDeduplicationAcrossCycles(t *testing.T) {
	start := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	r := NewRig(t, start)

	r.Fixture.LeagueEntriesByBucket["CHALLENGER"] = []model.Player{
		{PUUID: "puuid-a", Tier: model.TierChallenger},
	}
	priorIDs := []string{"NA1_1", "NA1_2", "NA1_3", "NA1_4", "NA1_5"}
	r.Fixture.MatchHistoriesByPUUID["puuid-a"] = priorIDs

	windowStartN := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	windowEndN := windowStartN.Add(24 * time.Hour)
	midN := windowStartN.Add(10 * time.Hour)
	for i, id := range priorIDs {
		r.Fixture.MatchesByID[id] = singleParticipantMatch(id, "puuid-a", midN, i%8+1)
	}

	cfg := engine.Config{Region: "NA", Tiers: []model.Tier{model.TierChallenger}, WorkerCount: 1, ExpectedParticipants: 1}
	e := r.NewEngine(r.Fixture, cfg)

	ctx := context.Background()
	firstArtifact, err := e.Run(ctx, "20260715", windowStartN, windowEndN)
	if err != nil {
		t.Fatalf("cycle N Run() failed: %v", err)
	}
	if len(firstArtifact.Matches) != 5 {
		t.Fatalf("cycle N matches = %d, want 5", len(firstArtifact.Matches))
	}
	callsBeforeN1 := len(r.Fixture.Calls())

	newIDs := []string{"NA1_6", "NA1_7"}
	windowStartN1 := windowStartN.Add(24 * time.Hour)
	windowEndN1 := windowStartN1.Add(24 * time.Hour)
	midN1 := windowStartN1.Add(10 * time.Hour)

	r.Fixture.MatchHistoriesByPUUID["puuid-a"] = append(append([]string{}, priorIDs...), newIDs...)
	for i, id := range newIDs {
		r.Fixture.MatchesByID[id] = singleParticipantMatch(id, "puuid-a", midN1, i%8+1)
	}
	r.Clock.Set(start.Add(24 * time.Hour))

	secondArtifact, err := e.Run(ctx, "20260716", windowStartN1, windowEndN1)
	if err != nil {
		t.Fatalf("cycle N+1 Run() failed: %v", err)
	}
	if len(secondArtifact.Matches) != 2 {
		t.Fatalf("cycle N+1 matches = %d, want 2 (only the new ones)", len(secondArtifact.Matches))
	}
	for _, id := range priorIDs {
		if _, ok := secondArtifact.Matches[id]; ok {
			t.Errorf("cycle N+1 artifact re-emitted prior match %s", id)
		}
	}

	allCalls := r.Fixture.Calls()
	calls := allCalls[callsBeforeN1:]
	for _, id := range priorIDs {
		for _, c := range calls {
			if c == "MatchByID("+id+")" {
				t.Errorf("MatchByID(%s) called again in cycle N+1; dedup should have skipped it", id)
			}
		}
	}
	for _, id := range newIDs {
		found := false
		for _, c := range calls {
			if c == "MatchByID("+id+")" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected MatchByID(%s) to be called for the new match", id)
		}
	}

	for _, id := range priorIDs {
		status, err := r.Registry.Status(ctx, id)
		if err != nil {
			t.Fatalf("Status(%s) failed: %v", id, err)
		}
		if status != model.StatusComplete {
			t.Errorf("Status(%s) = %q, want COMPLETE (unchanged across cycle N+1)", id, status)
		}
	}
}
