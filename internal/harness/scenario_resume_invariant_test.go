package harness

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nysm-labs/tft-curator/internal/engine"
	"github.com/nysm-labs/tft-curator/internal/model"
	"github.com/nysm-labs/tft-curator/internal/riot"
	"github.com/nysm-labs/tft-curator/internal/testutil"
)

// TestAuthExpiryMidRunResumes: the API starts
// returning 403 partway through a cycle. The Engine must checkpoint and
// exit with a resumable error, write no artifact, and a rerun with a
// working credential must resume to the same final artifact an
// uninterrupted run would have produced.
func TestAuthExpiryMidRunResumes(t *testing.T) {
	start := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	r := NewRig(t, start)

	r.Fixture.LeagueEntriesByBucket["CHALLENGER"] = []model.Player{
		{PUUID: "puuid-a", Tier: model.TierChallenger},
	}
	allIDs := []string{"NA1_1", "NA1_2", "NA1_3", "NA1_4", "NA1_5"}
	r.Fixture.MatchHistoriesByPUUID["puuid-a"] = allIDs

	windowStart := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(24 * time.Hour)
	mid := windowStart.Add(10 * time.Hour)
	for i, id := range allIDs {
		r.Fixture.MatchesByID[id] = singleParticipantMatch(id, "puuid-a", mid, i%8+1)
	}
	r.Fixture.ErrByMatchID["NA1_3"] = &riot.APIError{Category: riot.CategoryAuthExpired, StatusCode: 403, Status: "403 Forbidden"}

	cfg := engine.Config{Region: "NA", Tiers: []model.Tier{model.TierChallenger}, WorkerCount: 1, ExpectedParticipants: 1}
	e := r.NewEngine(r.Fixture, cfg)

	ctx := context.Background()
	_, err := e.Run(ctx, "20260715", windowStart, windowEnd)
	if err == nil {
		t.Fatal("expected Run() to fail on auth expiry")
	}
	var aborted *engine.AbortedWithResumableState
	if !errors.As(err, &aborted) {
		t.Fatalf("error = %v (%T), want *engine.AbortedWithResumableState", err, err)
	}

	if !r.Checkpoint.Exists("20260715") {
		t.Fatal("expected a checkpoint to exist after auth-expiry abort")
	}
	if _, statErr := os.Stat(engine.ArtifactPath(r.DataRoot, "20260715")); !os.IsNotExist(statErr) {
		t.Error("expected no artifact file on disk after auth-expiry abort")
	}

	status, err := r.Registry.Status(ctx, "NA1_1")
	if err != nil {
		t.Fatalf("Status(NA1_1) failed: %v", err)
	}
	if status != model.StatusComplete {
		t.Errorf("Status(NA1_1) = %q, want COMPLETE (collected before the interruption)", status)
	}

	// Resume with a fresh fixture that no longer rejects NA1_3, standing
	// in for a rerun with a working credential. It shares nothing with
	// the first fixture but the match bodies, so a stray extra call
	// against the old (erroring) fixture would be caught by never
	// happening rather than by an assertion on call counts.
	resumedFixture := testutil.NewRiotFixture()
	resumedFixture.LeagueEntriesByBucket["CHALLENGER"] = r.Fixture.LeagueEntriesByBucket["CHALLENGER"]
	resumedFixture.MatchHistoriesByPUUID["puuid-a"] = allIDs
	for _, id := range allIDs {
		resumedFixture.MatchesByID[id] = r.Fixture.MatchesByID[id]
	}

	e2 := r.NewEngine(resumedFixture, cfg)
	artifact, err := e2.Run(ctx, "20260715", windowStart, windowEnd)
	if err != nil {
		t.Fatalf("resumed Run() failed: %v", err)
	}
	if len(artifact.Matches) != 5 {
		t.Fatalf("resumed artifact matches = %d, want 5 (equivalent to an uninterrupted run)", len(artifact.Matches))
	}
	for _, id := range allIDs {
		if _, ok := artifact.Matches[id]; !ok {
			t.Errorf("resumed artifact missing match %s", id)
		}
	}
	if r.Checkpoint.Exists("20260715") {
		t.Error("expected the checkpoint to be deleted after the cycle completes")
	}
}

// TestInvariantViolationBlocksEmit: a synthetic
// match carries a participant puuid never recorded in players. Emit must
// fail with an invariant violation, no artifact file may exist on disk,
// and the checkpoint must be preserved for a corrected rerun.
func TestInvariantViolationBlocksEmit(t *testing.T) {
	start := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	r := NewRig(t, start)

	r.Fixture.LeagueEntriesByBucket["CHALLENGER"] = []model.Player{
		{PUUID: "puuid-a", Tier: model.TierChallenger},
	}
	r.Fixture.MatchHistoriesByPUUID["puuid-a"] = []string{"NA1_1"}

	windowStart := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(24 * time.Hour)
	mid := windowStart.Add(10 * time.Hour)
	// The match's one participant is "puuid-ghost", a puuid the league
	// entries never surfaced.
	r.Fixture.MatchesByID["NA1_1"] = matchWithParticipants("NA1_1", mid, model.Participant{
		PUUID: "puuid-ghost", Placement: 1, Level: 9,
	})

	cfg := engine.Config{Region: "NA", Tiers: []model.Tier{model.TierChallenger}}
	e := r.NewEngine(r.Fixture, cfg)

	ctx := context.Background()
	_, err := e.Run(ctx, "20260715", windowStart, windowEnd)
	if err == nil {
		t.Fatal("expected Run() to fail on an invariant violation")
	}
	var invErr *model.InvariantViolationError
	if !errors.As(err, &invErr) {
		t.Fatalf("error = %v (%T), want *model.InvariantViolationError", err, err)
	}

	if _, statErr := os.Stat(engine.ArtifactPath(r.DataRoot, "20260715")); !os.IsNotExist(statErr) {
		t.Error("expected no artifact file on disk after an invariant violation")
	}
	if !r.Checkpoint.Exists("20260715") {
		t.Error("expected the checkpoint to be preserved after an invariant violation")
	}
}
