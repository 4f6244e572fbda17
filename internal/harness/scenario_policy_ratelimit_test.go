package harness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nysm-labs/tft-curator/internal/engine"
	"github.com/nysm-labs/tft-curator/internal/model"
	"github.com/nysm-labs/tft-curator/internal/riot"
)

// TestIncompleteMatchPolicyVariants covers the "filter" and "identify"
// incomplete-match policies; the "mark" branch (the default policy) is
// already exercised end-to-end in
// internal/engine.TestRun_IncompleteMatchMarkedByDefaultPolicy.
func TestIncompleteMatchPolicyVariants(t *testing.T) {
	windowStart := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(24 * time.Hour)
	mid := windowStart.Add(10 * time.Hour)

	newRigWithShortMatch := func(t *testing.T) *Rig {
		r := NewRig(t, windowStart.Add(12*time.Hour))
		r.Fixture.LeagueEntriesByBucket["CHALLENGER"] = []model.Player{
			{PUUID: "puuid-a", Tier: model.TierChallenger},
		}
		r.Fixture.MatchHistoriesByPUUID["puuid-a"] = []string{"NA1_short"}
		r.Fixture.MatchesByID["NA1_short"] = singleParticipantMatch("NA1_short", "puuid-a", mid, 1)
		return r
	}

	t.Run("filter drops the match from the artifact", func(t *testing.T) {
		r := newRigWithShortMatch(t)
		e := r.NewEngine(r.Fixture, engine.Config{
			Region: "NA", Tiers: []model.Tier{model.TierChallenger},
			IncompleteMatchPolicy: model.PolicyFilter,
		})
		artifact, err := e.Run(context.Background(), "20260715", windowStart, windowEnd)
		if err != nil {
			t.Fatalf("Run() failed: %v", err)
		}
		if _, ok := artifact.Matches["NA1_short"]; ok {
			t.Error("expected the incomplete match dropped under the 'filter' policy")
		}
		status, err := r.Registry.Status(context.Background(), "NA1_short")
		if err != nil {
			t.Fatalf("Status() failed: %v", err)
		}
		if status != model.StatusIncomplete {
			t.Errorf("registry status = %q, want INCOMPLETE", status)
		}
		if artifact.ErrorSummary.TotalErrors != 0 {
			t.Errorf("total_errors = %d, want 0 (an incomplete match is not an error)", artifact.ErrorSummary.TotalErrors)
		}
		if len(artifact.Info.IncompleteMatchIDs) != 1 || artifact.Info.IncompleteMatchIDs[0] != "NA1_short" {
			t.Errorf("incompleteMatchIds = %v, want the dropped match still listed", artifact.Info.IncompleteMatchIDs)
		}
	})

	t.Run("identify retains the match unflagged", func(t *testing.T) {
		r := newRigWithShortMatch(t)
		e := r.NewEngine(r.Fixture, engine.Config{
			Region: "NA", Tiers: []model.Tier{model.TierChallenger},
			IncompleteMatchPolicy: model.PolicyIdentify,
		})
		artifact, err := e.Run(context.Background(), "20260715", windowStart, windowEnd)
		if err != nil {
			t.Fatalf("Run() failed: %v", err)
		}
		m, ok := artifact.Matches["NA1_short"]
		if !ok {
			t.Fatal("expected the incomplete match retained under the 'identify' policy")
		}
		if m.Incomplete {
			t.Error("expected Incomplete=false under 'identify' (unflagged retention)")
		}
		if len(artifact.Info.IncompleteMatchIDs) != 1 || artifact.Info.IncompleteMatchIDs[0] != "NA1_short" {
			t.Errorf("incompleteMatchIds = %v, want the identified match listed", artifact.Info.IncompleteMatchIDs)
		}
	})
}

// TestRateLimitBurst: a burst of 429 responses
// carrying Retry-After must be absorbed transparently by the rate-limited
// HTTP client — no error surfaces, every request eventually succeeds, and
// the client actually waits out the advertised Retry-After rather than
// retrying immediately.
func TestRateLimitBurst(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`["NA1_1","NA1_2"]`))
	}))
	defer srv.Close()

	c := riot.New(riot.Config{
		APIKey: "test-key",
		BaseURL: srv.URL,
		ShortLimit: 1000,
		ShortWindowSeconds: 1,
		LongLimit: 1000,
		LongWindowSeconds: 120,
		MaxRetries: 3,
	})

	start := time.Now()
	ids, err := c.MatchIDsByPUUID(context.Background(), "puuid-1", 10)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("MatchIDsByPUUID() failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v, want 2 entries", ids)
	}
	if elapsed < time.Second {
		t.Errorf("elapsed = %s, want >= 1s (the burst's advertised Retry-After must actually be honored)", elapsed)
	}
	if atomic.LoadInt32(&calls) != 4 {
		t.Errorf("calls = %d, want 4 (3 rate-limited + 1 success)", calls)
	}
}
