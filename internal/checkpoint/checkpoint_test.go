package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nysm-labs/tft-curator/internal/model"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}

	snap := &Snapshot{
		CycleID: "cycle-1",
		CreatedAt: time.Unix(1000, 0).UTC(),
		CursorBucket: model.Bucket{Tier: model.TierGold, Division: model.DivisionII},
		ProcessedPlayers: []string{"puuid-a", "puuid-b"},
		PendingMatchQueue: []string{"NA1_1", "NA1_2"},
		MatchesCollected: 42,
		ErrorAccount: model.ErrorAccount{TotalErrors: 0, ErrorsByCategory: map[string]*model.ErrorCategoryAccount{}},
	}

	if err := store.Save(snap); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := store.Load("cycle-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.CycleID != snap.CycleID || got.MatchesCollected != snap.MatchesCollected {
		t.Errorf("Load() = %+v, want %+v", got, snap)
	}
	if got.CursorBucket.Key() != "GOLD_II" {
		t.Errorf("CursorBucket.Key() = %q, want GOLD_II", got.CursorBucket.Key())
	}
}

func TestLoad_MissingCheckpoint(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}

	_, err = store.Load("does-not-exist")
	if err == nil {
		t.Fatal("expected an error loading a missing checkpoint")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestSave_OverwritesExistingAtomically(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}

	snap1 := &Snapshot{CycleID: "cycle-1", CreatedAt: time.Unix(1, 0).UTC(), MatchesCollected: 1}
	snap2 := &Snapshot{CycleID: "cycle-1", CreatedAt: time.Unix(2, 0).UTC(), MatchesCollected: 2}

	if err := store.Save(snap1); err != nil {
		t.Fatalf("Save(snap1) failed: %v", err)
	}
	if err := store.Save(snap2); err != nil {
		t.Fatalf("Save(snap2) failed: %v", err)
	}

	got, err := store.Load("cycle-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.MatchesCollected != 2 {
		t.Errorf("MatchesCollected = %d, want 2 (latest save)", got.MatchesCollected)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one file in checkpoint dir, got %d", len(entries))
	}
}

func TestDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	snap := &Snapshot{CycleID: "cycle-1", CreatedAt: time.Unix(1, 0).UTC()}
	if err := store.Save(snap); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Delete("cycle-1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if store.Exists("cycle-1") {
		t.Error("Exists() = true after Delete()")
	}
	if err := store.Delete("cycle-1"); err != nil {
		t.Errorf("second Delete() should be a no-op, got: %v", err)
	}
}

func TestNewSnapshot_AssignsUniqueRunID(t *testing.T) {
	now := time.Unix(1000, 0).UTC()
	a := NewSnapshot("cycle-1", now)
	b := NewSnapshot("cycle-1", now)

	if a.RunID == "" {
		t.Fatal("NewSnapshot() left RunID empty")
	}
	if a.RunID == b.RunID {
		t.Error("two NewSnapshot() calls for the same cycle produced the same RunID")
	}
	if a.CycleID != "cycle-1" || !a.CreatedAt.Equal(now) {
		t.Errorf("NewSnapshot() = %+v, want CycleID=cycle-1 CreatedAt=%v", a, now)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Unix(100_000, 0)
	snap := &Snapshot{CreatedAt: now.Add(-2 * time.Hour)}
	if !snap.IsExpired(now, time.Hour) {
		t.Error("IsExpired(1h) = false for a 2h-old snapshot")
	}
	if snap.IsExpired(now, 0) {
		t.Error("IsExpired(0) should disable expiry")
	}
}

func TestPath_IsolatesCycles(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	a := &Snapshot{CycleID: "cycle-a", CreatedAt: time.Unix(1, 0)}
	b := &Snapshot{CycleID: "cycle-b", CreatedAt: time.Unix(1, 0)}
	if err := store.Save(a); err != nil {
		t.Fatalf("Save(a) failed: %v", err)
	}
	if err := store.Save(b); err != nil {
		t.Fatalf("Save(b) failed: %v", err)
	}
	if _, err := store.Load("cycle-a"); err != nil {
		t.Errorf("Load(cycle-a) failed: %v", err)
	}
	if filepath.Base(store.path("cycle-a")) == filepath.Base(store.path("cycle-b")) {
		t.Error("expected distinct checkpoint file names per cycle")
	}
}
