package reportquery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nysm-labs/tft-curator/internal/registry"
)

func TestCrossCycleReport_SeparatesCurrentFromPrior(t *testing.T) {
	reg, err := registry.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer reg.Close()

	ctx := context.Background()
	now := time.Unix(0, 0)

	if _, _, err := reg.Claim(ctx, "NA1_1", "cycle-a", now); err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}
	if err := reg.Complete(ctx, "NA1_1", "cycle-a", now); err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if _, _, err := reg.Claim(ctx, "NA1_2", "cycle-b", now); err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}
	if err := reg.Complete(ctx, "NA1_2", "cycle-b", now); err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if _, _, err := reg.Claim(ctx, "NA1_3", "cycle-b", now); err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}

	report, err := CrossCycleReport(ctx, reg, "cycle-b")
	if err != nil {
		t.Fatalf("CrossCycleReport() failed: %v", err)
	}

	if report.CycleID != "cycle-b" {
		t.Errorf("CycleID = %q, want cycle-b", report.CycleID)
	}
	if report.NewMatchesSeen != 2 {
		t.Errorf("NewMatchesSeen = %d, want 2 (one COMPLETE + one IN_PROGRESS claimed this cycle)", report.NewMatchesSeen)
	}
	if report.CumulativeTotal != 3 {
		t.Errorf("CumulativeTotal = %d, want 3", report.CumulativeTotal)
	}

	var priorComplete int
	for _, sc := range report.PriorCounts {
		if sc.Status == "COMPLETE" {
			priorComplete = sc.Count
		}
	}
	if priorComplete != 1 {
		t.Errorf("prior COMPLETE count = %d, want 1 (only cycle-a's match)", priorComplete)
	}
}

func TestCrossCycleReport_EmptyRegistry(t *testing.T) {
	reg, err := registry.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer reg.Close()

	report, err := CrossCycleReport(context.Background(), reg, "cycle-only")
	if err != nil {
		t.Fatalf("CrossCycleReport() failed: %v", err)
	}
	if report.NewMatchesSeen != 0 || report.CumulativeTotal != 0 {
		t.Errorf("expected zero counts against an empty registry, got %+v", report)
	}
}
