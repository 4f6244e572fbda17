package cli

import (
	"testing"
	"time"

	"github.com/nysm-labs/tft-curator/internal/model"
)

func TestCycleWindow_Daily(t *testing.T) {
	start, end, err := cycleWindow("20260715", model.MethodDaily)
	if err != nil {
		t.Fatalf("cycleWindow() failed: %v", err)
	}
	wantStart := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	wantEnd := wantStart.Add(24 * time.Hour)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestCycleWindow_Weekly(t *testing.T) {
	start, end, err := cycleWindow("20260715", model.MethodWeekly)
	if err != nil {
		t.Fatalf("cycleWindow() failed: %v", err)
	}
	wantEnd := time.Date(2026, 7, 16, 0, 0, 0, 0, time.UTC)
	wantStart := wantEnd.Add(-7 * 24 * time.Hour)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestCycleWindow_RejectsMalformedCycleID(t *testing.T) {
	if _, _, err := cycleWindow("not-a-date", model.MethodDaily); err == nil {
		t.Fatal("expected an error for a malformed cycle id")
	}
}

func TestGetExitCode_WrapsAndUnwraps(t *testing.T) {
	err := WrapExitError(2, "resumable", nil)
	if GetExitCode(err) != 2 {
		t.Errorf("GetExitCode() = %d, want 2", GetExitCode(err))
	}
	if GetExitCode(nil) != 0 {
		t.Errorf("GetExitCode(nil) = %d, want 0", GetExitCode(nil))
	}
}
