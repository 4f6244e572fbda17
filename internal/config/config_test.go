package config

import (
	"os"
	"path/filepath"
	"testing"
)

const overrideYAML = `
collection_date: "20260715"
api:
  region: na1
  rate_limit:
    short_window_limit: 20
    short_window_seconds: 1
    long_window_limit: 100
    long_window_seconds: 120
collection:
  mode: daily
  tiers: ["GOLD", "PLATINUM"]
quality:
  quality_threshold: 0.9
backup:
  auto_backup: true
  retention_days: 14
`

func writeOverride(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "override.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	return path
}

func schemaDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs("../../config")
	if err != nil {
		t.Fatalf("resolve schema dir: %v", err)
	}
	return dir
}

func TestLoad_DecodesValidOverride(t *testing.T) {
	path := writeOverride(t, overrideYAML)
	cfg, err := Load(schemaDir(t), path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.API.Region != "na1" {
		t.Errorf("Region = %q, want na1", cfg.API.Region)
	}
	if cfg.Quality.QualityThreshold != 0.9 {
		t.Errorf("QualityThreshold = %v, want 0.9", cfg.Quality.QualityThreshold)
	}
	if len(cfg.Collection.Tiers) != 2 {
		t.Fatalf("Tiers = %v, want 2 entries", cfg.Collection.Tiers)
	}
	if cfg.Backup.RetentionDays != 14 {
		t.Errorf("RetentionDays = %d, want 14", cfg.Backup.RetentionDays)
	}
}

func TestLoad_RejectsInvalidTier(t *testing.T) {
	path := writeOverride(t, `
collection_date: "20260715"
api:
  region: na1
collection:
  tiers: ["NOT_A_TIER"]
`)
	if _, err := Load(schemaDir(t), path); err == nil {
		t.Fatal("expected an error for an out-of-enum tier value")
	}
}

func TestLoad_RejectsOutOfRangeThreshold(t *testing.T) {
	path := writeOverride(t, `
collection_date: "20260715"
api:
  region: na1
quality:
  quality_threshold: 1.5
`)
	if _, err := Load(schemaDir(t), path); err == nil {
		t.Fatal("expected an error for a quality_threshold above 1.0")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeOverride(t, `
collection_date: "20260715"
api:
  region: euw1
`)
	cfg, err := Load(schemaDir(t), path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.Backup.AutoBackup {
		t.Error("expected auto_backup to default to true")
	}
	if cfg.Backup.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want default 30", cfg.Backup.RetentionDays)
	}
	if cfg.API.RateLimit.LongWindowLimit != 100 {
		t.Errorf("LongWindowLimit = %d, want default 100", cfg.API.RateLimit.LongWindowLimit)
	}
}

func TestLoad_CollectionDateList(t *testing.T) {
	path := writeOverride(t, `
collection_date: ["20260714", "20260715"]
api:
  region: na1
`)
	cfg, err := Load(schemaDir(t), path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	ids := cfg.CycleIDs()
	if len(ids) != 2 || ids[0] != "20260714" || ids[1] != "20260715" {
		t.Errorf("CycleIDs() = %v, want [20260714 20260715]", ids)
	}
}

func TestCycleIDs_SingleDateBecomesOneElementList(t *testing.T) {
	cfg := &Config{CollectionDate: "20260715"}
	ids := cfg.CycleIDs()
	if len(ids) != 1 || ids[0] != "20260715" {
		t.Errorf("CycleIDs() = %v, want [20260715]", ids)
	}
}

func TestTiers_EmptyMeansFullMatrix(t *testing.T) {
	cfg := &Config{}
	if len(cfg.Tiers()) != 0 {
		t.Errorf("Tiers() = %v, want empty", cfg.Tiers())
	}
}

func TestCollectionMethod_DefaultsToDaily(t *testing.T) {
	cfg := &Config{}
	if cfg.CollectionMethod() != "daily" {
		t.Errorf("CollectionMethod() = %q, want daily", cfg.CollectionMethod())
	}
}

func TestNormalizedRegion_FoldsCase(t *testing.T) {
	cfg := &Config{}
	cfg.API.Region = "na1"
	if got := cfg.NormalizedRegion(); got != "NA1" {
		t.Errorf("NormalizedRegion() = %q, want NA1", got)
	}
}
