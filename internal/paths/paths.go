// Package paths centralizes the deterministic on-disk layout of a cycle's
// stage outputs. Both internal/orchestrator (to
// decide whether a stage's outputs are already up to date) and
// internal/provenance (to discover which files belong to which PROV
// entity) need the exact same path computation; this package is the one
// place that computation lives.
package paths

import (
	"fmt"
	"path/filepath"
)

// Layout resolves every canonical stage artifact path rooted at one
// working directory. DataRoot holds the cycle-keyed collection artifacts
// (raw/validated/transformed/parquet); the sibling reports/, provenance/,
// backups/, and logs/ directories live next to it under Root.
type Layout struct {
	Root     string
	DataRoot string
}

// NewLayout returns a Layout rooted at root, with DataRoot defaulted to
// root/data.
func NewLayout(root string) Layout {
	return Layout{Root: root, DataRoot: filepath.Join(root, "data")}
}

func (l Layout) RawArtifact(cycleID string) string {
	return filepath.Join(l.DataRoot, "raw", fmt.Sprintf("tft_collection_%s.json", cycleID))
}

func (l Layout) RawCheckpoint(cycleID string) string {
	return filepath.Join(l.DataRoot, "raw", fmt.Sprintf("tft_collection_%s_checkpoint.json", cycleID))
}

func (l Layout) CheckpointDir() string {
	return filepath.Join(l.DataRoot, "raw")
}

func (l Layout) Validated(cycleID string) string {
	return filepath.Join(l.DataRoot, "validated", fmt.Sprintf("tft_collection_%s.json", cycleID))
}

func (l Layout) Transformed(cycleID string) string {
	return filepath.Join(l.DataRoot, "transformed", fmt.Sprintf("tft_collection_%s.jsonld", cycleID))
}

func (l Layout) ParquetDir(cycleID string) string {
	return filepath.Join(l.DataRoot, "parquet", cycleID)
}

func (l Layout) ParquetMatches(cycleID string) string {
	return filepath.Join(l.ParquetDir(cycleID), "matches.parquet")
}

func (l Layout) ParquetParticipants(cycleID string) string {
	return filepath.Join(l.ParquetDir(cycleID), "participants.parquet")
}

func (l Layout) ValidationReport(cycleID string) string {
	return filepath.Join(l.Root, "reports", fmt.Sprintf("validation_%s.json", cycleID))
}

func (l Layout) QualityReport(cycleID string) string {
	return filepath.Join(l.Root, "reports", fmt.Sprintf("quality_%s.json", cycleID))
}

func (l Layout) CrossCycleReport(cycleID string) string {
	return filepath.Join(l.Root, "reports", fmt.Sprintf("cross_cycle_%s.json", cycleID))
}

func (l Layout) Provenance(cycleID string) string {
	return filepath.Join(l.Root, "provenance", fmt.Sprintf("workflow_%s.prov.json", cycleID))
}

func (l Layout) Backup(cycleID string) string {
	return filepath.Join(l.Root, "backups", fmt.Sprintf("backup_%s.tar.gz", cycleID))
}

func (l Layout) BackupMetadata(cycleID string) string {
	return filepath.Join(l.Root, "backups", fmt.Sprintf("backup_%s_metadata.json", cycleID))
}

func (l Layout) Log(cycleID string) string {
	return filepath.Join(l.Root, "logs", fmt.Sprintf("collection_%s.log", cycleID))
}
