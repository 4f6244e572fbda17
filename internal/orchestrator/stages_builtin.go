package orchestrator

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nysm-labs/tft-curator/internal/engine"
	"github.com/nysm-labs/tft-curator/internal/model"
	"github.com/nysm-labs/tft-curator/internal/paths"
	"github.com/nysm-labs/tft-curator/internal/provenance"
	"github.com/nysm-labs/tft-curator/internal/registry"
	"github.com/nysm-labs/tft-curator/internal/reportquery"
)

// BackupPolicy is the orchestrator's view of the backup.* configuration
// keys: whether the backup stage is part of the default target at all,
// and how many days an archive is kept before cleanup removes it.
type BackupPolicy struct {
	Enabled       bool
	RetentionDays int
}

// BuildDefaultStages wires the DAG: collect is the real
// Collection Engine, provenance is the real Provenance Assembler, and
// cross_cycle delegates to the real registry report-query compiler.
// validate, transform, quality, and parquet/backup are external
// collaborators — here implemented as minimal, clearly-labeled stand-ins
// that produce the declared output artifact
// shape and exercise the DAG contract, not full reimplementations of
// those subsystems. The backup stage is scheduled only when
// backup.Enabled is set.
//
// cycleID is baked into every stage's Contract up front (rather than
// resolved inside RunFunc) so shouldSkip/verifyOutputs can compare the
// declared paths' mtimes before a stage ever runs — one DAG is built per
// cycle, so this is not a loss of generality.
func BuildDefaultStages(eng *engine.Engine, reg *registry.Store, layout paths.Layout, cycleID, configPath string, windowStart, windowEnd time.Time, backup BackupPolicy) []Stage {
	stages := []Stage{
		collectStage(eng, layout, cycleID, windowStart, windowEnd),
		validateStage(layout, cycleID),
		transformStage(layout, cycleID),
		qualityStage(layout, cycleID),
		crossCycleStage(reg, layout, cycleID),
		provenanceStage(layout, cycleID, configPath),
		parquetStage(layout, cycleID),
	}
	if backup.Enabled {
		stages = append(stages, backupStage(layout, cycleID, backup.RetentionDays))
	}
	return stages
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func collectStage(eng *engine.Engine, layout paths.Layout, cycleID string, windowStart, windowEnd time.Time) Stage {
	return Stage{
		Name: "collect",
		Contract: Contract{
			Outputs: []string{layout.RawArtifact(cycleID)},
		},
		Run: func(rc *RunContext) error {
			artifact, err := eng.Run(rc.Ctx, rc.CycleID, windowStart, windowEnd)
			if err != nil {
				return err
			}
			rc.Results["artifact"] = artifact
			rc.Results["raw_path"] = layout.RawArtifact(rc.CycleID)
			return nil
		},
	}
}

// validateStage checks the raw artifact's invariants and
// records a pass/fail report — a stand-in for an external schema
// validator.
func validateStage(layout paths.Layout, cycleID string) Stage {
	return Stage{
		Name: "validate",
		DependsOn: []string{"collect"},
		Contract: Contract{
			Inputs: []string{layout.RawArtifact(cycleID)},
			Outputs: []string{layout.Validated(cycleID), layout.ValidationReport(cycleID)},
		},
		Run: func(rc *RunContext) error {
			raw := layout.RawArtifact(rc.CycleID)
			data, err := os.ReadFile(raw)
			if err != nil {
				return fmt.Errorf("validate: read raw artifact: %w", err)
			}
			var artifact model.CollectionArtifact
			if err := json.Unmarshal(data, &artifact); err != nil {
				return fmt.Errorf("validate: decode raw artifact: %w", err)
			}
			valid := true
			var issues []string
			if verr := artifact.Validate(); verr != nil {
				valid = false
				issues = append(issues, verr.Error())
			}

			contentHash := ""
			if valid {
				contentHash, err = artifact.ContentHash()
				if err != nil {
					return fmt.Errorf("validate: content hash: %w", err)
				}
			}

			report := struct {
				CycleID           string   `json:"cycle_id"`
				Valid             bool     `json:"valid"`
				ContentHash       string   `json:"content_hash,omitempty"`
				IncompleteMatches []string `json:"incomplete_matches,omitempty"`
				Issues            []string `json:"issues,omitempty"`
			}{
				CycleID:           rc.CycleID,
				Valid:             valid,
				ContentHash:       contentHash,
				IncompleteMatches: artifact.Info.IncompleteMatchIDs,
				Issues:            issues,
			}

			if err := writeJSON(layout.ValidationReport(rc.CycleID), report); err != nil {
				return err
			}
			if !valid {
				return fmt.Errorf("validate: artifact failed invariant checks: %v", issues)
			}

			out := layout.Validated(rc.CycleID)
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
}

// transformStage projects the validated artifact into a JSON-LD document.
// A real transform would carry a full @context; this stand-in attaches a
// minimal one sufficient to exercise the DAG contract.
func transformStage(layout paths.Layout, cycleID string) Stage {
	return Stage{
		Name: "transform",
		DependsOn: []string{"validate"},
		Contract: Contract{
			Inputs: []string{layout.Validated(cycleID)},
			Outputs: []string{layout.Transformed(cycleID)},
		},
		Run: func(rc *RunContext) error {
			data, err := os.ReadFile(layout.Validated(rc.CycleID))
			if err != nil {
				return fmt.Errorf("transform: read validated artifact: %w", err)
			}
			var generic map[string]any
			if err := json.Unmarshal(data, &generic); err != nil {
				return fmt.Errorf("transform: decode validated artifact: %w", err)
			}
			doc := map[string]any{
				"@context": "https://tft-curator.nysm-labs.dev/context/v1",
				"@type": "CollectionArtifact",
				"@id": "urn:tft-collection:" + rc.CycleID,
				"data": generic,
			}
			return writeJSON(layout.Transformed(rc.CycleID), doc)
		},
	}
}

// qualityStage scores the artifact's completeness and writes the report
// that quality.quality_threshold gates against. The score here is the
// fraction of collected matches that were not flagged incomplete — a
// stand-in metric sufficient to exercise the gate, not a full quality
// framework.
func qualityStage(layout paths.Layout, cycleID string) Stage {
	return Stage{
		Name: "quality",
		DependsOn: []string{"transform"},
		Contract: Contract{
			Inputs: []string{layout.Transformed(cycleID)},
			Outputs: []string{layout.QualityReport(cycleID)},
		},
		Run: func(rc *RunContext) error {
			data, err := os.ReadFile(layout.RawArtifact(rc.CycleID))
			if err != nil {
				return fmt.Errorf("quality: read raw artifact: %w", err)
			}
			var artifact model.CollectionArtifact
			if err := json.Unmarshal(data, &artifact); err != nil {
				return fmt.Errorf("quality: decode raw artifact: %w", err)
			}

			total := len(artifact.Matches)
			incomplete := 0
			for _, m := range artifact.Matches {
				if m.Incomplete {
					incomplete++
				}
			}
			score := 1.0
			if total > 0 {
				score = float64(total-incomplete) / float64(total)
			}

			report := struct {
				CycleID           string  `json:"cycle_id"`
				Score             float64 `json:"score"`
				TotalMatches      int     `json:"total_matches"`
				IncompleteMatches int     `json:"incomplete_matches"`
			}{CycleID: rc.CycleID, Score: score, TotalMatches: total, IncompleteMatches: incomplete}

			rc.Results["quality_score"] = score
			return writeJSON(layout.QualityReport(rc.CycleID), report)
		},
	}
}

// crossCycleStage compares this cycle's registry counts against prior
// cycles via internal/reportquery — the one analytics over collected
// data that belongs in this scope, since it introspects the registry's
// bookkeeping, not match content.
func crossCycleStage(reg *registry.Store, layout paths.Layout, cycleID string) Stage {
	return Stage{
		Name: "cross_cycle",
		DependsOn: []string{"quality"},
		Contract: Contract{
			Inputs: []string{layout.QualityReport(cycleID)},
			Outputs: []string{layout.CrossCycleReport(cycleID)},
		},
		Run: func(rc *RunContext) error {
			if reg == nil {
				return writeJSON(layout.CrossCycleReport(rc.CycleID), struct {
					CycleID string `json:"cycle_id"`
					Note    string `json:"note"`
				}{CycleID: rc.CycleID, Note: "no registry attached to this run"})
			}

			report, err := reportquery.CrossCycleReport(rc.Ctx, reg, rc.CycleID)
			if err != nil {
				return fmt.Errorf("cross_cycle: %w", err)
			}
			return writeJSON(layout.CrossCycleReport(rc.CycleID), report)
		},
	}
}

func provenanceStage(layout paths.Layout, cycleID, configPath string) Stage {
	return Stage{
		Name: "provenance",
		DependsOn: []string{"quality"},
		Contract: Contract{
			Inputs: []string{layout.QualityReport(cycleID)},
			Outputs: []string{layout.Provenance(cycleID)},
		},
		Run: func(rc *RunContext) error {
			doc, err := provenance.Assemble(layout, rc.CycleID, configPath, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("provenance: %w", err)
			}
			return writeJSON(layout.Provenance(rc.CycleID), doc)
		},
	}
}

func parquetStage(layout paths.Layout, cycleID string) Stage {
	return Stage{
		Name: "parquet",
		DependsOn: []string{"quality"},
		Contract: Contract{
			Inputs: []string{layout.QualityReport(cycleID)},
			Outputs: []string{layout.ParquetMatches(cycleID), layout.ParquetParticipants(cycleID)},
		},
		Run: func(rc *RunContext) error {
			dir := layout.ParquetDir(rc.CycleID)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			// Columnar conversion is an external collaborator; this
			// stand-in writes placeholder files so downstream stage contracts
			// that depend on their existence are satisfiable.
			if err := os.WriteFile(layout.ParquetMatches(rc.CycleID), []byte{}, 0o644); err != nil {
				return err
			}
			return os.WriteFile(layout.ParquetParticipants(rc.CycleID), []byte{}, 0o644)
		},
	}
}

// backupStage bundles the cycle's artifacts and reports into a tar.gz
// with a sidecar metadata file listing what was archived, then removes
// archives past the retention window.
func backupStage(layout paths.Layout, cycleID string, retentionDays int) Stage {
	return Stage{
		Name: "backup",
		DependsOn: []string{"quality"},
		Contract: Contract{
			Inputs: []string{layout.QualityReport(cycleID)},
			Outputs: []string{layout.Backup(cycleID), layout.BackupMetadata(cycleID)},
		},
		Run: func(rc *RunContext) error {
			candidates := []string{
				layout.RawArtifact(rc.CycleID),
				layout.Validated(rc.CycleID),
				layout.Transformed(rc.CycleID),
				layout.ValidationReport(rc.CycleID),
				layout.QualityReport(rc.CycleID),
				layout.CrossCycleReport(rc.CycleID),
			}
			var members []string
			for _, path := range candidates {
				if _, err := os.Stat(path); err == nil {
					members = append(members, path)
				}
			}

			if err := os.MkdirAll(filepath.Dir(layout.Backup(rc.CycleID)), 0o755); err != nil {
				return err
			}
			if err := writeTarGz(layout.Backup(rc.CycleID), members); err != nil {
				return fmt.Errorf("backup: %w", err)
			}

			meta := struct {
				CycleID   string    `json:"cycle_id"`
				CreatedAt time.Time `json:"created_at"`
				Files     []string  `json:"files"`
			}{CycleID: rc.CycleID, CreatedAt: time.Now().UTC(), Files: members}
			if err := writeJSON(layout.BackupMetadata(rc.CycleID), meta); err != nil {
				return err
			}

			return cleanupOldBackups(filepath.Dir(layout.Backup(rc.CycleID)), retentionDays, time.Now())
		},
	}
}

// cleanupOldBackups deletes backup archives (and their metadata sidecars)
// whose modification time is older than retentionDays. A retention of
// zero or below disables cleanup.
func cleanupOldBackups(dir string, retentionDays int, now time.Time) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("backup: read backup dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "backup_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("backup: cleanup %s: %w", name, err)
		}
	}
	return nil
}

// writeTarGz archives the given files (flattened to their base names)
// into a gzip-compressed tarball at dest.
func writeTarGz(dest string, files []string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.Base(path)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, f); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
