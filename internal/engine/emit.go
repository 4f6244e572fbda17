package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nysm-labs/tft-curator/internal/model"
)

// ArtifactPath returns the canonical on-disk location for a cycle's
// collection artifact.
func ArtifactPath(dataRoot, cycleID string) string {
	return filepath.Join(dataRoot, "raw", fmt.Sprintf("tft_collection_%s.json", cycleID))
}

// WriteArtifact validates and persists a CollectionArtifact at its
// canonical path, atomically, the same temp-then-rename idiom the
// checkpoint store uses — the artifact is the sole authoritative output
// of the Collection Engine and must never be observed half-written.
func WriteArtifact(dataRoot, cycleID string, artifact *model.CollectionArtifact) error {
	if err := artifact.Validate(); err != nil {
		return fmt.Errorf("engine: emit: %w", err)
	}

	path := ArtifactPath(dataRoot, cycleID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("engine: emit: mkdir: %w", err)
	}

	data, err := json.MarshalIndent(artifact, "", " ")
	if err != nil {
		return fmt.Errorf("engine: emit: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tft_collection-*.tmp")
	if err != nil {
		return fmt.Errorf("engine: emit: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("engine: emit: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("engine: emit: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("engine: emit: rename: %w", err)
	}
	return nil
}

// WritePartialArtifactMarker records that a cycle aborted with a
// resumable checkpoint rather than a completed emit, as part of
// ErrAuthExpired handling.
func WritePartialArtifactMarker(dataRoot, cycleID, reason string) error {
	path := ArtifactPath(dataRoot, cycleID) + ".partial"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("engine: partial marker: mkdir: %w", err)
	}
	marker := struct {
		CycleID string `json:"cycle_id"`
		Reason  string `json:"reason"`
	}{CycleID: cycleID, Reason: reason}
	data, err := json.MarshalIndent(marker, "", " ")
	if err != nil {
		return fmt.Errorf("engine: partial marker: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
