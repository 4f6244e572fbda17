// Package checkpoint provides file-based, atomically-written snapshots of
// Collection Engine progress, independent of
// the SQLite Identifier Registry: a checkpoint is a transient recovery
// artifact, not a durable record, and is deleted once its cycle completes.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nysm-labs/tft-curator/internal/model"
)

// Snapshot is the full recoverable state of an in-progress collection
// cycle: core identifiers, a cursor into the work being walked, and
// accumulated counters, enough to resume the Collection Engine's state
// machine at the point it left off.
type Snapshot struct {
	CycleID           string             `json:"cycle_id"`
	RunID             string             `json:"run_id"`
	CreatedAt         time.Time          `json:"created_at"`
	CursorBucket      model.Bucket       `json:"cursor_bucket"`
	ProcessedPlayers  []string           `json:"processed_players"`
	PendingMatchQueue []string           `json:"pending_match_queue"`
	MatchesCollected  int                `json:"matches_collected"`
	ErrorAccount      model.ErrorAccount `json:"error_account"`
}

// NewSnapshot starts a fresh, empty snapshot for cycleID, stamping it with
// a random run id (distinct from cycleID: a cycle can be attempted more
// than once across retries, and RunID disambiguates checkpoints and log
// lines from the same cycle across those attempts).
func NewSnapshot(cycleID string, now time.Time) *Snapshot {
	return &Snapshot{
		CycleID: cycleID,
		RunID: uuid.NewString(),
		CreatedAt: now,
		ErrorAccount: model.ErrorAccount{ErrorsByCategory: map[string]*model.ErrorCategoryAccount{}},
	}
}

// IsExpired reports whether the snapshot is older than timeout as of now —
// an expired checkpoint is treated as stale and the cycle is restarted
// from scratch rather than resumed. now is passed in rather than read from
// the wall clock so callers with an injected clock stay deterministic.
func (s *Snapshot) IsExpired(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return now.Sub(s.CreatedAt) > timeout
}

// Store persists snapshots under a directory, one file per cycle id.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(cycleID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("tft_collection_%s_checkpoint.json", cycleID))
}

// Save writes snap atomically: the full content lands in a temp file in
// the same directory, then os.Rename swaps it into place, so a crash
// mid-write never leaves a truncated checkpoint behind.
func (s *Store) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", " ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	final := s.path(snap.CycleID)
	tmp, err := os.CreateTemp(s.dir, "."+snap.CycleID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: close temp: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

// Load reads the checkpoint for cycleID. Returns os.ErrNotExist (wrapped)
// if no checkpoint exists — callers treat that as "start a fresh cycle".
func (s *Store) Load(cycleID string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(cycleID))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal: %w", err)
	}
	return &snap, nil
}

// Delete removes the checkpoint for cycleID, called once EMIT succeeds and
// the cycle no longer needs to be resumable.
func (s *Store) Delete(cycleID string) error {
	err := os.Remove(s.path(cycleID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return nil
}

// Exists reports whether a checkpoint file is present for cycleID.
func (s *Store) Exists(cycleID string) bool {
	_, err := os.Stat(s.path(cycleID))
	return err == nil
}
