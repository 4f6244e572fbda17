package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nysm-labs/tft-curator/internal/model"
)

// Claim records a match id as IN_PROGRESS for cycleID if it has not been
// seen before, or returns the match's existing status unchanged if it has.
// The insert-then-fallback-select runs inside one transaction so two workers
// racing on the same match id never both believe they claimed it — the
// same atomic claim-or-skip idiom any idempotent work queue needs.
func (s *Store) Claim(ctx context.Context, matchID, cycleID string, now time.Time) (status model.Status, claimed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("registry: claim: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO identifiers (match_id, status, first_seen_cycle, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(match_id) DO NOTHING
	`, matchID, model.StatusInProgress, cycleID, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", false, fmt.Errorf("registry: claim: insert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("registry: claim: rows affected: %w", err)
	}

	if rows > 0 {
		if err := tx.Commit(); err != nil {
			return "", false, fmt.Errorf("registry: claim: commit: %w", err)
		}
		return model.StatusInProgress, true, nil
	}

	var existing string
	if err := tx.QueryRowContext(ctx, `
		SELECT status FROM identifiers WHERE match_id = ?
	`, matchID).Scan(&existing); err != nil {
		return "", false, fmt.Errorf("registry: claim: select existing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("registry: claim: commit: %w", err)
	}
	return model.Status(existing), false, nil
}

// Reclaim transitions a FAILED match id back to IN_PROGRESS for cycleID, so
// a match that errored out in a prior cycle is scheduled again rather than
// skipped forever (dedup semantics: "status ∈ {UNSEEN, FAILED}
// → the call is scheduled"). UNSEEN ids need no reclaim step since Claim's
// first INSERT already schedules them.
func (s *Store) Reclaim(ctx context.Context, matchID, cycleID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE identifiers
		SET status = ?, first_seen_cycle = ?, last_error_category = NULL, updated_at = ?
		WHERE match_id = ? AND status = ?
	`, model.StatusInProgress, cycleID, now.UTC().Format(time.RFC3339Nano), matchID, model.StatusFailed)
	if err != nil {
		return fmt.Errorf("registry: reclaim: %w", err)
	}
	return nil
}

// Complete marks matchID COMPLETE for cycleID.
func (s *Store) Complete(ctx context.Context, matchID, cycleID string, now time.Time) error {
	return s.setStatus(ctx, matchID, model.StatusComplete, cycleID, "", now)
}

// MarkIncomplete marks matchID INCOMPLETE (short-participant match under the
// "mark" policy) for cycleID.
func (s *Store) MarkIncomplete(ctx context.Context, matchID, cycleID string, now time.Time) error {
	return s.setStatus(ctx, matchID, model.StatusIncomplete, cycleID, "", now)
}

// Fail marks matchID FAILED with the given error category.
func (s *Store) Fail(ctx context.Context, matchID, errorCategory string, now time.Time) error {
	return s.setStatus(ctx, matchID, model.StatusFailed, "", errorCategory, now)
}

func (s *Store) setStatus(ctx context.Context, matchID string, status model.Status, completedCycle, errorCategory string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE identifiers
		SET status = ?,
		 completed_cycle = CASE WHEN ? != '' THEN ? ELSE completed_cycle END,
		 last_error_category = CASE WHEN ? != '' THEN ? ELSE last_error_category END,
		 updated_at = ?
		WHERE match_id = ?
	`, status, completedCycle, completedCycle, errorCategory, errorCategory, now.UTC().Format(time.RFC3339Nano), matchID)
	if err != nil {
		return fmt.Errorf("registry: set status: %w", err)
	}
	return nil
}

// Status returns the current status of matchID, or StatusUnseen if the
// registry has never recorded it.
func (s *Store) Status(ctx context.Context, matchID string) (model.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM identifiers WHERE match_id = ?`, matchID).Scan(&status)
	if err == sql.ErrNoRows {
		return model.StatusUnseen, nil
	}
	if err != nil {
		return "", fmt.Errorf("registry: status: %w", err)
	}
	return model.Status(status), nil
}

// CompletedCycle returns the cycle id that last completed matchID, or ""
// if matchID has never reached COMPLETE. The Engine uses this to tell a
// cross-cycle dedup hit (the match's body lives in an already-emitted
// artifact from an earlier cycle, safe to skip) apart from a same-cycle
// checkpoint resume (the body was only ever held in the in-memory
// artifact of the attempt that died, and must be re-fetched).
func (s *Store) CompletedCycle(ctx context.Context, matchID string) (string, error) {
	var completedCycle sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT completed_cycle FROM identifiers WHERE match_id = ?`, matchID).Scan(&completedCycle)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("registry: completed cycle: %w", err)
	}
	return completedCycle.String, nil
}

// SeenPlayer upserts a player's last-seen bucket for this cycle.
func (s *Store) SeenPlayer(ctx context.Context, p model.Player, cycleID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (puuid, tier, division, last_seen_cycle, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(puuid) DO UPDATE SET
			tier = excluded.tier,
			division = excluded.division,
			last_seen_cycle = excluded.last_seen_cycle,
			updated_at = excluded.updated_at
	`, p.PUUID, p.Tier, p.Division, cycleID, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("registry: seen player: %w", err)
	}
	return nil
}

// StartCycle records a new cycle row as IN_PROGRESS.
func (s *Store) StartCycle(ctx context.Context, cycleID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles (cycle_id, started_at, status)
		VALUES (?, ?, 'IN_PROGRESS')
		ON CONFLICT(cycle_id) DO NOTHING
	`, cycleID, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("registry: start cycle: %w", err)
	}
	return nil
}

// CompleteCycle marks cycleID COMPLETE.
func (s *Store) CompleteCycle(ctx context.Context, cycleID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cycles SET status = 'COMPLETE', completed_at = ? WHERE cycle_id = ?
	`, now.UTC().Format(time.RFC3339Nano), cycleID)
	if err != nil {
		return fmt.Errorf("registry: complete cycle: %w", err)
	}
	return nil
}
