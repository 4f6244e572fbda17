package registry

import (
	"context"
	"fmt"
)

// CycleState summarizes one cycle's completeness for recovery analysis:
// match-identifier completeness per cycle.
type CycleState struct {
	CycleID      string
	ClaimedCount int
	PendingCount int    // IN_PROGRESS, never reached COMPLETE/INCOMPLETE/FAILED
	IsComplete   bool
}

// FindIncompleteCycles returns every cycle with at least one match id still
// sitting at IN_PROGRESS, the resumability signal the ABORT_WITH_RESUMABLE_STATE
// transition depends on: a cycle is incomplete when a claimed match id
// never reached a terminal status.
func (s *Store) FindIncompleteCycles(ctx context.Context) ([]CycleState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT first_seen_cycle, COUNT(*) AS claimed, SUM(CASE WHEN status = 'IN_PROGRESS' THEN 1 ELSE 0 END) AS pending
		FROM identifiers
		GROUP BY first_seen_cycle
		HAVING pending > 0
		ORDER BY first_seen_cycle
	`)
	if err != nil {
		return nil, fmt.Errorf("registry: find incomplete cycles: %w", err)
	}
	defer rows.Close()

	var states []CycleState
	for rows.Next() {
		var st CycleState
		if err := rows.Scan(&st.CycleID, &st.ClaimedCount, &st.PendingCount); err != nil {
			return nil, fmt.Errorf("registry: scan cycle state: %w", err)
		}
		st.IsComplete = st.PendingCount == 0
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: iterate cycle states: %w", err)
	}
	if states == nil {
		states = []CycleState{}
	}
	return states, nil
}

// CountByStatus returns the number of identifiers rows for each status
// value, used by the registry CLI's summary report.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM identifiers GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("registry: count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("registry: scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: iterate status counts: %w", err)
	}
	return counts, nil
}

// PlayersInBucket returns every known puuid last seen in the given
// tier/division bucket, across all cycles, ordered by puuid.
func (s *Store) PlayersInBucket(ctx context.Context, tier, division string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT puuid FROM players WHERE tier = ? AND division = ? ORDER BY puuid
	`, tier, division)
	if err != nil {
		return nil, fmt.Errorf("registry: players in bucket: %w", err)
	}
	defer rows.Close()

	var puuids []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("registry: scan puuid: %w", err)
		}
		puuids = append(puuids, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: iterate puuids: %w", err)
	}
	if puuids == nil {
		puuids = []string{}
	}
	return puuids, nil
}
