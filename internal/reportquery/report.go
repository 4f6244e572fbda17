package reportquery

import (
	"context"
	"database/sql"
	"fmt"
)

// StatusCount is one status's identifier count, used both for the current
// cycle's counts and for the cumulative prior-cycle baseline.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// Report compares the current cycle's per-status match counts against the
// cumulative counts from all prior cycles, the one registry-bookkeeping
// analytics that operates on operational state rather than match content.
// Built on the compiled GroupCount query IR rather than ad hoc SQL, routing
// all read-side queries through the same compile step instead of
// hand-written statements scattered across call sites.
type Report struct {
	CycleID         string        `json:"cycle_id"`
	CurrentCounts   []StatusCount `json:"current_counts"`
	PriorCounts     []StatusCount `json:"prior_counts"`
	NewMatchesSeen  int           `json:"new_matches_seen"`
	CumulativeTotal int           `json:"cumulative_total"`
}

// registryDB is the subset of *registry.Store this package needs: just the
// raw *sql.DB handle the Store already exposes via DB(), so reportquery
// never needs to import the registry package and risk a cycle as either
// package grows.
type registryDB interface {
	DB() *sql.DB
}

// CrossCycleReport compiles and runs two GroupCount queries — one scoped to
// cycleID's own identifiers rows, one scoped to every prior cycle — and
// diffs them into a Report. This is the function
// internal/orchestrator/stages_builtin.go's cross_cycle stage calls.
func CrossCycleReport(ctx context.Context, reg registryDB, cycleID string) (Report, error) {
	compiler := NewCompiler()
	report := Report{CycleID: cycleID}

	currentQuery := GroupCount{
		From: "identifiers",
		GroupBy: "status",
		CountName: "count",
		Filter: Equals{Field: "first_seen_cycle", Value: cycleID},
	}
	currentCounts, err := runStatusCounts(ctx, reg.DB(), compiler, currentQuery)
	if err != nil {
		return Report{}, fmt.Errorf("reportquery: current cycle counts: %w", err)
	}
	report.CurrentCounts = currentCounts
	for _, sc := range currentCounts {
		report.NewMatchesSeen += sc.Count
	}

	allQuery := GroupCount{
		From: "identifiers",
		GroupBy: "status",
		CountName: "count",
	}
	allCounts, err := runStatusCounts(ctx, reg.DB(), compiler, allQuery)
	if err != nil {
		return Report{}, fmt.Errorf("reportquery: cumulative counts: %w", err)
	}

	currentByStatus := make(map[string]int, len(currentCounts))
	for _, sc := range currentCounts {
		currentByStatus[sc.Status] = sc.Count
	}

	var priorCounts []StatusCount
	for _, sc := range allCounts {
		report.CumulativeTotal += sc.Count
		prior := sc.Count - currentByStatus[sc.Status]
		if prior < 0 {
			prior = 0
		}
		priorCounts = append(priorCounts, StatusCount{Status: sc.Status, Count: prior})
	}
	report.PriorCounts = priorCounts

	return report, nil
}

func runStatusCounts(ctx context.Context, db *sql.DB, compiler *Compiler, q GroupCount) ([]StatusCount, error) {
	query, params, err := compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		counts = append(counts, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return counts, nil
}
