package orchestrator

import (
	"fmt"
)

// DAG is a validated, orderable set of stages.
type DAG struct {
	stages map[string]Stage
	order  []string         // topological order
}

// NewDAG validates the stage set for cycles and duplicate/undeclared
// dependencies, then computes a topological order: analyzeCycles first
// (a hard error, not a warning), then a dependency-respecting schedule.
func NewDAG(stages []Stage) (*DAG, error) {
	byName := make(map[string]Stage, len(stages))
	for _, s := range stages {
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("orchestrator: duplicate stage name %q", s.Name)
		}
		byName[s.Name] = s
	}
	for _, s := range stages {
		for _, dep := range s.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("orchestrator: stage %q depends on undeclared stage %q", s.Name, dep)
			}
		}
	}

	if cycle := analyzeCycles(stages); cycle != nil {
		return nil, cycle
	}

	order, err := topoSort(stages)
	if err != nil {
		return nil, err
	}

	return &DAG{stages: byName, order: order}, nil
}

// Order returns stage names in an order where every stage appears after
// all of its dependencies.
func (d *DAG) Order() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

func (d *DAG) Stage(name string) (Stage, bool) {
	s, ok := d.stages[name]
	return s, ok
}

// topoSort performs a standard Kahn's-algorithm topological sort. Cycle
// detection has already run (analyzeCycles), so a stuck queue here would
// indicate a bug in that check rather than a real cycle.
func topoSort(stages []Stage) ([]string, error) {
	indegree := make(map[string]int, len(stages))
	dependents := make(map[string][]string, len(stages))
	for _, s := range stages {
		if _, ok := indegree[s.Name]; !ok {
			indegree[s.Name] = 0
		}
		for _, dep := range s.DependsOn {
			indegree[s.Name]++
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}

	var queue []string
	for _, s := range stages {
		if indegree[s.Name] == 0 {
			queue = append(queue, s.Name)
		}
	}

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, dep := range dependents[n] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(stages) {
		return nil, fmt.Errorf("orchestrator: topological sort did not cover all stages (got %d of %d) — cycle check is inconsistent with scheduling", len(order), len(stages))
	}
	return order, nil
}
