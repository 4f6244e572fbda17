package orchestrator

import (
	"fmt"
	"strings"
)

// CycleError reports a hard dependency cycle in the stage DAG. A stage DAG
// cycle is always a configuration error: a scheduler cannot order stages
// that depend on each other transitively.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("orchestrator: dependency cycle: %s", strings.Join(e.Path, " → "))
}

type dependencyGraph map[string][]string

func buildDependencyGraph(stages []Stage) dependencyGraph {
	graph := make(dependencyGraph, len(stages))
	for _, s := range stages {
		if graph[s.Name] == nil {
			graph[s.Name] = []string{}
		}
		graph[s.Name] = append(graph[s.Name], s.DependsOn...)
	}
	return graph
}

// analyzeCycles runs Tarjan's algorithm over the stage dependency graph and
// returns the first cycle found (as a stage-name path), or nil if the DAG
// is acyclic. Any SCC of size > 1 (or a self-loop) is a hard error.
func analyzeCycles(stages []Stage) *CycleError {
	graph := buildDependencyGraph(stages)

	var (
		index = 0
		stack []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for node := range graph {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	for _, scc := range sccs {
		if len(scc) > 1 {
			return &CycleError{Path: reverse(scc)}
		}
		if len(scc) == 1 && hasSelfLoop(scc[0], graph) {
			return &CycleError{Path: []string{scc[0], scc[0]}}
		}
	}
	return nil
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

func reverse(xs []string) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[len(xs)-1-i] = x
	}
	return out
}
