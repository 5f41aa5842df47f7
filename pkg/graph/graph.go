// Package graph analyzes the dependency structure of a workflow bundle:
// cycle detection, dependency ordering, and level computation. All functions
// are pure and never return errors; callers act on the reported findings.
package graph

import (
	"fmt"
	"sort"

	"github.com/prodfactory/flowsync/pkg/models"
)

// Analysis is the result of analyzing a bundle's dependency graph.
type Analysis struct {
	HasCycle bool       `json:"has_cycle"`
	Cycles   [][]string `json:"cycles,omitempty"`
	// Order lists workflow names with every dependency before its
	// dependents. Nodes that participate in a cycle are excluded and
	// reported in CyclicNodes instead; callers must not import when
	// HasCycle is true.
	Order       []string `json:"order"`
	CyclicNodes []string `json:"cyclic_nodes,omitempty"`
	// Warnings reports dependencies on names not present in the bundle.
	// Those edges are dropped from the graph.
	Warnings []string `json:"warnings,omitempty"`
}

type color uint8

const (
	white color = iota // unvisited
	gray               // on the current DFS path
	black              // finished
)

// Analyze builds the dependency graph over the bundled workflow names and
// runs cycle detection plus a topological sort. Input order does not matter:
// workflows are processed in filename order so the output is deterministic
// for a given bundle.
func Analyze(defs []*models.WorkflowDefinition) Analysis {
	sorted := make([]*models.WorkflowDefinition, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	analysis := Analysis{
		Cycles:      make([][]string, 0),
		Order:       make([]string, 0, len(sorted)),
		CyclicNodes: make([]string, 0),
		Warnings:    make([]string, 0),
	}

	inBundle := make(map[string]struct{}, len(sorted))
	for _, def := range sorted {
		inBundle[def.Name] = struct{}{}
	}

	adjacency := make(map[string][]string, len(sorted))
	roots := make([]string, 0, len(sorted))

	for _, def := range sorted {
		if _, dup := adjacency[def.Name]; dup {
			continue
		}

		roots = append(roots, def.Name)

		deps := make([]string, 0, len(def.Dependencies))

		for _, dep := range def.Dependencies {
			if _, ok := inBundle[dep]; !ok {
				analysis.Warnings = append(analysis.Warnings,
					fmt.Sprintf("workflow %q depends on %q which is not in the bundle", def.Name, dep))

				continue
			}

			if dep == def.Name {
				analysis.HasCycle = true
				analysis.Cycles = append(analysis.Cycles, []string{def.Name})

				continue
			}

			deps = append(deps, dep)
		}

		sort.Strings(deps)
		adjacency[def.Name] = deps
	}

	colors := make(map[string]color, len(roots))
	cyclic := make(map[string]struct{})

	for _, c := range analysis.Cycles { // self-loops found above
		cyclic[c[0]] = struct{}{}
	}

	finished := make([]string, 0, len(roots))

	for _, root := range roots {
		if colors[root] != white {
			continue
		}

		visit(root, adjacency, colors, cyclic, &analysis, &finished)
	}

	// Post-order finish times: every dependency finishes before its
	// dependents, so the finish sequence is already the import order.
	for _, name := range finished {
		if _, isCyclic := cyclic[name]; isCyclic {
			continue
		}

		analysis.Order = append(analysis.Order, name)
	}

	for name := range cyclic {
		analysis.CyclicNodes = append(analysis.CyclicNodes, name)
	}

	sort.Strings(analysis.CyclicNodes)

	return analysis
}

type frame struct {
	name string
	next int
}

// visit runs an iterative three-color DFS from root. A back-edge to a gray
// node denotes a cycle, reconstructed by walking the current path from the
// back-edge target to the top of the stack.
func visit(
	root string,
	adjacency map[string][]string,
	colors map[string]color,
	cyclic map[string]struct{},
	analysis *Analysis,
	finished *[]string,
) {
	stack := []frame{{name: root}}
	path := []string{root}
	colors[root] = gray

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		deps := adjacency[top.name]

		if top.next < len(deps) {
			dep := deps[top.next]
			top.next++

			switch colors[dep] {
			case white:
				colors[dep] = gray
				stack = append(stack, frame{name: dep})
				path = append(path, dep)
			case gray:
				cycle := extractCycle(path, dep)
				analysis.HasCycle = true
				analysis.Cycles = append(analysis.Cycles, cycle)

				for _, name := range cycle {
					cyclic[name] = struct{}{}
				}
			case black:
				// Already finished, nothing to do.
			}

			continue
		}

		colors[top.name] = black
		*finished = append(*finished, top.name)
		stack = stack[:len(stack)-1]
		path = path[:len(path)-1]
	}
}

// extractCycle copies the segment of the DFS path from target to the current
// node, which is exactly the cycle closed by the back-edge.
func extractCycle(path []string, target string) []string {
	start := 0

	for i, name := range path {
		if name == target {
			start = i

			break
		}
	}

	cycle := make([]string, len(path)-start)
	copy(cycle, path[start:])

	return cycle
}

// Level is the dependency depth of a workflow. Depth 0 means no in-bundle
// dependencies. CycleBroken marks levels computed through a cycle, where a
// revisited node was treated as depth 0 to guarantee termination; such a
// depth is a degenerate value, not a real leaf level.
type Level struct {
	Depth       int  `json:"depth"`
	CycleBroken bool `json:"cycle_broken,omitempty"`
}

// Levels computes the dependency level of every bundled workflow:
// level(w) = 0 with no in-bundle dependencies, else 1 + max level of its
// dependencies.
func Levels(defs []*models.WorkflowDefinition) map[string]Level {
	names := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		names[def.Name] = struct{}{}
	}

	inBundle := make(map[string][]string, len(defs))

	for _, def := range defs {
		deps := make([]string, 0, len(def.Dependencies))

		for _, dep := range def.Dependencies {
			if dep == def.Name {
				continue
			}

			if _, ok := names[dep]; !ok {
				continue
			}

			deps = append(deps, dep)
		}

		inBundle[def.Name] = deps
	}

	memo := make(map[string]Level, len(defs))
	inPath := make(map[string]bool, len(defs))

	var compute func(name string) Level

	compute = func(name string) Level {
		if level, ok := memo[name]; ok {
			return level
		}

		if inPath[name] {
			// Revisited on the current path: break the cycle.
			return Level{Depth: 0, CycleBroken: true}
		}

		deps := inBundle[name]

		inPath[name] = true
		level := Level{}

		for _, dep := range deps {
			depLevel := compute(dep)

			if depLevel.CycleBroken {
				level.CycleBroken = true
			}

			if depLevel.Depth+1 > level.Depth {
				level.Depth = depLevel.Depth + 1
			}
		}

		inPath[name] = false
		memo[name] = level

		return level
	}

	for name := range inBundle {
		compute(name)
	}

	return memo
}
