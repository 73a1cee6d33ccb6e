// Package schema provides relationship graph analysis for write ordering
package schema

import (
	"fmt"
	"strings"
)

// RelationshipGraph represents the reference dependency graph between classes
type RelationshipGraph struct {
	nodes map[string]*ClassSchema
	order []string
	edges map[string][]string // class -> referenced classes
}

// NewRelationshipGraph creates a new relationship graph.
// order fixes iteration so results are deterministic.
func NewRelationshipGraph(schemas map[string]*ClassSchema, order []string) *RelationshipGraph {
	graph := &RelationshipGraph{
		nodes: schemas,
		order: order,
		edges: make(map[string][]string),
	}

	// A referencing row needs its target row to exist first
	for _, name := range order {
		for _, ref := range schemas[name].References {
			if ref.TargetClass == name {
				continue
			}
			if _, ok := schemas[ref.TargetClass]; ok {
				graph.edges[name] = append(graph.edges[name], ref.TargetClass)
			}
		}
	}

	return graph
}

// DetectCycles detects reference cycles in the graph
func (g *RelationshipGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				dfs(neighbor, path)
			} else if recursionStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		recursionStack[node] = false
	}

	for _, node := range g.order {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// TopologicalSort returns classes with dependencies first.
// Nodes left over by a cycle are appended in registration order.
func (g *RelationshipGraph) TopologicalSort() []string {
	outDegree := make(map[string]int)
	for _, node := range g.order {
		outDegree[node] = len(g.edges[node])
	}

	reverseEdges := make(map[string][]string)
	for _, source := range g.order {
		for _, target := range g.edges[source] {
			reverseEdges[target] = append(reverseEdges[target], source)
		}
	}

	var queue []string
	for _, node := range g.order {
		if outDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	emitted := make(map[string]bool)
	result := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)
		emitted[node] = true

		for _, dependent := range reverseEdges[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	for _, node := range g.order {
		if !emitted[node] {
			result = append(result, node)
		}
	}
	return result
}

// GetDependencies returns all direct dependencies of a class
func (g *RelationshipGraph) GetDependencies(class string) []string {
	deps, exists := g.edges[class]
	if !exists {
		return []string{}
	}
	return deps
}

// FormatCycles formats cycle information for diagnostics
func FormatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s",
			i+1,
			strings.Join(cycle, " -> "),
			cycle[0]))
	}
	return b.String()
}
