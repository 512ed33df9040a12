// SPDX-License-Identifier: MPL-2.0

// Package dag orders package dependency graphs. Nodes are package names and
// an edge records that one package depends on another; every ordering this
// package returns lists dependencies before their dependents.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrCycle is the sentinel error wrapped by CycleError.
	ErrCycle = errors.New("dependency cycle")
	// ErrMissingNode is the sentinel error wrapped by MissingNodeError.
	ErrMissingNode = errors.New("missing dependency")
)

type (
	// CycleError indicates that the graph contains a cycle. Cycle lists the
	// nodes left unordered, in insertion order.
	CycleError struct {
		Cycle []string
	}

	// MissingNodeError reports a dependency on a node that was never declared.
	MissingNodeError struct {
		From string
		To   string
	}

	// Graph is a dependency graph. Declared nodes keep their insertion order,
	// which makes every ordering deterministic.
	Graph struct {
		nodes    []string
		declared map[string]bool
		// deps maps a node to the nodes it depends on, in insertion order.
		deps map[string][]string
	}
)

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCycle so callers can use errors.Is for programmatic detection.
func (e *CycleError) Unwrap() error { return ErrCycle }

// Error implements the error interface.
func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("%q depends on %q, which is not declared", e.From, e.To)
}

// Unwrap returns ErrMissingNode so callers can use errors.Is for programmatic detection.
func (e *MissingNodeError) Unwrap() error { return ErrMissingNode }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		declared: make(map[string]bool),
		deps:     make(map[string][]string),
	}
}

// AddNode declares a node. Declaring a node twice is a no-op.
func (g *Graph) AddNode(name string) {
	if g.declared[name] {
		return
	}
	g.declared[name] = true
	g.nodes = append(g.nodes, name)
}

// AddDependency records that node depends on dep. node is declared
// implicitly; dep is not, so a dependency on an unknown package is caught by
// Validate. Duplicate edges are ignored.
func (g *Graph) AddDependency(node, dep string) {
	g.AddNode(node)
	if slices.Contains(g.deps[node], dep) {
		return
	}
	g.deps[node] = append(g.deps[node], dep)
}

// Has reports whether name is declared.
func (g *Graph) Has(name string) bool { return g.declared[name] }

// Len returns the number of declared nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Validate returns a *MissingNodeError for the first edge, in insertion
// order, that points at an undeclared node.
func (g *Graph) Validate() error {
	for _, node := range g.nodes {
		for _, dep := range g.deps[node] {
			if !g.declared[dep] {
				return &MissingNodeError{From: node, To: dep}
			}
		}
	}
	return nil
}

// Closure returns the subgraph of root and everything it transitively
// depends on. Node order in the subgraph follows the original graph.
func (g *Graph) Closure(root string) (*Graph, error) {
	if !g.declared[root] {
		return nil, &MissingNodeError{From: root, To: root}
	}
	reach := map[string]bool{root: true}
	stack := []string{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range g.deps[node] {
			if !g.declared[dep] {
				return nil, &MissingNodeError{From: node, To: dep}
			}
			if !reach[dep] {
				reach[dep] = true
				stack = append(stack, dep)
			}
		}
	}

	sub := New()
	for _, node := range g.nodes {
		if !reach[node] {
			continue
		}
		sub.AddNode(node)
		for _, dep := range g.deps[node] {
			sub.AddDependency(node, dep)
		}
	}
	return sub, nil
}

// Depths returns the length of the shortest dependency path from root to
// every node reachable from it. root has depth 0.
func (g *Graph) Depths(root string) map[string]int {
	depth := map[string]int{}
	if !g.declared[root] {
		return depth
	}
	depth[root] = 0
	queue := []string{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, dep := range g.deps[node] {
			if _, seen := depth[dep]; seen || !g.declared[dep] {
				continue
			}
			depth[dep] = depth[node] + 1
			queue = append(queue, dep)
		}
	}
	return depth
}

// TopologicalSort returns every declared node with dependencies first, using
// Kahn's algorithm. Nodes that become ready together keep insertion order.
// Edges to undeclared nodes are ignored; call Validate first to reject them.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	// pending counts unordered dependencies; dependents is the reverse edge set.
	pending := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for _, node := range g.nodes {
		for _, dep := range g.deps[node] {
			if !g.declared[dep] {
				continue
			}
			pending[node]++
			dependents[dep] = append(dependents[dep], node)
		}
	}

	var queue []string
	for _, node := range g.nodes {
		if pending[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dependent := range dependents[node] {
			pending[dependent]--
			if pending[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycle []string
		for _, node := range g.nodes {
			if pending[node] > 0 {
				cycle = append(cycle, node)
			}
		}
		return nil, &CycleError{Cycle: cycle}
	}
	return result, nil
}
