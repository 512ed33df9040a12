// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// build creates a graph from "node: deps..." pairs, declaring nodes in order.
func build(edges [][]string) *Graph {
	g := New()
	for _, e := range edges {
		g.AddNode(e[0])
		for _, dep := range e[1:] {
			g.AddDependency(e[0], dep)
		}
	}
	return g
}

func TestTopologicalSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges [][]string
		want  []string
	}{
		{name: "empty", edges: nil, want: nil},
		{name: "single", edges: [][]string{{"a"}}, want: []string{"a"}},
		{
			name:  "linear chain",
			edges: [][]string{{"app", "lib"}, {"lib", "core"}, {"core"}},
			want:  []string{"core", "lib", "app"},
		},
		{
			name:  "diamond",
			edges: [][]string{{"app", "left", "right"}, {"left", "base"}, {"right", "base"}, {"base"}},
			want:  []string{"base", "left", "right", "app"},
		},
		{
			name:  "disconnected keeps insertion order",
			edges: [][]string{{"x"}, {"b", "a"}, {"a"}, {"y"}},
			want:  []string{"x", "a", "y", "b"},
		},
		{
			name:  "duplicate edges",
			edges: [][]string{{"b", "a", "a"}, {"a"}},
			want:  []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := build(tt.edges).TopologicalSort()
			if err != nil {
				t.Fatalf("TopologicalSort: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTopologicalSort_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges [][]string
		want  []string
	}{
		{name: "self loop", edges: [][]string{{"a", "a"}}, want: []string{"a"}},
		{name: "two nodes", edges: [][]string{{"a", "b"}, {"b", "a"}}, want: []string{"a", "b"}},
		{name: "three nodes with tail", edges: [][]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"d", "a"}}, want: []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := build(tt.edges).TopologicalSort()
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("error = %v, want *CycleError", err)
			}
			if !errors.Is(err, ErrCycle) {
				t.Error("CycleError must wrap ErrCycle")
			}
			if !slices.Equal(cycleErr.Cycle, tt.want) {
				t.Errorf("Cycle = %v, want %v", cycleErr.Cycle, tt.want)
			}
		})
	}
}

func TestValidate_MissingNode(t *testing.T) {
	t.Parallel()

	g := build([][]string{{"app", "lib", "ghost"}, {"lib"}})
	err := g.Validate()
	var missing *MissingNodeError
	if !errors.As(err, &missing) {
		t.Fatalf("Validate = %v, want *MissingNodeError", err)
	}
	if missing.From != "app" || missing.To != "ghost" {
		t.Errorf("MissingNodeError = %+v", missing)
	}
	if !errors.Is(err, ErrMissingNode) {
		t.Error("MissingNodeError must wrap ErrMissingNode")
	}
}

func TestClosure(t *testing.T) {
	t.Parallel()

	g := build([][]string{
		{"app", "http", "log"},
		{"cli", "log"},
		{"http", "net"},
		{"log"},
		{"net"},
		{"unused", "net"},
	})

	sub, err := g.Closure("app")
	if err != nil {
		t.Fatalf("Closure: %v", err)
	}
	order, err := sub.TopologicalSort()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"log", "net", "http", "app"}, order); diff != "" {
		t.Errorf("closure order mismatch (-want +got):\n%s", diff)
	}
	if sub.Has("cli") || sub.Has("unused") {
		t.Error("closure contains unreachable nodes")
	}

	if _, err := g.Closure("nope"); !errors.Is(err, ErrMissingNode) {
		t.Errorf("Closure(nope) = %v, want ErrMissingNode", err)
	}
	if _, err := build([][]string{{"a", "ghost"}}).Closure("a"); !errors.Is(err, ErrMissingNode) {
		t.Errorf("Closure over a missing dependency = %v, want ErrMissingNode", err)
	}
}

func TestDepths(t *testing.T) {
	t.Parallel()

	g := build([][]string{
		{"app", "http", "log"},
		{"http", "net", "log"},
		{"net", "log"},
		{"log"},
	})

	want := map[string]int{"app": 0, "http": 1, "log": 1, "net": 2}
	if diff := cmp.Diff(want, g.Depths("app")); diff != "" {
		t.Errorf("Depths mismatch (-want +got):\n%s", diff)
	}
	if got := g.Depths("missing"); len(got) != 0 {
		t.Errorf("Depths(missing) = %v, want empty", got)
	}
}

func TestCycleError_Message(t *testing.T) {
	t.Parallel()

	err := &CycleError{Cycle: []string{"A", "B", "C"}}
	if got, want := err.Error(), "dependency cycle detected: A -> B -> C"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
