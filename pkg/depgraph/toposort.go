package depgraph

import (
	"slices"
	"strings"

	"github.com/workgraph/depsync/pkg/errors"
)

// SortOptions controls topological ordering.
type SortOptions struct {
	// WorkspaceOnly restricts the returned list to workspace packages.
	// External leaves are still visited so ordering stays stable, they
	// are just filtered from the result.
	WorkspaceOnly bool
}

// visit colors for cycle detection.
const (
	white = iota // unvisited
	gray         // on the current DFS path
	black        // fully explored
)

// TopoSort returns the names reachable from the seeds ordered so that
// every dependency appears before its dependents. A nil or empty seed
// list sorts the entire graph. Seeds that are not in the graph are
// reported together in one error, and any dependency cycle is fatal:
// the error names the full cycle path.
//
// The order is deterministic: seeds and each node's dependencies are
// explored in lexicographic order.
func (g *Graph) TopoSort(seeds []string, opts SortOptions) ([]string, error) {
	if len(seeds) == 0 {
		for _, n := range g.Nodes() {
			seeds = append(seeds, n.Name)
		}
	} else {
		if err := g.verifySeeds(seeds); err != nil {
			return nil, err
		}
		seeds = slices.Clone(seeds)
		slices.Sort(seeds)
	}

	s := &sorter{g: g, color: make(map[string]int, len(g.nodes))}
	for _, seed := range seeds {
		if err := s.visit(seed); err != nil {
			return nil, err
		}
	}

	if !opts.WorkspaceOnly {
		return s.order, nil
	}
	filtered := s.order[:0]
	for _, name := range s.order {
		if g.nodes[name].Workspace {
			filtered = append(filtered, name)
		}
	}
	return filtered, nil
}

type sorter struct {
	g     *Graph
	color map[string]int
	path  []string
	order []string
}

func (s *sorter) visit(name string) error {
	switch s.color[name] {
	case black:
		return nil
	case gray:
		return s.cycleError(name)
	}

	s.color[name] = gray
	s.path = append(s.path, name)

	for _, dep := range s.g.Dependencies(name) {
		if err := s.visit(dep); err != nil {
			return err
		}
	}

	s.path = s.path[:len(s.path)-1]
	s.color[name] = black
	s.order = append(s.order, name)
	return nil
}

// cycleError reports the closed walk that led back to name, e.g.
// "a -> b -> c -> a".
func (s *sorter) cycleError(name string) error {
	start := slices.Index(s.path, name)
	cycle := append(slices.Clone(s.path[start:]), name)
	return errors.New(errors.ErrCodeCycle, "dependency cycle: %s", strings.Join(cycle, " -> "))
}
