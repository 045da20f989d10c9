package depgraph

import (
	"maps"
	"slices"
)

// Walk is the result of a depth-bounded traversal: the nodes touched and
// the edges walked, suitable for rendering or inspection.
type Walk struct {
	Nodes []*Node `json:"nodes"`
	Links []Edge  `json:"links"`
}

// ReachableFrom returns the set of names reachable from name, including
// name itself. The result is memoized per node, so repeated queries for
// the same name are answered from cache. Cycles are tolerated.
func (g *Graph) ReachableFrom(name string) (map[string]bool, error) {
	if err := g.verifySeeds([]string{name}); err != nil {
		return nil, err
	}

	g.memoMu.Lock()
	defer g.memoMu.Unlock()
	if memo, ok := g.reach[name]; ok {
		return maps.Clone(memo), nil
	}

	seen := make(map[string]bool)
	stack := []string{name}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		// A node whose reachable set is already known contributes it
		// wholesale; its subtree needs no re-walk.
		if memo, ok := g.reach[cur]; ok {
			maps.Copy(seen, memo)
			continue
		}
		seen[cur] = true
		stack = append(stack, g.outgoing[cur]...)
	}

	g.reach[name] = seen
	return maps.Clone(seen), nil
}

// DependsOn reports whether from transitively depends on to. A package
// is considered to depend on itself.
func (g *Graph) DependsOn(from, to string) (bool, error) {
	reach, err := g.ReachableFrom(from)
	if err != nil {
		return false, err
	}
	return reach[to], nil
}

// TraverseFrom walks the dependency direction from the seeds, at most
// maxDepth edges deep. A maxDepth < 0 means unbounded. Cycles are
// tolerated: each node is expanded once.
func (g *Graph) TraverseFrom(seeds []string, maxDepth int) (*Walk, error) {
	return g.traverse(seeds, maxDepth, func(name string) []string {
		return g.Dependencies(name)
	}, false)
}

// TraverseTo walks the dependent direction toward the seeds using the
// reverse-edge index: which packages, directly or transitively, depend
// on the seeds. A maxDepth < 0 means unbounded.
func (g *Graph) TraverseTo(seeds []string, maxDepth int) (*Walk, error) {
	return g.traverse(seeds, maxDepth, func(name string) []string {
		return g.Dependents(name)
	}, true)
}

func (g *Graph) traverse(seeds []string, maxDepth int, next func(string) []string, reversed bool) (*Walk, error) {
	if err := g.verifySeeds(seeds); err != nil {
		return nil, err
	}

	type frame struct {
		name  string
		depth int
	}

	w := &Walk{}
	seen := make(map[string]bool)
	queue := make([]frame, 0, len(seeds))
	sorted := slices.Clone(seeds)
	slices.Sort(sorted)
	for _, s := range sorted {
		queue = append(queue, frame{name: s})
	}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if seen[f.name] {
			continue
		}
		seen[f.name] = true
		w.Nodes = append(w.Nodes, g.nodes[f.name])

		if maxDepth >= 0 && f.depth >= maxDepth {
			continue
		}
		for _, n := range next(f.name) {
			if reversed {
				w.Links = append(w.Links, Edge{From: n, To: f.name})
			} else {
				w.Links = append(w.Links, Edge{From: f.name, To: n})
			}
			queue = append(queue, frame{name: n, depth: f.depth + 1})
		}
	}
	return w, nil
}

// Subgraph returns a new graph containing everything reachable from the
// seeds, with all edges between the retained nodes.
func (g *Graph) Subgraph(seeds []string) (*Graph, error) {
	if err := g.verifySeeds(seeds); err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	for _, s := range seeds {
		reach, err := g.ReachableFrom(s)
		if err != nil {
			return nil, err
		}
		maps.Copy(keep, reach)
	}

	sub := New()
	for name := range keep {
		sub.AddNode(*g.nodes[name])
	}
	for _, e := range g.edges {
		if keep[e.From] && keep[e.To] {
			if err := sub.AddEdge(e); err != nil {
				return nil, err
			}
		}
	}
	return sub, nil
}
