// Package depgraph builds and queries the directed dependency graph of a
// workspace: workspace packages and the external dependencies they
// declare, with forward and reverse traversal, reachability, topological
// ordering, and subgraph extraction.
package depgraph

import (
	"slices"
	"sync"

	"github.com/workgraph/depsync/pkg/errors"
)

// Node represents one name in the dependency graph. Workspace packages
// and external dependencies share a single namespace; the Workspace flag
// distinguishes them. External nodes are always leaves; their own
// dependencies are never expanded.
type Node struct {
	Name      string `json:"name"`
	Workspace bool   `json:"workspace,omitempty"`
}

// Edge represents a directed "From depends on To" relationship.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is a mutable adjacency structure keyed by name. A reverse-edge
// index is maintained alongside the forward edges so backward traversal
// does not rescan the edge list.
//
// Graph methods that only read are safe for concurrent use after
// construction; reachability memoization is internally locked.
type Graph struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string // name -> dependency names
	incoming map[string][]string // name -> dependent names

	memoMu sync.Mutex
	reach  map[string]map[string]bool // memoized reachable sets
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		reach:    make(map[string]map[string]bool),
	}
}

// AddNode adds a node if its name is not already present. Adding an
// existing name is a no-op that reports false; re-adding a node as a
// workspace node upgrades the flag (a name may be seen as an external
// dependency before its own manifest is visited).
func (g *Graph) AddNode(n Node) bool {
	if existing, ok := g.nodes[n.Name]; ok {
		if n.Workspace && !existing.Workspace {
			existing.Workspace = true
		}
		return false
	}
	node := n
	g.nodes[n.Name] = &node
	return true
}

// AddEdge adds a directed edge between two existing nodes. Duplicate
// edges between the same pair are collapsed.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return errors.New(errors.ErrCodeInvalidInput, "unknown source node %s", e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return errors.New(errors.ErrCodeInvalidInput, "unknown target node %s", e.To)
	}
	if slices.Contains(g.outgoing[e.From], e.To) {
		return nil
	}
	g.edges = append(g.edges, e)
	g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
	g.incoming[e.To] = append(g.incoming[e.To], e.From)
	return nil
}

// Node returns the node with the given name and true, or nil and false.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Has reports whether name is present in the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Nodes returns all nodes sorted by name.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Dependencies returns the names this node depends on, sorted.
func (g *Graph) Dependencies(name string) []string {
	deps := slices.Clone(g.outgoing[name])
	slices.Sort(deps)
	return deps
}

// Dependents returns the names that depend on this node, sorted. This is
// the reverse-index lookup backing backward traversal.
func (g *Graph) Dependents(name string) []string {
	parents := slices.Clone(g.incoming[name])
	slices.Sort(parents)
	return parents
}

// verifySeeds checks that every seed exists in the graph, reporting all
// missing names at once rather than failing on the first.
func (g *Graph) verifySeeds(seeds []string) error {
	var missing []string
	for _, s := range seeds {
		if !g.Has(s) {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return errors.New(errors.ErrCodeSeedNotFound, "not in graph: %v", missing)
	}
	return nil
}
