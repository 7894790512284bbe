package engine

import (
	"github.com/reactant-dev/reactant/internal/domain"
)

// Graph holds the per-cell dependency and dependent sets derived from the
// cells' requirements and the notebook scope. It is never a source of truth:
// every mutation of cells or scope is followed by a Rebuild.
type Graph struct {
	deps  map[string]domain.StringSet
	rdeps map[string]domain.StringSet
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		deps:  make(map[string]domain.StringSet),
		rdeps: make(map[string]domain.StringSet),
	}
}

// Rebuild derives the full edge set from scratch. A cell depends on the owner
// of each of its requirements; unresolved requirements produce no edge.
func (g *Graph) Rebuild(cells map[string]*domain.Cell, scope domain.Scope) {
	g.deps = make(map[string]domain.StringSet, len(cells))
	g.rdeps = make(map[string]domain.StringSet, len(cells))
	for id := range cells {
		g.deps[id] = domain.NewStringSet()
		g.rdeps[id] = domain.NewStringSet()
	}

	for id, cell := range cells {
		if !cell.Kind.IsCode() {
			continue
		}
		for name := range cell.Requirements {
			owner, ok := scope.Owner(name)
			if !ok || owner == id {
				continue
			}
			if _, exists := cells[owner]; !exists {
				continue
			}
			g.deps[id].Add(owner)
			g.rdeps[owner].Add(id)
		}
	}
}

// Deps returns the ids of the cells id depends on.
func (g *Graph) Deps(id string) domain.StringSet {
	return g.deps[id]
}

// RDeps returns the ids of the cells that depend on id.
func (g *Graph) RDeps(id string) domain.StringSet {
	return g.rdeps[id]
}

// HasCycle runs Kahn's algorithm over the whole graph and reports whether any
// node was left unvisited.
func (g *Graph) HasCycle() bool {
	indeg := make(map[string]int, len(g.deps))
	for id := range g.deps {
		indeg[id] = g.deps[id].Len()
	}
	queue := make([]string, 0, len(indeg))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for m := range g.rdeps[n] {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	return visited != len(g.deps)
}
