package engine

import (
	"fmt"

	"github.com/reactant-dev/reactant/internal/analysis"
	"github.com/reactant-dev/reactant/internal/domain"
	"github.com/reactant-dev/reactant/internal/domain/errors"
)

// Topology is the authoritative container for one notebook: it owns the
// cells, the user-visible display order, the global scope, and the derived
// dependency graph. All mutations go through it so the acyclicity invariant
// can be enforced atomically; a change that would introduce a cycle is
// rejected and the prior state restored.
//
// Topology is not safe for concurrent use; the coordinator serializes access
// per notebook.
type Topology struct {
	cells        map[string]*domain.Cell
	displayOrder []string
	scope        domain.Scope
	graph        *Graph
	analyzer     *analysis.Analyzer
}

// NewTopology creates an empty Topology.
func NewTopology() *Topology {
	return &Topology{
		cells:    make(map[string]*domain.Cell),
		scope:    domain.NewScope(),
		graph:    NewGraph(),
		analyzer: analysis.NewAnalyzer(),
	}
}

// Cell returns the cell with the given id.
func (t *Topology) Cell(id string) (*domain.Cell, error) {
	cell, ok := t.cells[id]
	if !ok {
		return nil, errors.NewCellNotFoundError(id)
	}
	return cell, nil
}

// Cells returns the cells in display order.
func (t *Topology) Cells() []*domain.Cell {
	out := make([]*domain.Cell, 0, len(t.cells))
	for _, id := range t.displayOrder {
		out = append(out, t.cells[id])
	}
	return out
}

// DisplayOrder returns a copy of the user-visible cell sequence.
func (t *Topology) DisplayOrder() []string {
	out := make([]string, len(t.displayOrder))
	copy(out, t.displayOrder)
	return out
}

// Scope returns the notebook-global symbol scope.
func (t *Topology) Scope() domain.Scope {
	return t.scope
}

// Deps returns the ids of the cells id depends on.
func (t *Topology) Deps(id string) domain.StringSet {
	return t.graph.Deps(id)
}

// RDeps returns the ids of the cells depending on id.
func (t *Topology) RDeps(id string) domain.StringSet {
	return t.graph.RDeps(id)
}

// AddCell analyzes the cell, appends it to the display order and inserts it.
// A parse failure still adds the cell (with empty derived sets) so the user
// can fix it in place; the error is reported. A cell whose bindings would
// close a dependency cycle is rejected atomically.
func (t *Topology) AddCell(cell *domain.Cell) error {
	if _, exists := t.cells[cell.ID]; exists {
		return fmt.Errorf("cell %s already exists", cell.ID)
	}

	scopeBefore := t.scope.Clone()
	analyzeErr := t.analyzer.Analyze(cell, t.scope)

	t.cells[cell.ID] = cell
	t.displayOrder = append(t.displayOrder, cell.ID)
	t.graph.Rebuild(t.cells, t.scope)

	if analyzeErr != nil {
		return analyzeErr
	}

	if t.graph.HasCycle() {
		delete(t.cells, cell.ID)
		t.displayOrder = t.displayOrder[:len(t.displayOrder)-1]
		t.scope = scopeBefore
		t.graph.Rebuild(t.cells, t.scope)
		return errors.NewCycleError(cell.ID)
	}
	return nil
}

// RemoveCell deletes the cell and unbinds its names. Cells that required
// those names keep an unresolved requirement; the evaluator surfaces the
// broken reference at run time.
func (t *Topology) RemoveCell(id string) error {
	if _, ok := t.cells[id]; !ok {
		return errors.NewCellNotFoundError(id)
	}
	delete(t.cells, id)
	for i, existing := range t.displayOrder {
		if existing == id {
			t.displayOrder = append(t.displayOrder[:i], t.displayOrder[i+1:]...)
			break
		}
	}
	t.scope.RemoveCell(id)
	t.graph.Rebuild(t.cells, t.scope)
	return nil
}

// UpdateCell replaces the cell's source and reanalyzes it. On parse failure
// the new content is kept with empty derived sets (the user is typing through
// a transient error); on a would-be cycle the whole update is rolled back.
func (t *Topology) UpdateCell(id, newSource string) error {
	cell, ok := t.cells[id]
	if !ok {
		return errors.NewCellNotFoundError(id)
	}

	cellBefore := cell.Clone()
	scopeBefore := t.scope.Clone()

	err := t.analyzer.ReanalyzeOnUpdate(cell, newSource, t.scope)
	t.graph.Rebuild(t.cells, t.scope)
	if err != nil {
		return err
	}

	if t.graph.HasCycle() {
		cell.Restore(cellBefore)
		t.scope = scopeBefore
		t.graph.Rebuild(t.cells, t.scope)
		return errors.NewCycleError(id)
	}
	return nil
}

// Reorder replaces the display order. The permutation must contain exactly
// the current cell ids.
func (t *Topology) Reorder(ids []string) error {
	if len(ids) != len(t.displayOrder) {
		return &errors.ReorderError{Message: fmt.Sprintf(
			"expected %d cell ids, got %d", len(t.displayOrder), len(ids))}
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := t.cells[id]; !ok {
			return &errors.ReorderError{Message: fmt.Sprintf("unknown cell %s", id)}
		}
		if seen[id] {
			return &errors.ReorderError{Message: fmt.Sprintf("duplicate cell %s", id)}
		}
		seen[id] = true
	}
	t.displayOrder = append(t.displayOrder[:0:0], ids...)
	return nil
}

// TopologicalSort orders every cell so that dependencies precede dependents.
// Ties are broken by display-order position, so the result is deterministic.
func (t *Topology) TopologicalSort() ([]string, error) {
	all := domain.NewStringSet(t.displayOrder...)
	return t.sortSubset(all)
}

// sortSubset runs Kahn's algorithm over the subgraph induced by subset. The
// ready queue is drained in display order.
func (t *Topology) sortSubset(subset domain.StringSet) ([]string, error) {
	indeg := make(map[string]int, subset.Len())
	for id := range subset {
		for dep := range t.graph.Deps(id) {
			if subset.Has(dep) {
				indeg[id]++
			}
		}
	}

	order := make([]string, 0, subset.Len())
	emitted := make(map[string]bool, subset.Len())
	for len(order) < subset.Len() {
		picked := ""
		for _, id := range t.displayOrder {
			if subset.Has(id) && !emitted[id] && indeg[id] == 0 {
				picked = id
				break
			}
		}
		if picked == "" {
			return nil, errors.NewCycleError("")
		}
		emitted[picked] = true
		order = append(order, picked)
		for dependent := range t.graph.RDeps(picked) {
			if subset.Has(dependent) {
				indeg[dependent]--
			}
		}
	}
	return order, nil
}
