package engine

import (
	"github.com/reactant-dev/reactant/internal/domain"
	"github.com/reactant-dev/reactant/internal/domain/errors"
)

// Plan selects the cells that must run when target is executed: the target,
// its transitive dependencies (so required inputs are fresh) and its
// transitive reactive dependents (so downstream views update), ordered
// topologically with the display-order tie-break.
//
// Markdown cells plan nothing. Non-reactive code cells plan only themselves,
// and are never pulled into another cell's plan: their whole point is that
// they run only when asked.
func (t *Topology) Plan(targetID string) ([]string, error) {
	target, ok := t.cells[targetID]
	if !ok {
		return nil, errors.NewCellNotFoundError(targetID)
	}
	if target.Kind == domain.CellKindMarkdown {
		return []string{}, nil
	}
	if target.Kind == domain.CellKindNonReactiveCode {
		return []string{targetID}, nil
	}

	set := domain.NewStringSet(targetID)

	stack := []string{targetID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dep := range t.graph.Deps(id) {
			if set.Has(dep) || !t.isReactive(dep) {
				continue
			}
			set.Add(dep)
			stack = append(stack, dep)
		}
	}

	stack = []string{targetID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dependent := range t.graph.RDeps(id) {
			if set.Has(dependent) || !t.isReactive(dependent) {
				continue
			}
			set.Add(dependent)
			stack = append(stack, dependent)
		}
	}

	return t.sortSubset(set)
}

func (t *Topology) isReactive(id string) bool {
	cell, ok := t.cells[id]
	return ok && cell.Kind == domain.CellKindReactiveCode
}
