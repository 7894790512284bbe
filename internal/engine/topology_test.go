package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactant-dev/reactant/internal/domain"
	nberrors "github.com/reactant-dev/reactant/internal/domain/errors"
)

func addReactive(t *testing.T, topo *Topology, source string) *domain.Cell {
	t.Helper()
	cell := domain.NewCell(domain.CellKindReactiveCode, source)
	require.NoError(t, topo.AddCell(cell))
	return cell
}

// checkInvariants asserts the universal invariants after an operation: scope
// entries point at real bindings, bindings and requirements are disjoint, the
// display order matches the cell set, and the graph is acyclic.
func checkInvariants(t *testing.T, topo *Topology) {
	t.Helper()

	for name, owner := range topo.Scope() {
		cell, err := topo.Cell(owner)
		require.NoError(t, err, "scope entry %s points at missing cell", name)
		assert.True(t, cell.Bindings.Has(name), "scope entry %s not in owner bindings", name)
	}

	order := topo.DisplayOrder()
	seen := map[string]bool{}
	for _, id := range order {
		assert.False(t, seen[id], "duplicate id in display order")
		seen[id] = true
		_, err := topo.Cell(id)
		assert.NoError(t, err)
	}
	assert.Len(t, order, len(topo.Cells()))

	for _, cell := range topo.Cells() {
		for name := range cell.Bindings {
			assert.False(t, cell.Requirements.Has(name),
				"name %s is both binding and requirement", name)
		}
		for dep := range topo.Deps(cell.ID) {
			found := false
			for name := range cell.Requirements {
				if owner, ok := topo.Scope().Owner(name); ok && owner == dep {
					found = true
					break
				}
			}
			assert.True(t, found, "dependency edge without a witnessing requirement")
		}
	}

	_, err := topo.TopologicalSort()
	assert.NoError(t, err, "graph must stay acyclic")
}

func TestTopology_TrivialChain(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = 1")
	b := addReactive(t, topo, "b = a + 1")

	assert.ElementsMatch(t, []string{a.ID}, topo.Deps(b.ID).Values())
	assert.ElementsMatch(t, []string{b.ID}, topo.RDeps(a.ID).Values())

	plan, err := topo.Plan(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, plan)

	plan, err = topo.Plan(b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, plan)

	checkInvariants(t, topo)
}

func TestTopology_ForwardReference(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = b + 1")
	b := addReactive(t, topo, "b = 2")

	assert.ElementsMatch(t, []string{b.ID}, topo.Deps(a.ID).Values())
	assert.ElementsMatch(t, []string{a.ID}, topo.RDeps(b.ID).Values())

	plan, err := topo.Plan(b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, plan)

	checkInvariants(t, topo)
}

func TestTopology_CycleRejectedOnAdd(t *testing.T) {
	topo := NewTopology()
	addReactive(t, topo, "a = 1")
	addReactive(t, topo, "b = a + c")
	addReactive(t, topo, "c = d")

	orderBefore := topo.DisplayOrder()
	scopeBefore := topo.Scope().Clone()

	d := domain.NewCell(domain.CellKindReactiveCode, "d = b")
	err := topo.AddCell(d)

	require.Error(t, err)
	assert.True(t, nberrors.IsCycle(err))
	assert.Equal(t, orderBefore, topo.DisplayOrder())
	assert.Equal(t, scopeBefore, topo.Scope())
	_, err = topo.Cell(d.ID)
	assert.Error(t, err)

	checkInvariants(t, topo)
}

func TestTopology_CycleRejectedOnUpdate(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = 1")
	b := addReactive(t, topo, "b = a + 1")

	scopeBefore := topo.Scope().Clone()

	err := topo.UpdateCell(a.ID, "a = b")
	require.Error(t, err)
	assert.True(t, nberrors.IsCycle(err))

	// Atomic rollback: prior content, bindings and scope are intact.
	assert.Equal(t, "a = 1", a.Source)
	assert.ElementsMatch(t, []string{"a"}, a.Bindings.Values())
	assert.Equal(t, scopeBefore, topo.Scope())
	assert.ElementsMatch(t, []string{a.ID}, topo.Deps(b.ID).Values())

	checkInvariants(t, topo)
}

func TestTopology_SelfCycleAllowedAsNoEdge(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = 1")

	// A cell re-assigning its own binding never creates an edge to itself.
	require.NoError(t, topo.UpdateCell(a.ID, "a = 1\na = a + 1"))
	assert.Empty(t, topo.Deps(a.ID).Values())

	checkInvariants(t, topo)
}

func TestTopology_FunctionIsolation(t *testing.T) {
	topo := NewTopology()
	addReactive(t, topo, "a = 1")
	b := addReactive(t, topo, "def f(a): return a")

	assert.Empty(t, b.Requirements.Values())
	assert.Empty(t, topo.Deps(b.ID).Values())

	checkInvariants(t, topo)
}

func TestTopology_ReassignExternal(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = 1")
	b := addReactive(t, topo, "a = 2")

	assert.ElementsMatch(t, []string{"a"}, b.Requirements.Values())
	assert.ElementsMatch(t, []string{a.ID}, topo.Deps(b.ID).Values())
	owner, _ := topo.Scope().Owner("a")
	assert.Equal(t, a.ID, owner)

	checkInvariants(t, topo)
}

func TestTopology_UpdateCellRewiresDependents(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = 1")
	b := addReactive(t, topo, "b = a + 1")

	require.NoError(t, topo.UpdateCell(a.ID, "x = 1"))

	// b's requirement on a is now unresolved: no edge, latent broken ref.
	assert.Empty(t, topo.Deps(b.ID).Values())
	_, ok := topo.Scope().Owner("a")
	assert.False(t, ok)

	require.NoError(t, topo.UpdateCell(a.ID, "a = 5"))
	assert.ElementsMatch(t, []string{a.ID}, topo.Deps(b.ID).Values())

	checkInvariants(t, topo)
}

func TestTopology_UpdateWithSameSourceIsNoop(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = 1")
	b := addReactive(t, topo, "b = a + 1")

	scopeBefore := topo.Scope().Clone()
	planBefore, err := topo.Plan(b.ID)
	require.NoError(t, err)

	require.NoError(t, topo.UpdateCell(b.ID, b.Source))

	assert.Equal(t, scopeBefore, topo.Scope())
	planAfter, err := topo.Plan(b.ID)
	require.NoError(t, err)
	assert.Equal(t, planBefore, planAfter)
	assert.ElementsMatch(t, []string{a.ID}, topo.Deps(b.ID).Values())

	checkInvariants(t, topo)
}

func TestTopology_RemoveCellUnbinds(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = 1")
	b := addReactive(t, topo, "b = a + 1")

	require.NoError(t, topo.RemoveCell(a.ID))

	_, ok := topo.Scope().Owner("a")
	assert.False(t, ok)
	assert.Empty(t, topo.Deps(b.ID).Values())
	assert.Equal(t, []string{b.ID}, topo.DisplayOrder())

	err := topo.RemoveCell(a.ID)
	assert.True(t, nberrors.IsNotFound(err))

	checkInvariants(t, topo)
}

func TestTopology_Reorder(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = 1")
	b := addReactive(t, topo, "b = 2")
	c := addReactive(t, topo, "c = 3")

	require.NoError(t, topo.Reorder([]string{c.ID, a.ID, b.ID}))
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, topo.DisplayOrder())

	assert.Error(t, topo.Reorder([]string{a.ID, b.ID}))
	assert.Error(t, topo.Reorder([]string{a.ID, b.ID, b.ID}))
	assert.Error(t, topo.Reorder([]string{a.ID, b.ID, "missing"}))

	checkInvariants(t, topo)
}

func TestTopology_SortTieBreakFollowsDisplayOrder(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = 1")
	b := addReactive(t, topo, "b = 2")
	c := addReactive(t, topo, "c = a + b")

	sorted, err := topo.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, sorted)

	// Swapping the independent cells swaps their sort positions.
	require.NoError(t, topo.Reorder([]string{b.ID, a.ID, c.ID}))
	sorted, err = topo.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID, c.ID}, sorted)
}

func TestTopology_ParseErrorKeepsTopologyConsistent(t *testing.T) {
	topo := NewTopology()
	a := addReactive(t, topo, "a = 1")
	b := addReactive(t, topo, "b = a + 1")

	err := topo.UpdateCell(a.ID, "a = ((")
	require.Error(t, err)
	assert.True(t, nberrors.IsParseError(err))

	// The broken cell keeps its new content; its binding is gone and the
	// dependent's requirement dangles until the source parses again.
	assert.Equal(t, "a = ((", a.Source)
	assert.Empty(t, a.Bindings.Values())
	assert.Empty(t, topo.Deps(b.ID).Values())

	checkInvariants(t, topo)
}
