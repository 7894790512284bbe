package coordinator

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactant-dev/reactant/internal/domain"
	nberrors "github.com/reactant-dev/reactant/internal/domain/errors"
	"github.com/reactant-dev/reactant/internal/infrastructure/kernel"
	"github.com/reactant-dev/reactant/internal/infrastructure/storage"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	// The bridge is never Run in these tests; requests only queue up.
	bridge := kernel.NewBridge("127.0.0.1:1", "127.0.0.1:1")
	t.Cleanup(func() { bridge.Close() })
	return New(bridge, storage.NewMemoryStore(), slog.Default())
}

func TestCoordinator_OpenFirstSeedsNotebook(t *testing.T) {
	c := newTestCoordinator(t)

	snapshot, err := c.OpenFirst()
	require.NoError(t, err)
	assert.NotEmpty(t, snapshot.Notebook.ID)
	assert.Len(t, snapshot.Cells, len(seedDefinition().Cells))

	// A second open returns the same notebook.
	again, err := c.OpenFirst()
	require.NoError(t, err)
	assert.Equal(t, snapshot.Notebook.ID, again.Notebook.ID)
}

func TestCoordinator_AddAndRemoveCell(t *testing.T) {
	c := newTestCoordinator(t)
	nb, err := c.CreateNotebook("test")
	require.NoError(t, err)

	cell, err := c.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "a = 1")
	require.NoError(t, err)

	snapshot, err := c.Snapshot(nb.Notebook.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Cells, 1)
	assert.Equal(t, cell.ID, snapshot.Cells[0].ID)

	require.NoError(t, c.RemoveCell(nb.Notebook.ID, cell.ID))
	snapshot, err = c.Snapshot(nb.Notebook.ID)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Cells)
}

func TestCoordinator_RunCellPropagatesErrors(t *testing.T) {
	c := newTestCoordinator(t)
	nb, err := c.CreateNotebook("test")
	require.NoError(t, err)

	a, err := c.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "a = 1")
	require.NoError(t, err)
	_, err = c.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "b = a + 1")
	require.NoError(t, err)

	// Editing a into a cycle is rejected synchronously.
	err = c.RunCell(nb.Notebook.ID, a.ID, "a = b")
	require.Error(t, err)
	assert.True(t, nberrors.IsCycle(err))

	// A parse error is reported but the content edit sticks.
	err = c.RunCell(nb.Notebook.ID, a.ID, "a = ((")
	require.Error(t, err)
	assert.True(t, nberrors.IsParseError(err))

	snapshot, err := c.Snapshot(nb.Notebook.ID)
	require.NoError(t, err)
	assert.Equal(t, "a = ((", snapshot.Cells[0].Source)

	err = c.RunCell(nb.Notebook.ID, "missing", "x = 1")
	assert.True(t, nberrors.IsNotFound(err))
}

func TestCoordinator_AssembleRequestCollectsDepLocals(t *testing.T) {
	c := newTestCoordinator(t)
	nb, err := c.CreateNotebook("test")
	require.NoError(t, err)

	a, err := c.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "a = 1")
	require.NoError(t, err)
	b, err := c.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "b = a + 1")
	require.NoError(t, err)

	// Simulate an earlier evaluation of a.
	c.HandleReply(&kernel.Reply{
		NotebookID: nb.Notebook.ID,
		CellID:     a.ID,
		Locals:     domain.LocalSet{"a": {Value: "1", Type: "int"}},
		Ended:      true,
	})

	state, err := c.state(nb.Notebook.ID)
	require.NoError(t, err)
	state.mu.Lock()
	plan, err := state.topo.Plan(b.ID)
	require.NoError(t, err)
	req := c.assembleRequest(state, nb.Notebook.ID, b.ID, plan)
	state.mu.Unlock()

	require.Len(t, req.ExecutionCells, 2)
	require.Len(t, req.LocalsOfDeps, 2)
	assert.Equal(t, a.ID, req.ExecutionCells[0].ID)
	assert.Equal(t, b.ID, req.ExecutionCells[1].ID)

	// a has no requirements; b gets a's last-known value.
	assert.Empty(t, req.LocalsOfDeps[0])
	assert.Equal(t, "1", req.LocalsOfDeps[1]["a"].Value)

	require.Len(t, req.ExecutionCells[1].Statements, 1)
	assert.Equal(t, "execute", req.ExecutionCells[1].Statements[0].Kind)
	assert.Equal(t, "b = a + 1", req.ExecutionCells[1].Statements[0].Content)
}

func TestCoordinator_HandleReplyExtendsLocals(t *testing.T) {
	c := newTestCoordinator(t)
	nb, err := c.CreateNotebook("test")
	require.NoError(t, err)

	cell, err := c.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "a = 1")
	require.NoError(t, err)

	c.HandleReply(&kernel.Reply{
		NotebookID: nb.Notebook.ID,
		CellID:     cell.ID,
		Locals:     domain.LocalSet{"a": {Value: "1", Type: "int"}},
	})
	c.HandleReply(&kernel.Reply{
		NotebookID: nb.Notebook.ID,
		CellID:     cell.ID,
		Locals:     domain.LocalSet{"a": {Value: "2", Type: "int"}},
		Ended:      true,
	})

	snapshot, err := c.Snapshot(nb.Notebook.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", snapshot.Cells[0].Locals["a"].Value)
}

func TestCoordinator_ReorderCells(t *testing.T) {
	c := newTestCoordinator(t)
	nb, err := c.CreateNotebook("test")
	require.NoError(t, err)

	a, err := c.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "a = 1")
	require.NoError(t, err)
	b, err := c.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "b = 2")
	require.NoError(t, err)

	require.NoError(t, c.ReorderCells(nb.Notebook.ID, []string{b.ID, a.ID}))

	snapshot, err := c.Snapshot(nb.Notebook.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, snapshot.Cells[0].ID)
	assert.Equal(t, a.ID, snapshot.Cells[1].ID)

	assert.Error(t, c.ReorderCells(nb.Notebook.ID, []string{a.ID}))
}

func TestCoordinator_RestoreFromStore(t *testing.T) {
	store := storage.NewMemoryStore()
	bridge := kernel.NewBridge("127.0.0.1:1", "127.0.0.1:1")
	defer bridge.Close()

	first := New(bridge, store, slog.Default())
	nb, err := first.CreateNotebook("persisted")
	require.NoError(t, err)
	_, err = first.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "a = 1")
	require.NoError(t, err)
	b, err := first.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "b = a + 1")
	require.NoError(t, err)

	// A fresh coordinator over the same store restores the notebook and
	// re-derives the dependency structure from sources.
	bridge2 := kernel.NewBridge("127.0.0.1:1", "127.0.0.1:1")
	defer bridge2.Close()
	second := New(bridge2, store, slog.Default())

	snapshot, err := second.OpenFirst()
	require.NoError(t, err)
	assert.Equal(t, nb.Notebook.ID, snapshot.Notebook.ID)
	require.Len(t, snapshot.Cells, 2)

	state, err := second.state(nb.Notebook.ID)
	require.NoError(t, err)
	state.mu.Lock()
	plan, err := state.topo.Plan(b.ID)
	state.mu.Unlock()
	require.NoError(t, err)
	assert.Len(t, plan, 2)
}
