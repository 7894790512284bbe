package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/reactant-dev/reactant/internal/domain"
	"github.com/reactant-dev/reactant/internal/domain/errors"
	"github.com/reactant-dev/reactant/internal/engine"
	"github.com/reactant-dev/reactant/internal/infrastructure/kernel"
	"github.com/reactant-dev/reactant/internal/infrastructure/storage"
	"github.com/reactant-dev/reactant/pkg/notebook"
)

const persistTimeout = 5 * time.Second

// Coordinator applies notebook edits, asks the topology for execution plans,
// assembles evaluator requests with the prepared inputs, and folds streamed
// results back into cells.
//
// Every topology operation runs under its notebook's lock; different
// notebooks are independent. RunCell never blocks on evaluation: it returns
// as soon as the request is queued to the bridge.
type Coordinator struct {
	mu        sync.RWMutex
	notebooks map[string]*notebookState

	bridge *kernel.Bridge
	store  storage.NotebookStore
	logger *slog.Logger
}

type notebookState struct {
	mu       sync.Mutex
	notebook *domain.Notebook
	topo     *engine.Topology
}

// New creates a Coordinator and installs it as the bridge's reply observer.
// store may be nil; snapshots are then kept only in memory.
func New(bridge *kernel.Bridge, store storage.NotebookStore, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		notebooks: make(map[string]*notebookState),
		bridge:    bridge,
		store:     store,
		logger:    logger,
	}
	bridge.SetReplyObserver(c.HandleReply)
	return c
}

// CreateNotebook opens a new, empty notebook.
func (c *Coordinator) CreateNotebook(title string) (*storage.Snapshot, error) {
	state := &notebookState{
		notebook: domain.NewNotebook(title),
		topo:     engine.NewTopology(),
	}
	c.mu.Lock()
	c.notebooks[state.notebook.ID] = state
	c.mu.Unlock()

	state.mu.Lock()
	defer state.mu.Unlock()
	c.persist(state)
	return c.snapshot(state), nil
}

// seedDefinition is the demonstration notebook served on first open.
func seedDefinition() notebook.Definition {
	return notebook.NewDefinitionBuilder().
		Title("Untitled Notebook").
		Markdown("# Welcome\nEdit a cell and run it; its dependents follow.").
		Code("def add(a, b):\n  return a + b").
		Code("a = 1 + 2\nb = 5\nc = 12").
		Code("add(5, 2)").
		Code("sum = 0\nfor i in range(10):\n  sum += a").
		Build()
}

// OpenFirst returns the first open notebook, restoring one from the store or
// seeding a fresh one when none exists yet.
func (c *Coordinator) OpenFirst() (*storage.Snapshot, error) {
	c.mu.RLock()
	var first *notebookState
	for _, state := range c.notebooks {
		if first == nil || state.notebook.CreatedAt.Before(first.notebook.CreatedAt) {
			first = state
		}
	}
	c.mu.RUnlock()

	if first != nil {
		first.mu.Lock()
		defer first.mu.Unlock()
		return c.snapshot(first), nil
	}

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if notebooks, err := c.store.ListNotebooks(ctx); err == nil && len(notebooks) > 0 {
			return c.restore(ctx, notebooks[0].ID)
		}
	}

	return c.seedNotebook()
}

func (c *Coordinator) seedNotebook() (*storage.Snapshot, error) {
	return c.CreateFromDefinition(seedDefinition())
}

// CreateFromDefinition opens a notebook pre-populated from a portable
// document definition. Cells that fail to parse stay in place unanalyzed,
// the same as a live edit mid-typing.
func (c *Coordinator) CreateFromDefinition(def notebook.Definition) (*storage.Snapshot, error) {
	state := &notebookState{
		notebook: domain.NewNotebook(def.Title),
		topo:     engine.NewTopology(),
	}
	if def.Language != "" {
		state.notebook.Language.Name = def.Language
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, cellDef := range def.Cells {
		kind := domain.CellKind(cellDef.Type)
		if !kind.IsValid() {
			kind = domain.CellKindReactiveCode
		}
		cell := domain.NewCell(kind, cellDef.Content)
		if err := state.topo.AddCell(cell); err != nil {
			c.logger.Warn("definition cell not analyzable",
				"notebook_id", state.notebook.ID,
				"cell_id", cell.ID,
				"error", err)
		}
	}

	c.mu.Lock()
	c.notebooks[state.notebook.ID] = state
	c.mu.Unlock()

	c.persist(state)
	return c.snapshot(state), nil
}

// restore rebuilds a notebook's topology from its stored snapshot. Analysis
// state is re-derived from cell sources; the saved locals survive.
func (c *Coordinator) restore(ctx context.Context, notebookID string) (*storage.Snapshot, error) {
	stored, err := c.store.GetSnapshot(ctx, notebookID)
	if err != nil {
		return nil, err
	}

	state := &notebookState{
		notebook: stored.Notebook,
		topo:     engine.NewTopology(),
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, cell := range stored.Cells {
		if err := state.topo.AddCell(cell); err != nil {
			// Stored snapshots can carry cells mid-edit; a parse error just
			// leaves the cell unanalyzed, same as a live edit would.
			c.logger.Warn("restored cell not analyzable",
				"notebook_id", notebookID,
				"cell_id", cell.ID,
				"error", err)
		}
	}

	c.mu.Lock()
	c.notebooks[notebookID] = state
	c.mu.Unlock()

	return c.snapshot(state), nil
}

// Snapshot returns a consistent copy of the notebook's current state.
func (c *Coordinator) Snapshot(notebookID string) (*storage.Snapshot, error) {
	state, err := c.state(notebookID)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return c.snapshot(state), nil
}

// ListNotebooks returns the documents of every open notebook.
func (c *Coordinator) ListNotebooks() []*domain.Notebook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domain.Notebook, 0, len(c.notebooks))
	for _, state := range c.notebooks {
		nb := *state.notebook
		out = append(out, &nb)
	}
	return out
}

// HasNotebook reports whether the notebook is open.
func (c *Coordinator) HasNotebook(notebookID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.notebooks[notebookID]
	return ok
}

// AddCell creates a cell and inserts it into the notebook. Parse errors are
// returned alongside the created cell; the cell is kept for in-place fixing.
func (c *Coordinator) AddCell(notebookID string, kind domain.CellKind, source string) (*domain.Cell, error) {
	state, err := c.state(notebookID)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	cell := domain.NewCell(kind, source)
	if err := state.topo.AddCell(cell); err != nil {
		if errors.IsCycle(err) {
			return nil, err
		}
		// Parse error: the cell is in place, unanalyzed.
		c.persistAndTouch(state)
		return cell, err
	}
	c.persistAndTouch(state)
	return cell, nil
}

// RemoveCell deletes a cell and unbinds its names.
func (c *Coordinator) RemoveCell(notebookID, cellID string) error {
	state, err := c.state(notebookID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if err := state.topo.RemoveCell(cellID); err != nil {
		return err
	}
	c.persistAndTouch(state)
	return nil
}

// RunCell applies the content edit, plans the run, and queues one evaluator
// request covering the whole plan. Parse and cycle errors surface
// synchronously; evaluation results arrive through the session sink.
func (c *Coordinator) RunCell(notebookID, cellID, newSource string) error {
	state, err := c.state(notebookID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	cell, err := state.topo.Cell(cellID)
	if err != nil {
		return err
	}
	if newSource != cell.Source {
		err := state.topo.UpdateCell(cellID, newSource)
		if errors.IsParseError(err) {
			// The content edit is accepted even though analysis failed.
			c.persistAndTouch(state)
			return err
		}
		if err != nil {
			return err
		}
		c.persistAndTouch(state)
	}

	plan, err := state.topo.Plan(cellID)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		return nil
	}

	req := c.assembleRequest(state, notebookID, cellID, plan)
	if err := c.bridge.Enqueue(req); err != nil {
		return err
	}

	c.logger.Debug("run queued",
		"notebook_id", notebookID,
		"cell_id", cellID,
		"plan_size", len(plan))
	return nil
}

// ReorderCells applies a display-order permutation.
func (c *Coordinator) ReorderCells(notebookID string, ids []string) error {
	state, err := c.state(notebookID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if err := state.topo.Reorder(ids); err != nil {
		return err
	}
	c.persistAndTouch(state)
	return nil
}

// HandleReply folds an evaluator reply's locals into the originating cell.
// The bridge calls this for every frame before sink delivery.
func (c *Coordinator) HandleReply(reply *kernel.Reply) {
	state, err := c.state(reply.NotebookID)
	if err != nil {
		c.logger.Warn("reply for unknown notebook", "notebook_id", reply.NotebookID)
		return
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	cell, err := state.topo.Cell(reply.CellID)
	if err != nil {
		c.logger.Warn("reply for unknown cell",
			"notebook_id", reply.NotebookID,
			"cell_id", reply.CellID)
		return
	}
	cell.Locals.Extend(reply.Locals)

	if reply.Ended {
		c.persist(state)
	}
}

// assembleRequest builds the evaluator message: one execution record per
// planned cell, and for each a mapping of its requirements to the freshest
// locals observed on the owning dependency.
func (c *Coordinator) assembleRequest(state *notebookState, notebookID, cellID string, plan []string) *kernel.Request {
	scope := state.topo.Scope()
	req := &kernel.Request{
		NotebookID: notebookID,
		CellID:     cellID,
	}

	for _, id := range plan {
		cell, err := state.topo.Cell(id)
		if err != nil {
			continue
		}

		record := kernel.ExecutionCell{
			ID:           cell.ID,
			Requirements: cell.Requirements.Values(),
			Bindings:     cell.Bindings.Values(),
		}
		for _, statement := range cell.Statements {
			record.Statements = append(record.Statements, kernel.Statement{
				Kind:    statement.Kind.String(),
				Content: statement.Content,
			})
		}

		inputs := make(map[string]domain.LocalValue)
		for name := range cell.Requirements {
			owner, ok := scope.Owner(name)
			if !ok || owner == cell.ID {
				continue
			}
			dep, err := state.topo.Cell(owner)
			if err != nil {
				continue
			}
			if value, ok := dep.Locals[name]; ok {
				inputs[name] = value
			}
		}

		req.ExecutionCells = append(req.ExecutionCells, record)
		req.LocalsOfDeps = append(req.LocalsOfDeps, inputs)
	}
	return req
}

func (c *Coordinator) state(notebookID string) (*notebookState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.notebooks[notebookID]
	if !ok {
		return nil, errors.NewNotebookNotFoundError(notebookID)
	}
	return state, nil
}

// snapshot copies the notebook state; callers hold the notebook lock.
func (c *Coordinator) snapshot(state *notebookState) *storage.Snapshot {
	cells := state.topo.Cells()
	nb := *state.notebook
	out := &storage.Snapshot{Notebook: &nb, Cells: make([]*domain.Cell, len(cells))}
	for i, cell := range cells {
		out.Cells[i] = cell.Clone()
	}
	return out
}

func (c *Coordinator) persistAndTouch(state *notebookState) {
	state.notebook.Touch()
	c.persist(state)
}

// persist writes the snapshot when a store is configured; failures are logged
// and never block the edit path.
func (c *Coordinator) persist(state *notebookState) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.store.SaveSnapshot(ctx, c.snapshot(state)); err != nil {
		c.logger.Warn("snapshot save failed",
			"notebook_id", state.notebook.ID,
			"error", err)
	}
}
