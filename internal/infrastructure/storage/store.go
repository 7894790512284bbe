package storage

import (
	"context"

	"github.com/reactant-dev/reactant/internal/domain"
)

// Snapshot is the persisted form of one notebook: its document identity plus
// the cells in display order. Derived analysis state is not persisted; it is
// rebuilt from cell sources on load.
type Snapshot struct {
	Notebook *domain.Notebook `json:"notebook"`
	Cells    []*domain.Cell   `json:"cells"`
}

// NotebookStore persists notebook snapshots. The coordinator writes a
// snapshot after every accepted mutation when a store is configured.
type NotebookStore interface {
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context, notebookID string) (*Snapshot, error)
	ListNotebooks(ctx context.Context) ([]*domain.Notebook, error)
	DeleteNotebook(ctx context.Context, notebookID string) error
}
