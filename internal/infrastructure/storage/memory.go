package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/reactant-dev/reactant/internal/domain"
	"github.com/reactant-dev/reactant/internal/domain/errors"
)

// MemoryStore keeps snapshots in process memory. It is the default store when
// no database is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]*Snapshot)}
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Notebook.ID] = cloneSnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context, notebookID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[notebookID]
	if !ok {
		return nil, errors.NewNotebookNotFoundError(notebookID)
	}
	return cloneSnapshot(snapshot), nil
}

func (s *MemoryStore) ListNotebooks(ctx context.Context) ([]*domain.Notebook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Notebook, 0, len(s.snapshots))
	for _, snapshot := range s.snapshots {
		nb := *snapshot.Notebook
		out = append(out, &nb)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteNotebook(ctx context.Context, notebookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[notebookID]; !ok {
		return errors.NewNotebookNotFoundError(notebookID)
	}
	delete(s.snapshots, notebookID)
	return nil
}

// cloneSnapshot isolates stored state from the live topology the coordinator
// keeps mutating.
func cloneSnapshot(snapshot *Snapshot) *Snapshot {
	nb := *snapshot.Notebook
	out := &Snapshot{Notebook: &nb, Cells: make([]*domain.Cell, len(snapshot.Cells))}
	for i, cell := range snapshot.Cells {
		out.Cells[i] = cell.Clone()
	}
	return out
}
