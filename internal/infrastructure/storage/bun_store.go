package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/reactant-dev/reactant/internal/domain"
	"github.com/reactant-dev/reactant/internal/domain/errors"
)

// BunStore persists snapshots in PostgreSQL through bun.
type BunStore struct {
	db *bun.DB
}

// NewBunStore connects to the database described by dsn.
func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

// InitSchema creates the tables when they do not exist yet.
func (s *BunStore) InitSchema(ctx context.Context) error {
	models := []interface{}{
		(*NotebookModel)(nil),
		(*CellModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// NotebookModel is the persisted notebook document row.
type NotebookModel struct {
	bun.BaseModel `bun:"table:notebooks,alias:n"`

	ID            string              `bun:"id,pk"`
	Title         string              `bun:"title"`
	Language      domain.LanguageInfo `bun:"language,type:jsonb"`
	FormatVersion string              `bun:"format_version"`
	CreatedAt     time.Time           `bun:"created_at"`
	UpdatedAt     time.Time           `bun:"updated_at"`
}

// CellModel is one persisted cell. Derived analysis state is rebuilt from the
// source on load, so only the editable attributes and the last-known locals
// are stored.
type CellModel struct {
	bun.BaseModel `bun:"table:cells,alias:c"`

	ID         string          `bun:"id,pk"`
	NotebookID string          `bun:"notebook_id"`
	Position   int             `bun:"position"`
	Kind       domain.CellKind `bun:"kind"`
	Source     string          `bun:"source"`
	Collapsed  bool            `bun:"collapsed"`
	Locals     domain.LocalSet `bun:"locals,type:jsonb"`
}

func newNotebookModel(nb *domain.Notebook) *NotebookModel {
	return &NotebookModel{
		ID:            nb.ID,
		Title:         nb.Title,
		Language:      nb.Language,
		FormatVersion: nb.Metadata.FormatVersion,
		CreatedAt:     nb.CreatedAt,
		UpdatedAt:     nb.UpdatedAt,
	}
}

func (m *NotebookModel) toDomain() *domain.Notebook {
	return &domain.Notebook{
		ID:        m.ID,
		Title:     m.Title,
		Language:  m.Language,
		Metadata:  domain.NotebookMetadata{FormatVersion: m.FormatVersion},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func newCellModel(notebookID string, position int, cell *domain.Cell) *CellModel {
	return &CellModel{
		ID:         cell.ID,
		NotebookID: notebookID,
		Position:   position,
		Kind:       cell.Kind,
		Source:     cell.Source,
		Collapsed:  cell.Metadata.Collapsed,
		Locals:     cell.Locals,
	}
}

func (m *CellModel) toDomain() *domain.Cell {
	cell := domain.NewCell(m.Kind, m.Source)
	cell.ID = m.ID
	cell.Metadata.Collapsed = m.Collapsed
	if m.Locals != nil {
		cell.Locals = m.Locals
	}
	return cell
}

func (s *BunStore) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		model := newNotebookModel(snapshot.Notebook)
		if _, err := tx.NewInsert().Model(model).On("CONFLICT (id) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return err
		}

		// Replace the cell rows wholesale so removals are handled.
		if _, err := tx.NewDelete().Model((*CellModel)(nil)).
			Where("notebook_id = ?", snapshot.Notebook.ID).Exec(ctx); err != nil {
			return err
		}
		for i, cell := range snapshot.Cells {
			if _, err := tx.NewInsert().Model(newCellModel(snapshot.Notebook.ID, i, cell)).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BunStore) GetSnapshot(ctx context.Context, notebookID string) (*Snapshot, error) {
	var nbModel NotebookModel
	err := s.db.NewSelect().Model(&nbModel).Where("id = ?", notebookID).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotebookNotFoundError(notebookID)
		}
		return nil, err
	}

	var cellModels []CellModel
	if err := s.db.NewSelect().Model(&cellModels).
		Where("notebook_id = ?", notebookID).
		Order("position ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{Notebook: nbModel.toDomain()}
	for i := range cellModels {
		snapshot.Cells = append(snapshot.Cells, cellModels[i].toDomain())
	}
	return snapshot, nil
}

func (s *BunStore) ListNotebooks(ctx context.Context) ([]*domain.Notebook, error) {
	var models []NotebookModel
	if err := s.db.NewSelect().Model(&models).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.Notebook, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

func (s *BunStore) DeleteNotebook(ctx context.Context, notebookID string) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*CellModel)(nil)).
			Where("notebook_id = ?", notebookID).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*NotebookModel)(nil)).
			Where("id = ?", notebookID).Exec(ctx)
		return err
	})
}
