package kernel

import (
	"github.com/reactant-dev/reactant/internal/domain"
)

// Statement is the wire form of one cell statement.
type Statement struct {
	Kind    string `msgpack:"kind" json:"kind"`
	Content string `msgpack:"content" json:"content"`
}

// ExecutionCell is the wire form of one planned cell.
type ExecutionCell struct {
	ID           string      `msgpack:"uuid" json:"uuid"`
	Statements   []Statement `msgpack:"statements" json:"statements"`
	Requirements []string    `msgpack:"requirements" json:"requirements"`
	Bindings     []string    `msgpack:"bindings" json:"bindings"`
}

// Request carries one run of a cell: the ordered execution cells of the plan
// and, parallel to them, the prepared input values collected from each cell's
// dependencies.
type Request struct {
	NotebookID     string                       `msgpack:"notebook_uuid" json:"notebookUuid"`
	CellID         string                       `msgpack:"cell_uuid" json:"cellUuid"`
	ExecutionCells []ExecutionCell              `msgpack:"execution_cells" json:"executionCells"`
	LocalsOfDeps   []map[string]domain.LocalValue `msgpack:"locals_of_deps" json:"localsOfDeps"`
}

// Reply is one streamed evaluator result frame. A frame with Ended set closes
// the stream for the current request.
type Reply struct {
	NotebookID string                       `msgpack:"notebook_uuid" json:"notebookUuid"`
	CellID     string                       `msgpack:"cell_uuid" json:"cellUuid"`
	Locals     map[string]domain.LocalValue `msgpack:"locals" json:"locals"`
	Error      string                       `msgpack:"error,omitempty" json:"error,omitempty"`
	Ended      bool                         `msgpack:"ended" json:"ended"`
}
