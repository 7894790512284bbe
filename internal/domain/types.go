package domain

// CellKind defines how a cell participates in the notebook.
type CellKind string

const (
	// CellKindReactiveCode is a code cell whose execution propagates to its
	// dependents automatically.
	CellKindReactiveCode CellKind = "reactive-code"

	// CellKindNonReactiveCode is a code cell that binds and requires names
	// like a reactive cell but never fans out on its own runs.
	CellKindNonReactiveCode CellKind = "non-reactive-code"

	// CellKindMarkdown is an inert text cell. It keeps its place in the
	// display order but is excluded from dependency analysis.
	CellKindMarkdown CellKind = "markdown"
)

// IsValid checks if the CellKind is valid.
func (k CellKind) IsValid() bool {
	switch k {
	case CellKindReactiveCode, CellKindNonReactiveCode, CellKindMarkdown:
		return true
	default:
		return false
	}
}

// IsCode reports whether cells of this kind participate in dependency analysis.
func (k CellKind) IsCode() bool {
	return k == CellKindReactiveCode || k == CellKindNonReactiveCode
}

// String returns string representation of CellKind.
func (k CellKind) String() string {
	return string(k)
}

// StatementKind defines how the evaluator must run a statement.
type StatementKind string

const (
	// StatementExecute runs the statement for its effect.
	StatementExecute StatementKind = "execute"

	// StatementEvaluate evaluates a bare expression; its value is the cell's
	// notable output.
	StatementEvaluate StatementKind = "evaluate"

	// StatementDefinition introduces a name (imports, functions, classes).
	// The evaluator may treat these as idempotent.
	StatementDefinition StatementKind = "definition"
)

// IsValid checks if the StatementKind is valid.
func (k StatementKind) IsValid() bool {
	switch k {
	case StatementExecute, StatementEvaluate, StatementDefinition:
		return true
	default:
		return false
	}
}

// String returns string representation of StatementKind.
func (k StatementKind) String() string {
	return string(k)
}
