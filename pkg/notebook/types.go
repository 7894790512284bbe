package notebook

// Cell type names accepted in a document definition.
const (
	TypeReactiveCode    = "reactive-code"
	TypeNonReactiveCode = "non-reactive-code"
	TypeMarkdown        = "markdown"
)

// CellDef describes one cell of a notebook document.
type CellDef struct {
	Type    string `json:"type" yaml:"type"`
	Content string `json:"content" yaml:"content"`
}

// Definition is a portable notebook document: what a client posts to create a
// pre-populated notebook, and what seed notebooks are built from.
type Definition struct {
	Title    string    `json:"title" yaml:"title"`
	Language string    `json:"language" yaml:"language"`
	Cells    []CellDef `json:"cells" yaml:"cells"`
}
